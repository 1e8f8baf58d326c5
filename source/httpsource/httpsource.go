// Package httpsource retrieves assets from an HTTP origin during install.
package httpsource

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/unkn0wn-root/precache"
)

const (
	defaultTimeout = 30 * time.Second
	defaultMaxBody = 32 << 20
)

var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

type Options struct {
	Origin  string        // base URL, e.g. "https://app.example"
	Client  *http.Client  // nil => shared transport with Timeout
	Timeout time.Duration // per request; 0 => 30s
	MaxBody int64         // bytes; 0 => 32MiB
	Header  http.Header   // extra request headers
}

// Source fetches manifest paths relative to Origin. Absolute http(s) URLs are
// fetched as-is.
type Source struct {
	base    *url.URL
	client  *http.Client
	maxBody int64
	header  http.Header
}

var _ precache.Source = (*Source)(nil)

func New(opts Options) (*Source, error) {
	base, err := url.Parse(strings.TrimRight(opts.Origin, "/"))
	if err != nil {
		return nil, fmt.Errorf("httpsource: origin: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("httpsource: origin %q must be http(s)", opts.Origin)
	}

	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout, Transport: defaultTransport.Clone()}
	}
	maxBody := opts.MaxBody
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	return &Source{base: base, client: client, maxBody: maxBody, header: opts.Header.Clone()}, nil
}

// Retrieve bypasses intermediary caches so a new revision is never satisfied
// by a stale copy. Any non-2xx status is an error.
func (s *Source) Retrieve(ctx context.Context, path string) (precache.Asset, error) {
	target := s.resolve(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return precache.Asset{}, err
	}
	for k, vs := range s.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		return precache.Asset{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return precache.Asset{}, &StatusError{URL: target, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBody+1))
	if err != nil {
		return precache.Asset{}, fmt.Errorf("read %s: %w", target, err)
	}
	if int64(len(body)) > s.maxBody {
		return precache.Asset{}, fmt.Errorf("%s: body exceeds %d bytes", target, s.maxBody)
	}
	return precache.Asset{Body: body, ContentType: resp.Header.Get("Content-Type")}, nil
}

func (s *Source) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return s.base.String() + path
}

// StatusError is returned for non-2xx origin responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("origin %s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}
