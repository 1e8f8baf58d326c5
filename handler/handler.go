// Package handler exposes a precache Controller over HTTP: cached serving with
// an optional network fallback, plus takeover, reload and status endpoints.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/unkn0wn-root/precache"
)

const (
	headerRequestID = "X-Request-ID"
	headerCache     = "X-Precache"
)

type ctxKey struct{}

// RequestID returns the id assigned by the request-id middleware, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Controller is the part of *precache.Controller the handler uses.
type Controller interface {
	Serve(ctx context.Context, path string) (precache.Asset, error)
	Takeover(ctx context.Context) error
	Reload(ctx context.Context) (string, error)
	State() precache.State
	Active() string
	Installing() string
	Pending() string
}

var _ Controller = (*precache.Controller)(nil)

type Options struct {
	Controller Controller
	// Network is consulted on a cache miss; nil disables the fallback.
	Network precache.Source
	Logger  precache.Logger
}

type handler struct {
	ctrl    Controller
	network precache.Source
	log     precache.Logger
}

// New returns the router. Management routes live under /-/.
func New(opts Options) http.Handler {
	h := &handler{ctrl: opts.Controller, network: opts.Network, log: opts.Logger}
	if h.log == nil {
		h.log = precache.NopLogger{}
	}

	r := chi.NewRouter()
	r.Use(requestID)

	r.Get("/-/status", h.status)
	r.Post("/-/takeover", h.takeover)
	r.Post("/-/reload", h.reload)
	r.Get("/*", h.serve)
	r.Head("/*", h.serve)
	return r
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func (h *handler) serve(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Path
	if r.URL.RawQuery != "" {
		p += "?" + r.URL.RawQuery
	}

	a, err := h.ctrl.Serve(r.Context(), p)
	switch {
	case err == nil:
		w.Header().Set(headerCache, "hit")
		writeAsset(w, r, a)
		return
	case !errors.Is(err, precache.ErrCacheMiss):
		h.log.Error("serve failed", precache.Fields{"path": p, "request_id": RequestID(r.Context()), "err": err})
		http.Error(w, "cache unavailable", http.StatusBadGateway)
		return
	}

	if h.network == nil {
		http.NotFound(w, r)
		return
	}
	a, err = h.network.Retrieve(r.Context(), p)
	if err != nil {
		h.log.Warn("network fallback failed", precache.Fields{"path": p, "request_id": RequestID(r.Context()), "err": err})
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set(headerCache, "miss")
	writeAsset(w, r, a)
}

func writeAsset(w http.ResponseWriter, r *http.Request, a precache.Asset) {
	if a.ContentType != "" {
		w.Header().Set("Content-Type", a.ContentType)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Body)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(a.Body)
	}
}

type statusResponse struct {
	State      string `json:"state"`
	Active     string `json:"active,omitempty"`
	Installing string `json:"installing,omitempty"`
	Pending    string `json:"pending,omitempty"`
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.snapshot())
}

func (h *handler) snapshot() statusResponse {
	return statusResponse{
		State:      h.ctrl.State().String(),
		Active:     h.ctrl.Active(),
		Installing: h.ctrl.Installing(),
		Pending:    h.ctrl.Pending(),
	}
}

func (h *handler) takeover(w http.ResponseWriter, r *http.Request) {
	err := h.ctrl.Takeover(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, h.snapshot())
	case errors.Is(err, precache.ErrNothingToActivate):
		writeError(w, http.StatusConflict, err)
	default:
		h.log.Error("takeover failed", precache.Fields{"request_id": RequestID(r.Context()), "err": err})
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (h *handler) reload(w http.ResponseWriter, r *http.Request) {
	id, err := h.ctrl.Reload(r.Context())
	if err == nil {
		resp := h.snapshot()
		if resp.Pending == "" && resp.Active != id {
			resp.Pending = id
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	var merr *precache.ManifestError
	var ierr *precache.InstallError
	switch {
	case errors.As(err, &merr):
		writeError(w, http.StatusUnprocessableEntity, err)
	case errors.As(err, &ierr):
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":  err.Error(),
			"failed": ierr.FailedPaths,
		})
	case errors.Is(err, precache.ErrSuperseded):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
