package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/unkn0wn-root/precache"
	"github.com/unkn0wn-root/precache/config"
)

func writeDist(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func baseConfig(dir, provider string) *config.Config {
	return &config.Config{
		Namespace:     "shell",
		ListenAddr:    ":0",
		AssetDir:      dir,
		Provider:      provider,
		MaxCacheBytes: 64 << 20,
		AssetCodec:    "msgpack",
		EvictionPoll:  config.Duration(5 * time.Millisecond),
		Logger:        config.LoggerLogrus,
		LogLevel:      "info",
		OfflinePath:   "/offline.html",
		Precache: []precache.ManifestEntry{
			{URL: "/", Revision: "1"},
			{URL: "/index.css", Revision: "1"},
			{URL: "/offline.html", Revision: "1"},
		},
	}
}

func get(t *testing.T, h http.Handler, target string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	body, _ := io.ReadAll(rec.Result().Body)
	return rec.Code, string(body)
}

func TestAppInstallTakeoverServe(t *testing.T) {
	for _, prov := range []string{config.ProviderRistretto, config.ProviderBigCache} {
		t.Run(prov, func(t *testing.T) {
			dir := writeDist(t, map[string]string{
				"index.html":   "<html>shell</html>",
				"index.css":    "body{}",
				"offline.html": "offline",
			})
			ctx := context.Background()
			app, err := New(ctx, baseConfig(dir, prov), nil)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			defer app.Close(ctx)

			if err := app.Start(ctx); err != nil {
				t.Fatalf("Start: %v", err)
			}
			if app.Controller.State() != precache.Installed {
				t.Fatalf("state = %v", app.Controller.State())
			}

			rec := httptest.NewRecorder()
			app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/-/takeover", nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("takeover: %d %s", rec.Code, rec.Body.String())
			}

			// origin changes after install are not visible
			if err := os.WriteFile(filepath.Join(dir, "index.css"), []byte("changed"), 0o644); err != nil {
				t.Fatal(err)
			}
			if code, body := get(t, app.Handler, "/index.css"); code != http.StatusOK || body != "body{}" {
				t.Fatalf("serve css: %d %q", code, body)
			}
			if code, body := get(t, app.Handler, "/"); code != http.StatusOK || body != "<html>shell</html>" {
				t.Fatalf("serve root: %d %q", code, body)
			}
			if code, body := get(t, app.Handler, "/somewhere"); code != http.StatusOK || body != "offline" {
				t.Fatalf("offline fallback: %d %q", code, body)
			}
		})
	}
}

func TestAppFailedInstall(t *testing.T) {
	dir := writeDist(t, map[string]string{"index.html": "x"})
	ctx := context.Background()
	app, err := New(ctx, baseConfig(dir, config.ProviderRistretto), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer app.Close(ctx)

	err = app.Start(ctx)
	var ierr *precache.InstallError
	if !errors.As(err, &ierr) || len(ierr.FailedPaths) != 2 {
		t.Fatalf("want InstallError on 2 paths, got %v", err)
	}
	if app.Controller.Active() != "" {
		t.Fatalf("nothing should be active")
	}
}

func TestNewRejectsUnreachableRedis(t *testing.T) {
	cfg := baseConfig(t.TempDir(), config.ProviderRedis)
	cfg.RedisAddr = "127.0.0.1:1"
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := New(ctx, cfg, nil); err == nil {
		t.Fatalf("expected ping failure")
	}
}

func TestNewRejectsMissingAssetDir(t *testing.T) {
	cfg := baseConfig(filepath.Join(t.TempDir(), "missing"), config.ProviderRistretto)
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected AssetDir error")
	}
}

func TestNewWithOriginAndFallback(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("origin:" + r.URL.Path))
	}))
	defer origin.Close()

	cfg := baseConfig("", config.ProviderRistretto)
	cfg.Origin = origin.URL
	cfg.NetworkFallback = true
	cfg.OfflinePath = ""
	cfg.AutoTakeover = true
	cfg.AssetCodec = "cbor"

	ctx := context.Background()
	app, err := New(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer app.Close(ctx)
	if err := app.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if app.Controller.State() != precache.Active {
		t.Fatalf("auto takeover: state %v", app.Controller.State())
	}
	if code, body := get(t, app.Handler, "/index.css"); code != http.StatusOK || body != "origin:/index.css" {
		t.Fatalf("cached: %d %q", code, body)
	}
	if code, body := get(t, app.Handler, "/api/live"); code != http.StatusOK || body != "origin:/api/live" {
		t.Fatalf("network fallback: %d %q", code, body)
	}
}

func TestAppHooksAndManifestFile(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	dir := writeDist(t, map[string]string{
		"index.html":   "<html>shell</html>",
		"offline.html": "offline",
	})
	manifest := filepath.Join(t.TempDir(), "manifest.json")
	data := `[{"url":"/","revision":"1"},{"url":"/offline.html","revision":"1"}]`
	if err := os.WriteFile(manifest, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := baseConfig(dir, config.ProviderRistretto)
	cfg.Precache = nil
	cfg.ManifestFile = manifest
	cfg.Hooks = config.HooksSlog
	cfg.HookQueue = 64
	cfg.AutoTakeover = true

	ctx := context.Background()
	app, err := New(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := app.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if code, body := get(t, app.Handler, "/somewhere"); code != http.StatusOK || body != "offline" {
		t.Fatalf("offline fallback: %d %q", code, body)
	}
	// Close flushes the hook queue
	if err := app.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	out := buf.String()
	for _, event := range []string{"precache.activated", "precache.offline_fallback"} {
		if !strings.Contains(out, event) {
			t.Fatalf("missing %s in hook log:\n%s", event, out)
		}
	}
}
