package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/unkn0wn-root/precache"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "precache.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
Origin = "https://app.example"
AssetTTL = "1h"
EvictionPoll = 2
AutoTakeover = true

[[Precache]]
url = "index.html"
revision = "1"

[[Precache]]
url = "/pwa"
revision = "2"
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Namespace != "shell" || cfg.ListenAddr != ":8080" || cfg.Provider != ProviderRistretto {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.AssetTTL.DurationValue() != time.Hour {
		t.Fatalf("AssetTTL = %v", cfg.AssetTTL.DurationValue())
	}
	if cfg.EvictionPoll.DurationValue() != 2*time.Second {
		t.Fatalf("EvictionPoll = %v", cfg.EvictionPoll.DurationValue())
	}
	if !cfg.AutoTakeover || cfg.InstallConcurrency != 8 {
		t.Fatalf("unexpected flags %+v", cfg)
	}
	if len(cfg.Precache) != 2 || cfg.Precache[0].URL != "/index.html" || cfg.Precache[1].Revision != "2" {
		t.Fatalf("Precache = %+v", cfg.Precache)
	}
	if cfg.Hooks != HooksNone || cfg.HookQueue != 1024 {
		t.Fatalf("hooks defaults: %q %d", cfg.Hooks, cfg.HookQueue)
	}
	if w := cfg.Warnings(); len(w) != 0 {
		t.Fatalf("unexpected warnings %v", w)
	}
}

func TestLoadManifestFile(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "manifest.pb")
	data, err := precache.ProtoManifest{}.Encode([]precache.ManifestEntry{{URL: "/", Revision: "7"}})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(manifest, data, 0o600); err != nil {
		t.Fatal(err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load(writeTempConfig(t, `
Origin = "https://a"
ManifestFile = "manifest.pb"
ManifestFormat = "Proto"
Hooks = "SLOG"
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !filepath.IsAbs(cfg.ManifestFile) || filepath.Base(cfg.ManifestFile) != "manifest.pb" {
		t.Fatalf("ManifestFile not resolved: %s", cfg.ManifestFile)
	}
	if cfg.Hooks != HooksSlog {
		t.Fatalf("Hooks = %q", cfg.Hooks)
	}

	entries, err := cfg.Manifest().Load(context.Background())
	if err != nil {
		t.Fatalf("manifest Load: %v", err)
	}
	if len(entries) != 1 || entries[0].Revision != "7" {
		t.Fatalf("entries = %v", entries)
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	cfg := `
Origin = "https://app.example"
AssetTTL = "boom"

[[Precache]]
url = "/"
revision = "1"
`
	if _, err := Load(writeTempConfig(t, cfg)); err == nil {
		t.Fatalf("invalid duration must fail")
	}
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]struct {
		body  string
		field string
	}{
		"no source": {`
[[Precache]]
url = "/"
revision = "1"
`, "Origin"},
		"both sources": {`
Origin = "https://a"
AssetDir = "./dist"
[[Precache]]
url = "/"
revision = "1"
`, "AssetDir"},
		"redis without addr": {`
Origin = "https://a"
Provider = "redis"
[[Precache]]
url = "/"
revision = "1"
`, "RedisAddr"},
		"unknown provider": {`
Origin = "https://a"
Provider = "memcached"
[[Precache]]
url = "/"
revision = "1"
`, "Provider"},
		"duplicate url": {`
Origin = "https://a"
[[Precache]]
url = "/"
revision = "1"
[[Precache]]
url = "/"
revision = "2"
`, "Precache"},
		"empty precache": {`
Origin = "https://a"
`, "Precache"},
		"file and inline list": {`
Origin = "https://a"
ManifestFile = "manifest.json"
[[Precache]]
url = "/"
revision = "1"
`, "ManifestFile"},
		"unknown manifest format": {`
Origin = "https://a"
ManifestFile = "manifest.yaml"
ManifestFormat = "yaml"
`, "ManifestFormat"},
		"unknown hooks": {`
Origin = "https://a"
Hooks = "statsd"
[[Precache]]
url = "/"
revision = "1"
`, "Hooks"},
		"bad level": {`
Origin = "https://a"
LogLevel = "loud"
[[Precache]]
url = "/"
revision = "1"
`, "LogLevel"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeTempConfig(t, tc.body))
			var fe FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("want FieldError, got %v", err)
			}
			if fe.Field != tc.field {
				t.Fatalf("field = %s want %s (%v)", fe.Field, tc.field, err)
			}
		})
	}
}

func TestWarningsOnUniformRevisions(t *testing.T) {
	cfg := `
Origin = "https://app.example"
[[Precache]]
url = "/"
revision = "1"
[[Precache]]
url = "/pwa"
revision = "1"
[[Precache]]
url = "/index.css"
revision = "1"
`
	c, err := Load(writeTempConfig(t, cfg))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	w := c.Warnings()
	if len(w) != 1 || !strings.Contains(w[0], `revision "1"`) {
		t.Fatalf("warnings = %v", w)
	}
}

func TestLoadResolvesAssetDir(t *testing.T) {
	cfg := `
AssetDir = "dist"
[[Precache]]
url = "/"
revision = "1"
`
	c, err := Load(writeTempConfig(t, cfg))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !filepath.IsAbs(c.AssetDir) {
		t.Fatalf("AssetDir not absolute: %s", c.AssetDir)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatalf("missing file must fail")
	}
}
