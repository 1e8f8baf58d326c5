package config

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/precache"
)

// Validate checks field values and the precache list.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Namespace) == "" {
		return newFieldError("Namespace", "must not be empty")
	}
	if strings.ContainsAny(c.Namespace, " \t\n") {
		return newFieldError("Namespace", "must not contain whitespace")
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		return newFieldError("ListenAddr", "must not be empty")
	}

	switch {
	case c.Origin == "" && c.AssetDir == "":
		return newFieldError("Origin", "one of Origin or AssetDir is required")
	case c.Origin != "" && c.AssetDir != "":
		return newFieldError("AssetDir", "cannot be combined with Origin")
	}
	if c.NetworkFallback && c.Origin == "" {
		return newFieldError("NetworkFallback", "requires Origin")
	}

	switch c.Provider {
	case ProviderRistretto, ProviderBigCache:
		if c.MaxCacheBytes <= 0 {
			return newFieldError("MaxCacheBytes", "must be > 0")
		}
	case ProviderRedis:
		if c.RedisAddr == "" {
			return newFieldError("RedisAddr", "required for the redis provider")
		}
	default:
		return newFieldError("Provider", fmt.Sprintf("unknown provider %q", c.Provider))
	}

	switch c.AssetCodec {
	case "msgpack", "cbor", "json":
	default:
		return newFieldError("AssetCodec", fmt.Sprintf("unknown codec %q", c.AssetCodec))
	}

	if c.InstallConcurrency < 0 {
		return newFieldError("InstallConcurrency", "must be >= 0")
	}
	if c.MaxAssetSize < 0 {
		return newFieldError("MaxAssetSize", "must be >= 0")
	}

	switch c.Hooks {
	case "", HooksNone, HooksSlog:
	default:
		return newFieldError("Hooks", fmt.Sprintf("unknown hooks %q", c.Hooks))
	}
	if c.HookQueue < 0 {
		return newFieldError("HookQueue", "must be >= 0")
	}

	switch c.Logger {
	case LoggerLogrus, LoggerZap:
	default:
		return newFieldError("Logger", fmt.Sprintf("unknown logger %q", c.Logger))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return newFieldError("LogLevel", err.Error())
	}

	if _, err := manifestCodec(c.ManifestFormat); err != nil {
		return newFieldError("ManifestFormat", err.Error())
	}
	if c.ManifestFile != "" {
		if len(c.Precache) > 0 {
			return newFieldError("ManifestFile", "cannot be combined with Precache")
		}
		return nil
	}
	if len(c.Precache) == 0 {
		return newFieldError("Precache", "at least one entry is required (or set ManifestFile)")
	}
	m, err := precache.NewManifest(c.Precache)
	if err != nil {
		return newFieldError("Precache", err.Error())
	}
	c.Precache = m
	return nil
}
