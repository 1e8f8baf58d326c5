// Package config loads the precache server's TOML configuration.
package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load reads path (default "precache.toml"), applies defaults and validates.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "precache.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.AssetDir != "" {
		abs, err := filepath.Abs(cfg.AssetDir)
		if err != nil {
			return nil, fmt.Errorf("resolve AssetDir: %w", err)
		}
		cfg.AssetDir = abs
	}
	if cfg.ManifestFile != "" {
		abs, err := filepath.Abs(cfg.ManifestFile)
		if err != nil {
			return nil, fmt.Errorf("resolve ManifestFile: %w", err)
		}
		cfg.ManifestFile = abs
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("Namespace", "shell")
	v.SetDefault("ListenAddr", ":8080")
	v.SetDefault("Provider", ProviderRistretto)
	v.SetDefault("MaxCacheBytes", 256<<20)
	v.SetDefault("AssetCodec", "msgpack")
	v.SetDefault("InstallConcurrency", 8)
	v.SetDefault("EvictionPoll", "25ms")
	v.SetDefault("UpstreamTimeout", "30s")
	v.SetDefault("Hooks", HooksNone)
	v.SetDefault("HookQueue", 1024)
	v.SetDefault("Logger", LoggerLogrus)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
}

func applyDefaults(c *Config) {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	c.Logger = strings.ToLower(strings.TrimSpace(c.Logger))
	c.AssetCodec = strings.ToLower(strings.TrimSpace(c.AssetCodec))
	c.ManifestFormat = strings.ToLower(strings.TrimSpace(c.ManifestFormat))
	c.Hooks = strings.ToLower(strings.TrimSpace(c.Hooks))
	if c.Hooks == "" {
		c.Hooks = HooksNone
	}
	if c.UpstreamTimeout.DurationValue() == 0 {
		c.UpstreamTimeout = Duration(30 * time.Second)
	}
	if c.EvictionPoll.DurationValue() <= 0 {
		c.EvictionPoll = Duration(25 * time.Millisecond)
	}
	if c.AssetTTL.DurationValue() < 0 {
		c.AssetTTL = Duration(0)
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("cannot parse duration: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("unsupported duration type: %T", v)
		}
	}
}
