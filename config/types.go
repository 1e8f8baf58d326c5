package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/unkn0wn-root/precache"
	"github.com/unkn0wn-root/precache/codec"
)

// Duration accepts Go duration strings ("30s", "5m") or plain seconds.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	return fmt.Errorf("invalid duration value: %s", raw)
}

func (d Duration) DurationValue() time.Duration { return time.Duration(d) }

// Provider names accepted by Config.Provider.
const (
	ProviderRistretto = "ristretto"
	ProviderBigCache  = "bigcache"
	ProviderRedis     = "redis"
)

// Logger names accepted by Config.Logger.
const (
	LoggerLogrus = "logrus"
	LoggerZap    = "zap"
)

// Hooks names accepted by Config.Hooks.
const (
	HooksNone = "none"
	HooksSlog = "slog"
)

// Config is the TOML file layout.
type Config struct {
	Namespace   string `mapstructure:"Namespace"`
	ListenAddr  string `mapstructure:"ListenAddr"`
	OfflinePath string `mapstructure:"OfflinePath"`

	// Exactly one of Origin or AssetDir.
	Origin          string   `mapstructure:"Origin"`
	AssetDir        string   `mapstructure:"AssetDir"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
	NetworkFallback bool     `mapstructure:"NetworkFallback"`

	Provider      string   `mapstructure:"Provider"`
	MaxCacheBytes int64    `mapstructure:"MaxCacheBytes"`
	RedisAddr     string   `mapstructure:"RedisAddr"`
	RedisPassword string   `mapstructure:"RedisPassword"`
	RedisDB       int      `mapstructure:"RedisDB"`
	AssetCodec    string   `mapstructure:"AssetCodec"`
	AssetTTL      Duration `mapstructure:"AssetTTL"`
	MaxAssetSize  int      `mapstructure:"MaxAssetSize"`

	InstallConcurrency int      `mapstructure:"InstallConcurrency"`
	AutoTakeover       bool     `mapstructure:"AutoTakeover"`
	EvictionPoll       Duration `mapstructure:"EvictionPoll"`

	// Hooks reports controller events; "slog" logs them through log/slog
	// on a bounded background queue.
	Hooks           string `mapstructure:"Hooks"`
	HookQueue       int    `mapstructure:"HookQueue"`
	HookSampleEvery uint64 `mapstructure:"HookSampleEvery"`

	Logger        string `mapstructure:"Logger"`
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`

	// Either an inline Precache list or a ManifestFile written by the build.
	// ManifestFile is re-read on every reload.
	Precache       []precache.ManifestEntry `mapstructure:"Precache"`
	ManifestFile   string                   `mapstructure:"ManifestFile"`
	ManifestFormat string                   `mapstructure:"ManifestFormat"`
}

// Manifest returns the manifest source: ManifestFile when set, otherwise the
// inline precache list.
func (c *Config) Manifest() precache.ManifestSource {
	if c.ManifestFile != "" {
		mc, _ := manifestCodec(c.ManifestFormat)
		return precache.FileManifest{Path: c.ManifestFile, Codec: mc}
	}
	return precache.StaticManifest(c.Precache)
}

func manifestCodec(format string) (codec.Codec[[]precache.ManifestEntry], error) {
	switch format {
	case "", "json":
		return codec.JSON[[]precache.ManifestEntry]{}, nil
	case "msgpack":
		return codec.Msgpack[[]precache.ManifestEntry]{}, nil
	case "cbor":
		c, err := codec.NewCBOR[[]precache.ManifestEntry](false)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "proto":
		return precache.ProtoManifest{}, nil
	default:
		return nil, fmt.Errorf("unknown manifest format %q", format)
	}
}

// Warnings reports suspicious but valid settings.
func (c *Config) Warnings() []string {
	var out []string
	if len(c.Precache) > 1 {
		same := true
		for _, e := range c.Precache[1:] {
			if e.Revision != c.Precache[0].Revision {
				same = false
				break
			}
		}
		if same {
			out = append(out, fmt.Sprintf(
				"all %d precache entries share revision %q; changed assets will not be refetched until their revision changes",
				len(c.Precache), c.Precache[0].Revision))
		}
	}
	if c.Provider == ProviderBigCache && c.AssetTTL.DurationValue() > 0 {
		out = append(out, "bigcache applies one global life window; AssetTTL is used as that window")
	}
	return out
}
