package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/newthinker/stock-mcp/internal/calendar"
	"github.com/newthinker/stock-mcp/internal/core"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. STOCKMCP_FETCH_PACING.
const EnvPrefix = "STOCKMCP"

type Config struct {
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Upstream UpstreamConfig `mapstructure:"upstream" yaml:"upstream"`
	Fetch    FetchConfig    `mapstructure:"fetch" yaml:"fetch"`
	Cache    CacheConfig    `mapstructure:"cache" yaml:"cache"`
	Calendar CalendarConfig `mapstructure:"calendar" yaml:"calendar"`
	Market   MarketConfig   `mapstructure:"market" yaml:"market"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
	File        string `mapstructure:"file" yaml:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// UpstreamConfig selects and configures the table source.
type UpstreamConfig struct {
	Source      string        `mapstructure:"source" yaml:"source"` // aktools or eastmoney
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	IndexSymbol string        `mapstructure:"index_symbol" yaml:"index_symbol"` // index list queried for spot quotes
}

// FetchConfig tunes the retry executor.
type FetchConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
	Pacing      time.Duration `mapstructure:"pacing" yaml:"pacing"`
	CallTimeout time.Duration `mapstructure:"call_timeout" yaml:"call_timeout"`
}

type CacheConfig struct {
	DefaultTTL   time.Duration            `mapstructure:"default_ttl" yaml:"default_ttl"`
	TTL          map[string]time.Duration `mapstructure:"ttl" yaml:"ttl"`
	MaxEntries   int                      `mapstructure:"max_entries" yaml:"max_entries"`
	ReapSchedule string                   `mapstructure:"reap_schedule" yaml:"reap_schedule"` // cron spec, empty disables
}

type CalendarConfig struct {
	Holidays []string `mapstructure:"holidays" yaml:"holidays"`
}

// MarketConfig holds breadth classification thresholds in percent.
type MarketConfig struct {
	LimitThreshold    float64 `mapstructure:"limit_threshold" yaml:"limit_threshold"`
	StrongThreshold   float64 `mapstructure:"strong_threshold" yaml:"strong_threshold"`
	ModerateThreshold float64 `mapstructure:"moderate_threshold" yaml:"moderate_threshold"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// Load reads configuration from file layered over Defaults. An empty path
// loads defaults and environment overrides only.
func Load(path string) (*Config, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unmarshaling config: %w", err))
	}

	return &cfg, nil
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	base, err := Defaults().YAML()
	if err != nil {
		return nil, err
	}
	if err := v.ReadConfig(bytes.NewReader(base)); err != nil {
		return nil, fmt.Errorf("reading defaults: %w", err)
	}

	// Support environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		return v, nil
	}
	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("reading config: %w", err))
		}
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("reading config: %w", err))
	}
	return v, nil
}

// Watch calls fn with every valid configuration written to path after the
// call. Invalid edits are logged and skipped.
func Watch(path string, logger *zap.Logger, fn func(*Config)) error {
	if path == "" {
		return core.WrapError(core.ErrConfigMissing, errors.New("watch needs a config file"))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	v, err := newViper(path)
	if err != nil {
		return err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := Load(path)
		if err == nil {
			err = cfg.Validate()
		}
		if err != nil {
			logger.Warn("ignoring config change", zap.String("file", e.Name), zap.Error(err))
			return
		}
		logger.Info("config reloaded", zap.String("file", e.Name))
		fn(cfg)
	})
	v.WatchConfig()
	return nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Upstream: UpstreamConfig{
			Source:      "aktools",
			BaseURL:     "http://127.0.0.1:8080",
			Timeout:     15 * time.Second,
			IndexSymbol: "沪深重要指数",
		},
		Fetch: FetchConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			Pacing:      500 * time.Millisecond,
			CallTimeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			DefaultTTL:   60 * time.Second,
			TTL:          map[string]time.Duration{"market_data": 60 * time.Second},
			ReapSchedule: "@every 1m",
		},
		Market: MarketConfig{
			LimitThreshold:    9.9,
			StrongThreshold:   7,
			ModerateThreshold: 5,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
			Path:    "/metrics",
		},
	}
}

// YAML renders the configuration as a config file.
func (c *Config) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return buf.Bytes(), nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Log validation
	if c.Log.Level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("log.level %q", c.Log.Level))
		}
	}

	// Upstream validation
	if c.Upstream.Source == "" {
		return core.WrapError(core.ErrConfigMissing, errors.New("upstream.source required"))
	}
	if c.Upstream.BaseURL != "" {
		if u, err := url.Parse(c.Upstream.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("upstream.base_url %q must be an absolute URL", c.Upstream.BaseURL))
		}
	}

	// Fetch validation
	if c.Fetch.MaxAttempts < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("fetch.max_attempts must be at least 1, got %d", c.Fetch.MaxAttempts))
	}
	if c.Fetch.BaseDelay < 0 || c.Fetch.Pacing < 0 || c.Fetch.CallTimeout < 0 || c.Upstream.Timeout < 0 {
		return core.WrapError(core.ErrConfigInvalid, errors.New("fetch and upstream durations cannot be negative"))
	}

	// Cache validation
	if c.Cache.DefaultTTL <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("cache.default_ttl must be positive, got %s", c.Cache.DefaultTTL))
	}
	for ns, ttl := range c.Cache.TTL {
		if ttl <= 0 {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("cache.ttl.%s must be positive, got %s", ns, ttl))
		}
	}
	if c.Cache.MaxEntries < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("cache.max_entries cannot be negative, got %d", c.Cache.MaxEntries))
	}

	// Calendar validation
	for _, h := range c.Calendar.Holidays {
		if _, err := calendar.ParseDate(h); err != nil {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("calendar.holidays: %w", err))
		}
	}

	// Market validation
	m := c.Market
	if m.ModerateThreshold <= 0 || m.StrongThreshold < m.ModerateThreshold || m.LimitThreshold < m.StrongThreshold {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("market thresholds must satisfy 0 < moderate <= strong <= limit, got %g/%g/%g",
				m.ModerateThreshold, m.StrongThreshold, m.LimitThreshold))
	}

	// Metrics validation
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return core.WrapError(core.ErrConfigMissing, errors.New("metrics.addr required when metrics are enabled"))
	}

	return nil
}
