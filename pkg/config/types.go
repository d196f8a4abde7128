package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure
type Config struct {
	Server       ServerConfig        `yaml:"server"`
	Aggregation  AggregationConfig   `yaml:"aggregation"`
	Currencies   CurrenciesConfig    `yaml:"currencies"`
	Sources      []SourceConfig      `yaml:"sources"      validate:"dive"`
	Transformers []TransformerConfig `yaml:"transformers" validate:"dive"`
	Publish      PublishConfig       `yaml:"publish"`
	Metrics      MetricsConfig       `yaml:"metrics"`
	Logging      LoggingConfig       `yaml:"logging"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	HTTP      HTTPConfig      `yaml:"http"`
	WebSocket WSConfig        `yaml:"websocket"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	// Version is reported by /version.
	Version string `yaml:"version" validate:"required"`
}

// HTTPConfig configures the HTTP server
type HTTPConfig struct {
	Addr         string    `yaml:"addr"          validate:"required"`
	ReadTimeout  Duration  `yaml:"read_timeout"  validate:"gte=0"`
	WriteTimeout Duration  `yaml:"write_timeout" validate:"gte=0"`
	TLS          TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate configuration
type TLSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cert    string `yaml:"cert"    validate:"required_if=Enabled true"`
	Key     string `yaml:"key"     validate:"required_if=Enabled true"`
}

// WSConfig configures the snapshot WebSocket stream
type WSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// RateLimitConfig configures per-client request limiting
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gt=0"`
	Burst             int     `yaml:"burst"               validate:"gt=0"`
}

// AggregationConfig configures consensus and pivot translation
type AggregationConfig struct {
	// OutlierStdDev is the k in mean ± k·σ. Unset means 1.1.
	OutlierStdDev *float64 `yaml:"outlier_std_dev" validate:"required,gt=0"`
	Pivot         string   `yaml:"pivot"           validate:"required,uppercase"`
	CryptoBridge  string   `yaml:"crypto_bridge"   validate:"required,uppercase"`
	FiatBridge    string   `yaml:"fiat_bridge"     validate:"required,uppercase"`
	// LogWindow is how often outlier details are logged at info level.
	LogWindow Duration `yaml:"log_window" validate:"gt=0"`
}

// CurrenciesConfig lists the currency codes the node classifies
type CurrenciesConfig struct {
	Crypto []string `yaml:"crypto" validate:"min=1,dive,required"`
	Fiat   []string `yaml:"fiat"   validate:"min=1,dive,required"`
}

// SourceConfig configures a rate source
type SourceConfig struct {
	Type    string                 `yaml:"type"    validate:"required,oneof=static http ws"`
	Format  string                 `yaml:"format"  validate:"required"`
	Name    string                 `yaml:"name"    validate:"required"`
	Prefix  string                 `yaml:"prefix"`
	Enabled bool                   `yaml:"enabled"`
	MaxAge  Duration               `yaml:"max_age" validate:"gte=0"`
	Config  map[string]interface{} `yaml:"config"`
}

// TransformerConfig configures a post-translation rate transformer
type TransformerConfig struct {
	Type         string    `yaml:"type"          validate:"required,oneof=parallel_market"`
	Currency     string    `yaml:"currency"      validate:"required,uppercase"`
	NativeSource string    `yaml:"native_source"`
	Gap          GapConfig `yaml:"gap"`
}

// GapConfig configures the HTTP endpoint a parallel-market gap is read from
type GapConfig struct {
	URL          string   `yaml:"url"           validate:"required,url"`
	OfficialPath string   `yaml:"official_path" validate:"required"`
	ParallelPath string   `yaml:"parallel_path" validate:"required"`
	Interval     Duration `yaml:"interval"      validate:"gte=0"`
	MaxAge       Duration `yaml:"max_age"       validate:"gte=0"`
	Timeout      Duration `yaml:"timeout"       validate:"gte=0"`
}

// PublishConfig configures periodic snapshot publishing
type PublishConfig struct {
	Enabled  bool        `yaml:"enabled"`
	Interval Duration    `yaml:"interval" validate:"gt=0"`
	Redis    RedisConfig `yaml:"redis"`
}

// RedisConfig configures the redis snapshot publisher
type RedisConfig struct {
	URL     string   `yaml:"url"     validate:"omitempty,url"`
	Key     string   `yaml:"key"`
	Channel string   `yaml:"channel"`
	TTL     Duration `yaml:"ttl"     validate:"gte=0"`
}

// MetricsConfig configures Prometheus metrics
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path" validate:"required,startswith=/"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level"  validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
	Output string `yaml:"output" validate:"required"`
}

// Duration is a wrapper around time.Duration for YAML parsing
type Duration time.Duration

// UnmarshalYAML accepts a duration string such as "30s".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	td, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(td)
	return nil
}

// ToDuration converts Duration to time.Duration
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}
