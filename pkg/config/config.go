package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/woodser/haveno-pricenode/pkg/version"
)

// DefaultOutlierStdDev is used when aggregation.outlier_std_dev is unset.
const DefaultOutlierStdDev = 1.1

// Load loads configuration from YAML file and environment variables.
func Load(path string) (*Config, error) {
	// Validate and sanitize path
	cleanPath := filepath.Clean(path)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	data, err := os.ReadFile(absPath) // #nosec G304 -- Path sanitized with filepath.Clean and filepath.Abs
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse expands environment variables in data, decodes it and applies defaults.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// applyDefaults sets default values for optional fields.
func applyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.HTTP.Addr == "" {
		cfg.Server.HTTP.Addr = ":8080"
	}
	if cfg.Server.HTTP.ReadTimeout == 0 {
		cfg.Server.HTTP.ReadTimeout = Duration(15 * time.Second)
	}
	if cfg.Server.HTTP.WriteTimeout == 0 {
		cfg.Server.HTTP.WriteTimeout = Duration(15 * time.Second)
	}
	if cfg.Server.Version == "" {
		cfg.Server.Version = version.Version
	}
	if cfg.Server.WebSocket.Path == "" {
		cfg.Server.WebSocket.Path = "/ws"
	}
	if cfg.Server.RateLimit.RequestsPerSecond == 0 {
		cfg.Server.RateLimit.RequestsPerSecond = 10
	}
	if cfg.Server.RateLimit.Burst == 0 {
		cfg.Server.RateLimit.Burst = 20
	}

	// Aggregation defaults
	if cfg.Aggregation.OutlierStdDev == nil {
		k := DefaultOutlierStdDev
		cfg.Aggregation.OutlierStdDev = &k
	}
	if cfg.Aggregation.Pivot == "" {
		cfg.Aggregation.Pivot = "XMR"
	}
	if cfg.Aggregation.CryptoBridge == "" {
		cfg.Aggregation.CryptoBridge = "BTC"
	}
	if cfg.Aggregation.FiatBridge == "" {
		cfg.Aggregation.FiatBridge = "USD"
	}
	if cfg.Aggregation.LogWindow == 0 {
		cfg.Aggregation.LogWindow = Duration(5 * time.Minute)
	}
	cfg.Aggregation.Pivot = strings.ToUpper(cfg.Aggregation.Pivot)
	cfg.Aggregation.CryptoBridge = strings.ToUpper(cfg.Aggregation.CryptoBridge)
	cfg.Aggregation.FiatBridge = strings.ToUpper(cfg.Aggregation.FiatBridge)

	// Source defaults
	for i := range cfg.Sources {
		src := &cfg.Sources[i]
		src.Type = strings.ToLower(src.Type)
		if src.Format == "" {
			src.Format = defaultFormat(src.Type)
		}
		if src.Prefix == "" {
			src.Prefix = src.Name
		}
	}

	for i := range cfg.Transformers {
		cfg.Transformers[i].Currency = strings.ToUpper(cfg.Transformers[i].Currency)
	}

	// Publish defaults
	if cfg.Publish.Interval == 0 {
		cfg.Publish.Interval = Duration(time.Minute)
	}

	// Metrics defaults
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)
}

func defaultFormat(sourceType string) string {
	if sourceType == "static" {
		return "fixed"
	}
	return "json"
}

// EnabledSources returns the enabled sources in configuration order.
func (c *Config) EnabledSources() []SourceConfig {
	out := make([]SourceConfig, 0, len(c.Sources))
	for _, s := range c.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// FactoryConfig returns the map handed to the source factory: the source's own
// config plus name, prefix and max_age. The caller adds the logger.
func (sc *SourceConfig) FactoryConfig() map[string]interface{} {
	out := make(map[string]interface{}, len(sc.Config)+3)
	for k, v := range sc.Config {
		out[k] = v
	}
	out["name"] = sc.Name
	out["prefix"] = sc.Prefix
	out["max_age"] = sc.MaxAge.ToDuration()
	return out
}

// OutlierStdDevValue returns the configured multiplier, or the default when unset.
func (a AggregationConfig) OutlierStdDevValue() float64 {
	if a.OutlierStdDev == nil {
		return DefaultOutlierStdDev
	}
	return *a.OutlierStdDev
}
