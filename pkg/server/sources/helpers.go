package sources

import (
	"fmt"
	"strings"
	"time"

	"github.com/woodser/haveno-pricenode/pkg/logging"
)

// CommonConfig holds the keys main.go injects into every source config map.
type CommonConfig struct {
	Name   string
	Prefix string
	MaxAge time.Duration
}

// ParseCommonConfig reads name, prefix and max_age from a source config map.
// The prefix defaults to the name.
func ParseCommonConfig(config map[string]interface{}) (CommonConfig, error) {
	common := CommonConfig{
		Name:   GetString(config, "name", ""),
		Prefix: GetString(config, "prefix", ""),
		MaxAge: GetDuration(config, "max_age", 0),
	}
	if common.Name == "" {
		return common, fmt.Errorf("%w: missing 'name'", ErrInvalidConfig)
	}
	if common.Prefix == "" {
		common.Prefix = common.Name
	}
	return common, nil
}

// GetLoggerFromConfig returns the logger main.go injects under "logger", falling
// back to the global logger.
func GetLoggerFromConfig(config map[string]interface{}) *logging.Logger {
	if loggerInterface, ok := config["logger"]; ok {
		if logger, ok := loggerInterface.(*logging.Logger); ok {
			return logger
		}
	}
	return logging.Global()
}

// ParsePairsFromMap extracts pair mappings from config where pairs is a map.
// Expected format: pairs: { "XMR/USDT": "data.XMR.USDT", "BTC/USD": "bitcoin.usd" }.
// Unified symbols are normalized, so XMR/USDT is stored as XMR/USD.
func ParsePairsFromMap(config map[string]interface{}) (map[string]string, error) {
	pairsRaw, ok := config["pairs"]
	if !ok {
		return nil, fmt.Errorf("%w: 'pairs' key", ErrInvalidConfig)
	}

	pairsMap, ok := pairsRaw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: pairs must be map[string]string", ErrInvalidConfig)
	}

	pairs := make(map[string]string, len(pairsMap))
	for unified, sourceRaw := range pairsMap {
		source, ok := sourceRaw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s is %T", ErrInvalidConfig, unified, sourceRaw)
		}
		if err := ValidateSymbolFormat(unified); err != nil {
			return nil, fmt.Errorf("unified symbol: %w", err)
		}
		pairs[NormalizeSymbol(unified)] = source
	}

	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w", ErrNoPairsConfigured)
	}

	return pairs, nil
}

// GetString returns a string config value or def.
func GetString(m map[string]interface{}, key, def string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return def
}

// GetDuration accepts a time.Duration, a duration string ("30s") or a number of seconds.
func GetDuration(m map[string]interface{}, key string, def time.Duration) time.Duration {
	switch v := m[key].(type) {
	case time.Duration:
		return v
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return def
		}
		return d
	case int:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	default:
		return def
	}
}

// ValidateSymbolFormat checks if a symbol is in valid BASE/QUOTE format
// Valid formats:
//   - "XMR/USD", "BTC/USDT" (crypto pairs)
//   - "BTC/ARS", "EUR/USD" (fiat pairs)
//
// Invalid formats:
//   - "XMR" (no quote currency)
//   - "XMRUSD" (no separator)
//   - "" (empty).
func ValidateSymbolFormat(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("%w", ErrInvalidSymbolFormat)
	}

	parts := strings.Split(symbol, "/")
	if len(parts) != 2 {
		return fmt.Errorf("%w: %s", ErrInvalidSymbolFormat, symbol)
	}

	base := strings.TrimSpace(parts[0])
	quote := strings.TrimSpace(parts[1])

	if base == "" {
		return fmt.Errorf("%w: %s", ErrEmptyBaseCurrency, symbol)
	}
	if quote == "" {
		return fmt.Errorf("%w: %s", ErrEmptyQuoteCurrency, symbol)
	}
	if strings.EqualFold(base, quote) {
		return fmt.Errorf("%w: %s", ErrSameCurrency, symbol)
	}

	return nil
}

// ParseSymbol splits a unified symbol into its normalized base and counter codes.
func ParseSymbol(symbol string) (string, string, error) {
	if err := ValidateSymbolFormat(symbol); err != nil {
		return "", "", err
	}
	parts := strings.Split(NormalizeSymbol(symbol), "/")
	return parts[0], parts[1], nil
}
