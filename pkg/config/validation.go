package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks configuration for errors
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fieldError(err)
	}

	if err := validateCurrencies(cfg); err != nil {
		return fmt.Errorf("aggregation config: %w", err)
	}

	if err := validateSources(cfg.Sources); err != nil {
		return fmt.Errorf("sources config: %w", err)
	}

	seen := make(map[string]bool, len(cfg.Transformers))
	for _, t := range cfg.Transformers {
		if seen[t.Currency] {
			return fmt.Errorf("%w: %s", ErrDuplicateTransformer, t.Currency)
		}
		seen[t.Currency] = true
	}

	if cfg.Publish.Enabled && cfg.Publish.Redis.URL == "" {
		return fmt.Errorf("%w", ErrRedisURLRequired)
	}

	return nil
}

func fieldError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed '%s'", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidField, strings.Join(msgs, "; "))
}

func validateCurrencies(cfg *Config) error {
	crypto := upperSet(cfg.Currencies.Crypto)
	fiat := upperSet(cfg.Currencies.Fiat)
	for code := range crypto {
		if fiat[code] {
			return fmt.Errorf("%w: %s", ErrAmbiguousCurrency, code)
		}
	}

	agg := cfg.Aggregation
	if agg.Pivot == agg.CryptoBridge || agg.Pivot == agg.FiatBridge || agg.CryptoBridge == agg.FiatBridge {
		return fmt.Errorf("%w: %s, %s, %s", ErrBridgeIsPivot, agg.Pivot, agg.CryptoBridge, agg.FiatBridge)
	}
	for _, code := range []string{agg.Pivot, agg.CryptoBridge, agg.FiatBridge} {
		if !crypto[code] && !fiat[code] {
			return fmt.Errorf("%w: %s", ErrUnclassifiedCurrency, code)
		}
	}
	if !crypto[agg.CryptoBridge] {
		return fmt.Errorf("%w: %s", ErrCryptoBridgeNotCrypto, agg.CryptoBridge)
	}
	return nil
}

func validateSources(sources []SourceConfig) error {
	names := make(map[string]bool, len(sources))
	enabled := 0
	for _, s := range sources {
		if names[s.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateSourceName, s.Name)
		}
		names[s.Name] = true
		if s.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("%w", ErrNoSourcesEnabled)
	}
	return nil
}

func upperSet(codes []string) map[string]bool {
	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		set[strings.ToUpper(strings.TrimSpace(c))] = true
	}
	return set
}
