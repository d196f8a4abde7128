// Package static provides a rate source serving fixed prices from configuration.
package static

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/woodser/haveno-pricenode/pkg/server/sources"
)

// ErrInvalidRate indicates a configured rate that is not a decimal number.
var ErrInvalidRate = errors.New("invalid static rate")

const defaultInterval = time.Minute

func init() {
	sources.Register("static.fixed", NewFixedSource)
}

// FixedSource serves configured rates, restamping them every interval so
// they never go stale.
type FixedSource struct {
	*sources.BaseSource

	prices   map[string]float64
	interval time.Duration
}

// NewFixedSource creates a FixedSource from config. Expected keys:
//
//	rates:    { "XMR/USD": "150.25", "BTC/USD": 65000 }
//	interval: refresh period, default 1m
func NewFixedSource(config map[string]interface{}) (sources.Source, error) {
	common, err := sources.ParseCommonConfig(config)
	if err != nil {
		return nil, err
	}

	raw, ok := config["rates"].(map[string]interface{})
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("%w: 'rates' must be a non-empty map", sources.ErrInvalidConfig)
	}

	prices := make(map[string]float64, len(raw))
	pairs := make(map[string]string, len(raw))
	for symbol, v := range raw {
		if err := sources.ValidateSymbolFormat(symbol); err != nil {
			return nil, err
		}
		price, err := parsePrice(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", symbol, err)
		}
		unified := sources.NormalizeSymbol(symbol)
		prices[unified] = price
		pairs[unified] = fmt.Sprint(v)
	}

	base := sources.NewBaseSource(common.Name, sources.SourceTypeStatic, pairs, sources.GetLoggerFromConfig(config))
	base.ApplyCommon(common)

	return &FixedSource{
		BaseSource: base,
		prices:     prices,
		interval:   sources.GetDuration(config, "interval", defaultInterval),
	}, nil
}

func parsePrice(v interface{}) (float64, error) {
	var d decimal.Decimal
	switch p := v.(type) {
	case string:
		parsed, err := decimal.NewFromString(p)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidRate, p)
		}
		d = parsed
	case float64:
		d = decimal.NewFromFloat(p)
	case int:
		d = decimal.NewFromInt(int64(p))
	default:
		return 0, fmt.Errorf("%w: %T", ErrInvalidRate, v)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: %s is negative", ErrInvalidRate, d.String())
	}
	return d.InexactFloat64(), nil
}

// Initialize prepares the source.
func (s *FixedSource) Initialize(_ context.Context) error {
	return nil
}

// Start publishes the configured rates and restamps them every interval.
func (s *FixedSource) Start(ctx context.Context) error {
	s.Logger().Info("Starting static source", "symbols", len(s.Symbols()), "interval", s.interval.String())
	s.refresh()

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.StopChan():
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.refresh()
			}
		}
	}()
	return nil
}

// Stop stops the refresh loop.
func (s *FixedSource) Stop() error {
	s.Close()
	return nil
}

func (s *FixedSource) refresh() {
	now := time.Now()
	for symbol, price := range s.prices {
		base, counter, err := sources.ParseSymbol(symbol)
		if err != nil {
			continue
		}
		if err := s.SetRate(base, counter, price, now); err != nil {
			s.Logger().Warn("Rejected static rate", "symbol", symbol, "error", err)
		}
	}
	s.SetHealthy(true)
}
