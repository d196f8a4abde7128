// Package httpjson provides a generic polling source for JSON price APIs.
package httpjson

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/woodser/haveno-pricenode/pkg/server/sources"
	"github.com/woodser/haveno-pricenode/pkg/version"
)

const (
	defaultInterval    = time.Minute
	defaultTimeout     = 10 * time.Second
	defaultMinInterval = time.Second
	invertPrecision    = 8
	maxBodySize        = 4 << 20
)

func init() {
	sources.Register("http.json", NewSource)
}

// Source polls a JSON endpoint and extracts one price per pair with a gjson path.
type Source struct {
	*sources.BaseSource

	url           string
	interval      time.Duration
	headers       map[string]string
	invert        map[string]bool
	timestampPath string
	limiter       *rate.Limiter
	client        *http.Client
}

// NewSource creates a Source from config. Expected keys:
//
//	url:            endpoint to poll
//	pairs:          { "XMR/USD": "monero.usd" } unified symbol -> gjson path
//	invert:         [ "BTC/ARS" ] pairs whose extracted value is counter/base
//	timestamp_path: optional gjson path of a unix timestamp (s or ms)
//	interval:       poll period, default 1m
//	timeout:        request timeout, default 10s
//	min_interval:   minimum spacing between requests, default 1s
//	headers:        extra request headers
func NewSource(config map[string]interface{}) (sources.Source, error) {
	common, err := sources.ParseCommonConfig(config)
	if err != nil {
		return nil, err
	}

	url := sources.GetString(config, "url", "")
	if url == "" {
		return nil, fmt.Errorf("%w: missing 'url'", sources.ErrInvalidConfig)
	}

	pairs, err := sources.ParsePairsFromMap(config)
	if err != nil {
		return nil, err
	}

	invert := make(map[string]bool)
	if list, ok := config["invert"].([]interface{}); ok {
		for _, item := range list {
			symbol, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: invert entries must be strings", sources.ErrInvalidConfig)
			}
			symbol = sources.NormalizeSymbol(symbol)
			if _, ok := pairs[symbol]; !ok {
				return nil, fmt.Errorf("%w: invert %s is not a configured pair", sources.ErrInvalidConfig, symbol)
			}
			invert[symbol] = true
		}
	}

	headers := make(map[string]string)
	if raw, ok := config["headers"].(map[string]interface{}); ok {
		for k, v := range raw {
			headers[k] = fmt.Sprint(v)
		}
	}

	minInterval := sources.GetDuration(config, "min_interval", defaultMinInterval)
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}

	base := sources.NewBaseSource(common.Name, sources.SourceTypeHTTP, pairs, sources.GetLoggerFromConfig(config))
	base.ApplyCommon(common)

	return &Source{
		BaseSource:    base,
		url:           url,
		interval:      sources.GetDuration(config, "interval", defaultInterval),
		headers:       headers,
		invert:        invert,
		timestampPath: sources.GetString(config, "timestamp_path", ""),
		limiter:       rate.NewLimiter(limit, 1),
		client: &http.Client{
			Timeout: sources.GetDuration(config, "timeout", defaultTimeout),
		},
	}, nil
}

// Initialize prepares the source.
func (s *Source) Initialize(_ context.Context) error {
	return nil
}

// Start fetches once and then polls every interval.
func (s *Source) Start(ctx context.Context) error {
	s.Logger().Info("Starting HTTP JSON source", "url", s.url, "interval", s.interval.String())

	if err := s.fetchWithRetries(ctx); err != nil {
		s.Logger().Warn("Initial rate fetch failed after retries", "error", err)
	}

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
				_ = s.fetchWithRetries(ctx)
			}
		}
	}()

	return nil
}

// Stop stops polling.
func (s *Source) Stop() error {
	s.Close()
	return nil
}

func (s *Source) fetchWithRetries(ctx context.Context) error {
	return s.RetryWithBackoff(ctx, "fetch", func() error {
		return s.fetch(ctx)
	})
}

func (s *Source) fetch(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", version.AgentString())
	req.Header.Set("Accept", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch rates: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", sources.ErrRateLimitExceeded, s.url)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", sources.ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	return s.extract(body, time.Now())
}

// extract stores every pair whose path resolves to a positive number.
func (s *Source) extract(body []byte, now time.Time) error {
	if !gjson.ValidBytes(body) {
		return fmt.Errorf("%w: not JSON", sources.ErrInvalidResponse)
	}

	ts := now
	if s.timestampPath != "" {
		if v := gjson.GetBytes(body, s.timestampPath); v.Exists() {
			ts = parseTimestamp(v.Int(), now)
		}
	}

	extracted := 0
	for symbol, path := range s.GetAllPairs() {
		value := gjson.GetBytes(body, path)
		if !value.Exists() {
			s.Logger().Debug("Path not found", "symbol", symbol, "path", path)
			continue
		}
		price := value.Float()
		if price <= 0 {
			s.Logger().Warn("Ignoring non-positive price", "symbol", symbol, "raw", value.Raw)
			continue
		}
		if s.invert[symbol] {
			price = invertPrice(price)
		}

		base, counter, err := sources.ParseSymbol(symbol)
		if err != nil {
			continue
		}
		if err := s.SetRate(base, counter, price, ts); err != nil {
			s.Logger().Warn("Rejected rate", "symbol", symbol, "error", err)
			continue
		}
		extracted++
	}

	if extracted == 0 {
		return fmt.Errorf("%w: %s", sources.ErrNoPricesExtracted, s.url)
	}
	s.Logger().Debug("Updated rates", "count", extracted)
	return nil
}

func invertPrice(price float64) float64 {
	return decimal.NewFromInt(1).DivRound(decimal.NewFromFloat(price), invertPrecision).InexactFloat64()
}

// parseTimestamp accepts seconds or milliseconds and falls back to now.
func parseTimestamp(v int64, now time.Time) time.Time {
	switch {
	case v <= 0:
		return now
	case v > 1e12:
		return time.UnixMilli(v)
	default:
		return time.Unix(v, 0)
	}
}
