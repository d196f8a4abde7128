package sources

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/woodser/haveno-pricenode/pkg/logging"
	"github.com/woodser/haveno-pricenode/pkg/metrics"
)

// BaseSource provides common functionality for all rate sources
type BaseSource struct {
	name          string
	prefix        string
	sourcetype    SourceType
	symbols       []string
	pairs         map[string]string // unified symbol -> source-specific symbol mapping
	rates         map[string]Rate
	ratesMu       sync.RWMutex
	maxAge        time.Duration
	lastUpdate    time.Time
	updateMu      sync.RWMutex
	healthy       bool
	healthMu      sync.RWMutex
	subscribers   []chan<- RateUpdate
	subscribersMu sync.RWMutex
	stopChan      chan struct{}
	logger        *logging.Logger
	now           func() time.Time
}

// NewBaseSource creates a new base source with pair mappings
// pairs: map of unified symbol (e.g., "BTC/USD") -> source-specific symbol (e.g., "data.BTC.USD")
func NewBaseSource(name string, sourcetype SourceType, pairs map[string]string, logger *logging.Logger) *BaseSource {
	symbols := make([]string, 0, len(pairs))
	for unifiedSymbol := range pairs {
		symbols = append(symbols, unifiedSymbol)
	}
	sort.Strings(symbols)

	if logger == nil {
		logger = logging.NewNoopLogger()
	}

	return &BaseSource{
		name:        name,
		prefix:      name,
		sourcetype:  sourcetype,
		symbols:     symbols,
		pairs:       pairs,
		rates:       make(map[string]Rate),
		subscribers: make([]chan<- RateUpdate, 0),
		stopChan:    make(chan struct{}),
		logger:      logger.With("source", name),
		healthy:     false,
		now:         time.Now,
	}
}

// ApplyCommon sets the settings shared by every source type.
func (b *BaseSource) ApplyCommon(common CommonConfig) {
	if common.Prefix != "" {
		b.prefix = common.Prefix
	}
	b.maxAge = common.MaxAge
}

// Name returns the source name
func (b *BaseSource) Name() string {
	return b.name
}

// Prefix returns the metadata prefix, the source name unless configured otherwise.
func (b *BaseSource) Prefix() string {
	return b.prefix
}

// Type returns the source type
func (b *BaseSource) Type() SourceType {
	return b.sourcetype
}

// Symbols returns the symbols this source provides
func (b *BaseSource) Symbols() []string {
	return b.symbols
}

// IsHealthy returns the health status
func (b *BaseSource) IsHealthy() bool {
	b.healthMu.RLock()
	defer b.healthMu.RUnlock()
	return b.healthy
}

// SetHealthy sets the health status
func (b *BaseSource) SetHealthy(healthy bool) {
	b.healthMu.Lock()
	b.healthy = healthy
	b.healthMu.Unlock()
	metrics.RecordSourceHealth(b.name, string(b.sourcetype), healthy)
}

// LastUpdate returns the time of the last successful rate update
func (b *BaseSource) LastUpdate() time.Time {
	b.updateMu.RLock()
	defer b.updateMu.RUnlock()
	return b.lastUpdate
}

// SetLastUpdate sets the last update time
func (b *BaseSource) SetLastUpdate(t time.Time) {
	b.updateMu.Lock()
	defer b.updateMu.Unlock()
	b.lastUpdate = t
}

// GetRate returns a single rate by unified symbol
func (b *BaseSource) GetRate(symbol string) (Rate, bool) {
	b.ratesMu.RLock()
	defer b.ratesMu.RUnlock()
	rate, ok := b.rates[symbol]
	return rate, ok
}

// SetRate stores a rate for base/counter and notifies subscribers.
func (b *BaseSource) SetRate(base, counter string, price float64, timestamp time.Time) error {
	rate, err := NewRate(base, counter, price, timestamp.Unix(), b.name)
	if err != nil {
		return err
	}

	b.ratesMu.Lock()
	b.rates[rate.Symbol()] = rate
	b.ratesMu.Unlock()

	b.SetLastUpdate(b.now())
	metrics.RecordSourceUpdate(b.name, rate.Symbol())

	b.notifySubscribers(RateUpdate{
		Source: b.name,
		Rates:  []Rate{rate},
	})
	return nil
}

// Rates returns a copy of all cached rates ordered by symbol.
func (b *BaseSource) Rates() []Rate {
	b.ratesMu.RLock()
	rates := make([]Rate, 0, len(b.rates))
	for _, r := range b.rates {
		rates = append(rates, r)
	}
	b.ratesMu.RUnlock()

	SortRates(rates)
	return rates
}

// ClearStaleRates drops rates whose timestamp is older than the configured max age.
// A zero max age keeps everything.
func (b *BaseSource) ClearStaleRates() {
	if b.maxAge <= 0 {
		return
	}
	cutoff := b.now().Add(-b.maxAge).Unix()

	b.ratesMu.Lock()
	removed := 0
	for symbol, r := range b.rates {
		if r.Timestamp < cutoff {
			delete(b.rates, symbol)
			removed++
		}
	}
	b.ratesMu.Unlock()

	if removed > 0 {
		b.logger.Warn("Cleared stale rates", "removed", removed, "max_age", b.maxAge.String())
	}
}

// AddSubscriber adds a rate update subscriber
func (b *BaseSource) AddSubscriber(ch chan<- RateUpdate) {
	b.subscribersMu.Lock()
	defer b.subscribersMu.Unlock()
	b.subscribers = append(b.subscribers, ch)
}

// Subscribe adds a subscriber to rate updates.
func (b *BaseSource) Subscribe(updates chan<- RateUpdate) error {
	b.AddSubscriber(updates)
	return nil
}

// RemoveSubscriber removes a rate update subscriber
func (b *BaseSource) RemoveSubscriber(ch chan<- RateUpdate) {
	b.subscribersMu.Lock()
	defer b.subscribersMu.Unlock()

	for i, subscriber := range b.subscribers {
		if subscriber == ch {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			break
		}
	}
}

// notifySubscribers sends rate updates to all subscribers
func (b *BaseSource) notifySubscribers(update RateUpdate) {
	b.subscribersMu.RLock()
	defer b.subscribersMu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- update:
		default:
			// Channel full, skip
			b.logger.Warn("Subscriber channel full, skipping update")
		}
	}
}

// StopChan returns the stop channel
func (b *BaseSource) StopChan() <-chan struct{} {
	return b.stopChan
}

// Close closes the stop channel
func (b *BaseSource) Close() {
	select {
	case <-b.stopChan:
		// Already closed
	default:
		close(b.stopChan)
	}
}

// Logger returns the logger
func (b *BaseSource) Logger() *logging.Logger {
	return b.logger
}

// GetSourceSymbol converts unified symbol to source-specific symbol
// Returns empty string if not found
func (b *BaseSource) GetSourceSymbol(unifiedSymbol string) string {
	return b.pairs[unifiedSymbol]
}

// GetUnifiedSymbol finds the unified symbol for a source-specific symbol
// Returns empty string if not found
func (b *BaseSource) GetUnifiedSymbol(sourceSymbol string) string {
	for unified, source := range b.pairs {
		if source == sourceSymbol {
			return unified
		}
	}
	return ""
}

// GetAllPairs returns a copy of the pair mappings
func (b *BaseSource) GetAllPairs() map[string]string {
	pairs := make(map[string]string, len(b.pairs))
	for k, v := range b.pairs {
		pairs[k] = v
	}
	return pairs
}

// RetryWithBackoff runs fn until it succeeds, retrying with exponential backoff.
// It marks the source healthy on success and unhealthy once retries are exhausted.
func (b *BaseSource) RetryWithBackoff(ctx context.Context, op string, fn func() error) error {
	const maxRetries = 5
	const initialBackoff = time.Second
	const maxBackoff = 2 * time.Minute

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		select {
		case <-b.stopChan:
			return fmt.Errorf("%w", ErrSourceStoppedRetry)
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			b.SetHealthy(true)
			return nil
		}

		lastErr = err
		b.logger.Warn("Fetch attempt failed",
			"op", op,
			"attempt", attempt,
			"max_retries", maxRetries,
			"error", err,
		)

		if attempt == maxRetries {
			break
		}

		// #nosec G115 -- attempt is always positive (1 to maxRetries)
		backoff := initialBackoff * time.Duration(1<<uint(attempt-1))
		if backoff > maxBackoff {
			backoff = maxBackoff
		}

		select {
		case <-time.After(backoff):
		case <-b.stopChan:
			return fmt.Errorf("%w", ErrSourceStoppedBackoff)
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	b.SetHealthy(false)
	b.logger.Error("Failed after all retries", "op", op, "error", lastErr, "retries", maxRetries)
	return lastErr
}
