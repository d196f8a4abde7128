package sources

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"
)

// AggregateProvider is the provider tag of rates synthesized from several sources.
const AggregateProvider = "Haveno-Aggregate"

// SourceType represents the type of rate source
type SourceType string

const (
	SourceTypeStatic SourceType = "static"
	SourceTypeHTTP   SourceType = "http"
	SourceTypeWS     SourceType = "ws"
)

// Rate is the spot price of Base in units of Counter, observed at Timestamp (epoch
// seconds) by Provider. Rates are values: two rates are equal iff all fields are.
type Rate struct {
	Base      string  `json:"baseCurrencyCode"`
	Counter   string  `json:"counterCurrencyCode"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestampSec"`
	Provider  string  `json:"provider"`
}

// NewRate builds a Rate after checking its invariants.
func NewRate(base, counter string, price float64, timestamp int64, provider string) (Rate, error) {
	if base == "" || counter == "" {
		return Rate{}, fmt.Errorf("%w: %s/%s", ErrInvalidSymbolFormat, base, counter)
	}
	if base == counter {
		return Rate{}, fmt.Errorf("%w: %s", ErrSameCurrency, base)
	}
	if price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return Rate{}, fmt.Errorf("%w: %s/%s %v", ErrInvalidPrice, base, counter, price)
	}
	return Rate{
		Base:      base,
		Counter:   counter,
		Price:     price,
		Timestamp: timestamp,
		Provider:  provider,
	}, nil
}

// Symbol returns the pair as BASE/COUNTER.
func (r Rate) Symbol() string {
	return r.Base + "/" + r.Counter
}

// SortRates orders rates by base then counter currency.
func SortRates(rates []Rate) {
	sort.SliceStable(rates, func(i, j int) bool {
		if rates[i].Base != rates[j].Base {
			return rates[i].Base < rates[j].Base
		}
		return rates[i].Counter < rates[j].Counter
	})
}

// RateUpdate represents a rate update event
type RateUpdate struct {
	Source string
	Rates  []Rate
	Error  error
}

// Source defines the interface that all rate sources must implement
type Source interface {
	// Initialize prepares the source for operation
	Initialize(ctx context.Context) error

	// Start begins fetching rates
	Start(ctx context.Context) error

	// Stop halts the source and cleans up resources
	Stop() error

	// Rates returns a point-in-time copy of the cached rates. Empty when the
	// source has nothing usable.
	Rates() []Rate

	// Subscribe allows other components to receive rate updates
	Subscribe(updates chan<- RateUpdate) error

	// Name returns the unique name of this source. Rates produced by the
	// source carry a provider tag starting with it.
	Name() string

	// Prefix namespaces the metadata fields reported for this source.
	Prefix() string

	// Type returns the type of this source
	Type() SourceType

	// Symbols returns the list of symbols this source provides
	Symbols() []string

	// IsHealthy returns whether the source is currently healthy
	IsHealthy() bool

	// LastUpdate returns the timestamp of the last successful update
	LastUpdate() time.Time

	// ClearStaleRates drops cached rates older than the source's max age.
	ClearStaleRates()
}

// SourceFactory is a function that creates a new Source instance
type SourceFactory func(config map[string]interface{}) (Source, error)
