package aggregator

import (
	"sort"

	"github.com/woodser/haveno-pricenode/pkg/server/sources"
)

// DefaultOutlierStdDev is the default outlier filter multiplier.
const DefaultOutlierStdDev = 1.1

// Provider is the view of a rate source the aggregation pass needs.
// Every sources.Source satisfies it.
type Provider interface {
	// Rates returns a consistent point-in-time copy of the source's rates.
	Rates() []sources.Rate
	Name() string
	Prefix() string
	ClearStaleRates()
}

// Pair identifies a directional currency pair.
type Pair struct {
	Base    string
	Counter string
}

func (p Pair) String() string {
	return p.Base + "/" + p.Counter
}

// Table holds one consensus rate per pair. It is built once per pass and not mutated afterwards.
type Table map[Pair]sources.Rate

// Get returns the consensus rate for base/counter.
func (t Table) Get(base, counter string) (sources.Rate, bool) {
	r, ok := t[Pair{Base: base, Counter: counter}]
	return r, ok
}

// Len returns the number of pairs.
func (t Table) Len() int {
	return len(t)
}

// Currencies returns every currency code appearing on either side of a pair, sorted.
func (t Table) Currencies() []string {
	seen := make(map[string]struct{}, len(t))
	for p := range t {
		seen[p.Base] = struct{}{}
		seen[p.Counter] = struct{}{}
	}
	codes := make([]string, 0, len(seen))
	for c := range seen {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Rates returns the table contents sorted by base then counter.
func (t Table) Rates() []sources.Rate {
	rates := make([]sources.Rate, 0, len(t))
	for _, r := range t {
		rates = append(rates, r)
	}
	sources.SortRates(rates)
	return rates
}
