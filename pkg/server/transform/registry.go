package transform

import (
	"fmt"
	"strings"

	"github.com/woodser/haveno-pricenode/pkg/metrics"
	"github.com/woodser/haveno-pricenode/pkg/server/aggregator"
	"github.com/woodser/haveno-pricenode/pkg/server/sources"
)

// Transformer may replace a translated rate whose non-pivot currency is Currency().
// src is the source the rate came from, nil for aggregate or derived rates.
// Returning false means no change.
type Transformer interface {
	Currency() string
	Transform(src aggregator.Provider, r sources.Rate) (sources.Rate, bool)
}

// Resolver maps a rate to the source it came from.
type Resolver func(r sources.Rate) aggregator.Provider

// Registry is an ordered set of transformers, at most one per currency.
type Registry struct {
	transformers []Transformer
	byCurrency   map[string]Transformer
}

// NewRegistry builds a registry in the given order.
func NewRegistry(ts ...Transformer) (*Registry, error) {
	r := &Registry{
		transformers: make([]Transformer, 0, len(ts)),
		byCurrency:   make(map[string]Transformer, len(ts)),
	}
	for _, t := range ts {
		c := strings.ToUpper(t.Currency())
		if c == "" {
			return nil, fmt.Errorf("%w: %T", ErrEmptyCurrency, t)
		}
		if _, ok := r.byCurrency[c]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTransformer, c)
		}
		r.byCurrency[c] = t
		r.transformers = append(r.transformers, t)
	}
	return r, nil
}

// Len returns the number of registered transformers.
func (r *Registry) Len() int {
	return len(r.transformers)
}

// Currencies returns the registered currencies in insertion order.
func (r *Registry) Currencies() []string {
	out := make([]string, len(r.transformers))
	for i, t := range r.transformers {
		out[i] = strings.ToUpper(t.Currency())
	}
	return out
}

// Apply runs the matching transformer over every rate. The result has the same
// length and order as rates.
func (r *Registry) Apply(pivot string, rates []sources.Rate, resolve Resolver) []sources.Rate {
	out := make([]sources.Rate, len(rates))
	copy(out, rates)
	if len(r.transformers) == 0 {
		return out
	}

	for i, rate := range out {
		c := rate.Counter
		if c == pivot {
			c = rate.Base
		}
		t, ok := r.byCurrency[c]
		if !ok {
			continue
		}

		var src aggregator.Provider
		if resolve != nil {
			src = resolve(rate)
		}

		replaced, changed := t.Transform(src, rate)
		if !changed {
			metrics.RecordTransform(c, "unchanged")
			continue
		}
		metrics.RecordTransform(c, "applied")
		out[i] = replaced
	}
	return out
}

// ProviderResolver returns a Resolver matching a rate's provider tag against source
// names by prefix. Aggregate and derived rates resolve to nil.
func ProviderResolver(providers []aggregator.Provider) Resolver {
	return func(r sources.Rate) aggregator.Provider {
		if r.Provider == sources.AggregateProvider {
			return nil
		}
		for _, p := range providers {
			if p.Name() != "" && strings.HasPrefix(r.Provider, p.Name()) {
				return p
			}
		}
		return nil
	}
}
