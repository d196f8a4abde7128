// Package currency classifies currency codes as crypto or fiat.
package currency

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrAmbiguousCurrency indicates a code listed as both crypto and fiat.
var ErrAmbiguousCurrency = errors.New("currency listed as both crypto and fiat")

// Classifier reports whether a currency code is crypto or fiat. For valid codes
// exactly one of the two holds.
type Classifier interface {
	IsCrypto(code string) bool
	IsFiat(code string) bool
	Known(code string) bool
}

// Registry is a Classifier backed by configured code lists.
type Registry struct {
	crypto map[string]struct{}
	fiat   map[string]struct{}
}

var _ Classifier = (*Registry)(nil)

// NewRegistry builds a registry. Codes are upper-cased.
func NewRegistry(crypto, fiat []string) (*Registry, error) {
	r := &Registry{
		crypto: toSet(crypto),
		fiat:   toSet(fiat),
	}
	for code := range r.crypto {
		if _, ok := r.fiat[code]; ok {
			return nil, fmt.Errorf("%w: %s", ErrAmbiguousCurrency, code)
		}
	}
	return r, nil
}

// IsCrypto reports whether code is a configured crypto currency.
func (r *Registry) IsCrypto(code string) bool {
	_, ok := r.crypto[strings.ToUpper(code)]
	return ok
}

// IsFiat reports whether code is a configured fiat currency.
func (r *Registry) IsFiat(code string) bool {
	_, ok := r.fiat[strings.ToUpper(code)]
	return ok
}

// Known reports whether code is classified at all.
func (r *Registry) Known(code string) bool {
	return r.IsCrypto(code) || r.IsFiat(code)
}

// Codes returns every configured code, sorted.
func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.crypto)+len(r.fiat))
	for c := range r.crypto {
		codes = append(codes, c)
	}
	for c := range r.fiat {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

func toSet(codes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		set[c] = struct{}{}
	}
	return set
}
