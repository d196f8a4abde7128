// Package transform holds currency-keyed hooks that may replace a pivot rate after translation.
package transform

import "errors"

var (
	// ErrDuplicateTransformer indicates two transformers registered for one currency.
	ErrDuplicateTransformer = errors.New("duplicate transformer for currency")
	// ErrEmptyCurrency indicates a transformer that declares no currency.
	ErrEmptyCurrency = errors.New("transformer currency is empty")
	// ErrInvalidGapResponse indicates the gap endpoint returned unusable prices.
	ErrInvalidGapResponse = errors.New("invalid gap response")
)
