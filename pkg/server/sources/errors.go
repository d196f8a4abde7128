// Package sources provides rate source interfaces and the shared source cache.
package sources

import "errors"

var (
	// ErrUnexpectedStatus indicates an unexpected HTTP status code.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status code")
	// ErrRateLimitExceeded indicates that a rate limit has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidResponse indicates an invalid response from the source.
	ErrInvalidResponse = errors.New("invalid response")
	// ErrInvalidConfig indicates that the source configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrUnknownSource indicates that no factory is registered for a source key.
	ErrUnknownSource = errors.New("unknown source")
	// ErrNoPricesExtracted indicates that no prices are extracted from response.
	ErrNoPricesExtracted = errors.New("no prices extracted from response")
	// ErrNoPairsConfigured indicates that no pairs are configured.
	ErrNoPairsConfigured = errors.New("no pairs configured")
	// ErrInvalidSymbolFormat indicates that the symbol format is invalid.
	ErrInvalidSymbolFormat = errors.New("symbol must be in BASE/QUOTE format")
	// ErrEmptyBaseCurrency indicates that the symbol BASE currency cannot be empty.
	ErrEmptyBaseCurrency = errors.New("symbol BASE currency cannot be empty")
	// ErrEmptyQuoteCurrency indicates that the symbol QUOTE currency cannot be empty.
	ErrEmptyQuoteCurrency = errors.New("symbol QUOTE currency cannot be empty")
	// ErrSameCurrency indicates a pair whose base and counter currency are equal.
	ErrSameCurrency = errors.New("base and counter currency must differ")
	// ErrInvalidPrice indicates a negative, NaN or infinite price.
	ErrInvalidPrice = errors.New("price must be a finite non-negative number")
	// ErrSourceStoppedRetry indicates that the source stopped during retry.
	ErrSourceStoppedRetry = errors.New("source stopped during retry")
	// ErrSourceStoppedBackoff indicates that the source stopped during backoff.
	ErrSourceStoppedBackoff = errors.New("source stopped during backoff")
)
