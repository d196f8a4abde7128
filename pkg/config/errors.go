// Package config provides configuration loading and validation for the price node.
package config

import "errors"

var (
	// ErrNoSourcesEnabled indicates that no sources are enabled.
	ErrNoSourcesEnabled = errors.New("no sources enabled")
	// ErrDuplicateSourceName indicates two sources sharing a name.
	ErrDuplicateSourceName = errors.New("duplicate source name")
	// ErrDuplicateTransformer indicates two transformers for one currency.
	ErrDuplicateTransformer = errors.New("duplicate transformer currency")
	// ErrBridgeIsPivot indicates the pivot and bridge currencies are not distinct.
	ErrBridgeIsPivot = errors.New("pivot, crypto_bridge and fiat_bridge must be distinct")
	// ErrUnclassifiedCurrency indicates a pivot or bridge missing from the currency lists.
	ErrUnclassifiedCurrency = errors.New("currency is not listed as crypto or fiat")
	// ErrAmbiguousCurrency indicates a currency listed as both crypto and fiat.
	ErrAmbiguousCurrency = errors.New("currency listed as both crypto and fiat")
	// ErrCryptoBridgeNotCrypto indicates a crypto bridge listed as fiat.
	ErrCryptoBridgeNotCrypto = errors.New("crypto_bridge must be a crypto currency")
	// ErrRedisURLRequired indicates publishing is enabled without a redis url.
	ErrRedisURLRequired = errors.New("publish.redis.url is required when publishing is enabled")
	// ErrInvalidField wraps struct tag validation failures.
	ErrInvalidField = errors.New("invalid configuration field")
)
