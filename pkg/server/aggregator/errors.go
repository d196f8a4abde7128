// Package aggregator reconciles raw rates from several sources into one consensus rate per pair.
package aggregator

import "errors"

// ErrInvalidMultiplier indicates a non-positive outlier standard deviation multiplier.
var ErrInvalidMultiplier = errors.New("outlier std dev multiplier must be positive")
