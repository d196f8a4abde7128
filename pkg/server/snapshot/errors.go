// Package snapshot assembles the pivot rate list and per-source metadata served to clients.
package snapshot

import "errors"

// ErrNoSourceRates indicates that no rate of a source carries its provider tag.
var ErrNoSourceRates = errors.New("no rate data found for source")
