// Package pivot re-expresses a consensus table against a single pivot currency.
package pivot

import "errors"

var (
	// ErrEmptyCurrency indicates a missing pivot or bridge code.
	ErrEmptyCurrency = errors.New("pivot and bridge currencies are required")
	// ErrBridgeIsPivot indicates a bridge equal to the pivot or to the other bridge.
	ErrBridgeIsPivot = errors.New("pivot and bridge currencies must be distinct")
	// ErrUnclassifiedCurrency indicates a pivot or bridge the classifier does not know.
	ErrUnclassifiedCurrency = errors.New("currency is neither crypto nor fiat")
)
