package pivot

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/woodser/haveno-pricenode/pkg/logging"
	"github.com/woodser/haveno-pricenode/pkg/metrics"
	"github.com/woodser/haveno-pricenode/pkg/server/aggregator"
	"github.com/woodser/haveno-pricenode/pkg/server/currency"
	"github.com/woodser/haveno-pricenode/pkg/server/sources"
)

// InversePrecision is the number of decimal places an inverted price is rounded to.
const InversePrecision = 8

// Config names the pivot and the two bridge currencies.
type Config struct {
	Pivot        string // XMR
	CryptoBridge string // BTC
	FiatBridge   string // USD
}

// Translator derives one pivot rate per currency of a consensus table.
type Translator struct {
	cfg        Config
	classifier currency.Classifier
	logger     *logging.Logger
}

// NewTranslator checks cfg against the classifier and returns a translator.
func NewTranslator(cfg Config, classifier currency.Classifier, logger *logging.Logger) (*Translator, error) {
	if cfg.Pivot == "" || cfg.CryptoBridge == "" || cfg.FiatBridge == "" {
		return nil, fmt.Errorf("%w", ErrEmptyCurrency)
	}
	if cfg.Pivot == cfg.CryptoBridge || cfg.Pivot == cfg.FiatBridge || cfg.CryptoBridge == cfg.FiatBridge {
		return nil, fmt.Errorf("%w: %s, %s, %s", ErrBridgeIsPivot, cfg.Pivot, cfg.CryptoBridge, cfg.FiatBridge)
	}
	for _, code := range []string{cfg.Pivot, cfg.CryptoBridge, cfg.FiatBridge} {
		if !classifier.Known(code) {
			return nil, fmt.Errorf("%w: %s", ErrUnclassifiedCurrency, code)
		}
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Translator{cfg: cfg, classifier: classifier, logger: logger}, nil
}

// Pivot returns the pivot currency code.
func (t *Translator) Pivot() string {
	return t.cfg.Pivot
}

// Translate returns at most one pivot rate per non-pivot currency in table, sorted by
// base then counter. Currencies lacking bridge data are skipped with a warning.
func (t *Translator) Translate(table aggregator.Table) []sources.Rate {
	out := make([]sources.Rate, 0, table.Len())
	for _, c := range table.Currencies() {
		if c == t.cfg.Pivot {
			continue
		}
		r, ok := t.translate(table, c)
		if !ok {
			metrics.RecordTranslationSkipped(c)
			continue
		}
		out = append(out, r)
	}
	sources.SortRates(out)
	return out
}

func (t *Translator) translate(table aggregator.Table, c string) (sources.Rate, bool) {
	pivot := t.cfg.Pivot
	cb := t.cfg.CryptoBridge
	fb := t.cfg.FiatBridge

	pivotCrypto, hasPivotCrypto := table.Get(pivot, cb)

	if c == cb && hasPivotCrypto {
		return sources.Rate{
			Base:      cb,
			Counter:   pivot,
			Price:     Invert(pivotCrypto.Price),
			Timestamp: pivotCrypto.Timestamp,
			Provider:  pivotCrypto.Provider,
		}, true
	}

	if r, ok := table.Get(pivot, c); ok {
		return r, true
	}
	if r, ok := table.Get(c, pivot); ok {
		return r, true
	}

	switch {
	case t.classifier.IsCrypto(c):
		// prefer the fiat bridge, fall back to the crypto bridge when either fiat leg is missing
		if cFiat, ok := table.Get(c, fb); ok {
			if pivotFiat, ok := table.Get(pivot, fb); ok && pivotFiat.Price > 0 {
				return sources.Rate{
					Base:      c,
					Counter:   pivot,
					Price:     cFiat.Price / pivotFiat.Price,
					Timestamp: pivotFiat.Timestamp,
					Provider:  pivotFiat.Provider,
				}, true
			}
		}
		cCrypto, ok := table.Get(c, cb)
		if !ok {
			t.logger.Warn("No bridge rate available", "currency", c, "pair", c+"/"+cb)
			return sources.Rate{}, false
		}
		if !hasPivotCrypto || pivotCrypto.Price <= 0 {
			t.logger.Warn("No bridge rate available", "currency", c, "pair", pivot+"/"+cb)
			return sources.Rate{}, false
		}
		return sources.Rate{
			Base:      c,
			Counter:   pivot,
			Price:     cCrypto.Price / pivotCrypto.Price,
			Timestamp: pivotCrypto.Timestamp,
			Provider:  pivotCrypto.Provider,
		}, true

	case t.classifier.IsFiat(c):
		cryptoFiat, ok := table.Get(cb, c)
		if !ok {
			t.logger.Warn("No bridge rate available", "currency", c, "pair", cb+"/"+c)
			return sources.Rate{}, false
		}
		if !hasPivotCrypto {
			t.logger.Warn("No bridge rate available", "currency", c, "pair", pivot+"/"+cb)
			return sources.Rate{}, false
		}
		return sources.Rate{
			Base:      pivot,
			Counter:   c,
			Price:     pivotCrypto.Price * cryptoFiat.Price,
			Timestamp: cryptoFiat.Timestamp,
			Provider:  pivotCrypto.Provider,
		}, true

	default:
		t.logger.Warn("Currency is neither crypto nor fiat, skipping", "currency", c)
		return sources.Rate{}, false
	}
}

// Invert returns 1/price rounded half-up to InversePrecision places, or 0 when price <= 0.
func Invert(price float64) float64 {
	if price <= 0 {
		return 0
	}
	inv, _ := decimal.NewFromInt(1).DivRound(decimal.NewFromFloat(price), InversePrecision).Float64()
	return inv
}
