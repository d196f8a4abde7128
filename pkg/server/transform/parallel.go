package transform

import (
	"strings"

	"github.com/woodser/haveno-pricenode/pkg/logging"
	"github.com/woodser/haveno-pricenode/pkg/server/aggregator"
	"github.com/woodser/haveno-pricenode/pkg/server/sources"
)

// GapProvider supplies the parallel-market to official price ratio for a currency.
type GapProvider interface {
	// Gap returns false when no usable value is available.
	Gap() (float64, bool)
}

// ParallelMarket scales a currency's rate by a parallel-market gap, for currencies
// with an official and an unofficial exchange rate. Rates from the native source,
// which already quotes the parallel market, pass through unchanged.
type ParallelMarket struct {
	currency string
	native   string
	gap      GapProvider
	gate     *logging.Gate
	logger   *logging.Logger
}

var _ Transformer = (*ParallelMarket)(nil)

// NewParallelMarket creates the transformer. native may be empty.
func NewParallelMarket(currency, native string, gap GapProvider, gate *logging.Gate, logger *logging.Logger) *ParallelMarket {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	if gate == nil {
		gate = logging.NewGate(logging.DefaultGateWindow)
	}
	return &ParallelMarket{
		currency: strings.ToUpper(currency),
		native:   native,
		gap:      gap,
		gate:     gate,
		logger:   logger.With("transformer", "parallel_market", "currency", strings.ToUpper(currency)),
	}
}

// Currency returns the currency code this transformer applies to.
func (p *ParallelMarket) Currency() string {
	return p.currency
}

// Transform returns r with its price multiplied by the current gap.
func (p *ParallelMarket) Transform(src aggregator.Provider, r sources.Rate) (sources.Rate, bool) {
	if src != nil && p.native != "" && src.Name() == p.native {
		return r, false
	}

	gap, ok := p.gap.Gap()
	if !ok {
		return r, false
	}

	out := r
	out.Price = r.Price * gap
	p.gate.MaybeInfo(p.logger, "Rate transformed",
		"symbol", r.Symbol(),
		"from", r.Price,
		"to", out.Price)
	return out, true
}
