package aggregator

import (
	"fmt"
	"time"

	"github.com/woodser/haveno-pricenode/pkg/logging"
	"github.com/woodser/haveno-pricenode/pkg/metrics"
	"github.com/woodser/haveno-pricenode/pkg/server/sources"
)

// Aggregator builds a consensus table from the rates of all sources. A pair reported
// by one source passes through unchanged; several reports are outlier-filtered and averaged.
type Aggregator struct {
	logger     *logging.Logger
	multiplier float64
	gate       *logging.Gate
	now        func() time.Time
}

// New creates an aggregator. gate should not be shared, since every Aggregate call
// consumes its window; nil gets a default one.
func New(logger *logging.Logger, multiplier float64, gate *logging.Gate) (*Aggregator, error) {
	if multiplier <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMultiplier, multiplier)
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	if gate == nil {
		gate = logging.NewGate(logging.DefaultGateWindow)
	}
	return &Aggregator{
		logger:     logger,
		multiplier: multiplier,
		gate:       gate,
		now:        time.Now,
	}, nil
}

// Multiplier returns the configured outlier std dev multiplier.
func (a *Aggregator) Multiplier() float64 {
	return a.multiplier
}

// Aggregate groups rates by pair and reduces each group to one consensus rate.
func (a *Aggregator) Aggregate(rates []sources.Rate) Table {
	start := time.Now()
	defer func() {
		metrics.RecordAggregation("consensus", time.Since(start))
	}()

	logOutliers := a.gate.Allow()

	groups := make(map[Pair][]sources.Rate)
	for _, r := range rates {
		p := Pair{Base: r.Base, Counter: r.Counter}
		groups[p] = append(groups[p], r)
	}

	table := make(Table, len(groups))
	for pair, group := range groups {
		if len(group) == 1 {
			table[pair] = group[0]
			continue
		}
		table[pair] = a.consensus(pair, group, logOutliers)
	}

	a.logger.Debug("Aggregated rates", "input", len(rates), "pairs", len(table))
	return table
}

func (a *Aggregator) consensus(pair Pair, group []sources.Rate, logOutliers bool) sources.Rate {
	symbol := pair.String()
	inliers, lower, upper, fellBack := FilterInliers(group, a.multiplier)
	avg := Mean(priceValues(inliers))

	if fellBack {
		metrics.RecordOutlierFallback(symbol)
		a.logger.Error("Could not filter, reverting to plain average",
			"symbol", symbol,
			"lower", lower,
			"upper", upper,
			"std_dev_multiplier", a.multiplier,
			"prices", priceValues(group))
	} else if len(inliers) < len(group) {
		for _, r := range group {
			if r.Price >= lower && r.Price <= upper {
				continue
			}
			metrics.RecordOutlierRejection(symbol)
			if logOutliers {
				a.logger.Info("Outlier price removed",
					"provider", r.Provider,
					"symbol", symbol,
					"price", r.Price,
					"lower", lower,
					"upper", upper,
					"consensus", avg)
			}
		}
	}

	return sources.Rate{
		Base:      pair.Base,
		Counter:   pair.Counter,
		Price:     avg,
		Timestamp: a.now().Unix(),
		Provider:  sources.AggregateProvider,
	}
}
