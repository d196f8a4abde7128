package snapshot

import (
	"time"

	"github.com/woodser/haveno-pricenode/pkg/logging"
	"github.com/woodser/haveno-pricenode/pkg/metrics"
	"github.com/woodser/haveno-pricenode/pkg/server/aggregator"
	"github.com/woodser/haveno-pricenode/pkg/server/pivot"
	"github.com/woodser/haveno-pricenode/pkg/server/sources"
	"github.com/woodser/haveno-pricenode/pkg/server/transform"
)

// Builder runs one aggregation pass over all providers per Build call.
type Builder struct {
	providers  []aggregator.Provider
	aggregator *aggregator.Aggregator
	translator *pivot.Translator
	registry   *transform.Registry
	resolve    transform.Resolver
	logger     *logging.Logger
	now        func() time.Time
}

// NewBuilder wires the pass. providers are reported in the given order.
func NewBuilder(
	providers []aggregator.Provider,
	agg *aggregator.Aggregator,
	translator *pivot.Translator,
	registry *transform.Registry,
	logger *logging.Logger,
) *Builder {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	if registry == nil {
		registry, _ = transform.NewRegistry()
	}
	return &Builder{
		providers:  providers,
		aggregator: agg,
		translator: translator,
		registry:   registry,
		resolve:    transform.ProviderResolver(providers),
		logger:     logger,
		now:        time.Now,
	}
}

// Build reads every provider once and returns the snapshot. It never fails: missing
// sources show up as zero metadata and untranslatable currencies are left out.
func (b *Builder) Build() *Snapshot {
	start := time.Now()
	defer func() {
		metrics.RecordAggregation("snapshot", time.Since(start))
	}()

	all := make([]sources.Rate, 0)
	metadata := make([]Field, 0, 2*len(b.providers))
	for _, p := range b.providers {
		p.ClearStaleRates()
		rates := p.Rates()
		all = append(all, rates...)

		fields, err := CollectMetadata(p, rates)
		if err != nil {
			b.logger.Error("Failed to read source timestamp", "source", p.Name(), "error", err)
		}
		metadata = append(metadata, fields...)
		metrics.RecordSourceRateCount(p.Name(), len(rates))
	}

	table := b.aggregator.Aggregate(all)
	data := b.translator.Translate(table)
	data = b.registry.Apply(b.translator.Pivot(), data, b.resolve)
	sources.SortRates(data)

	return &Snapshot{
		Metadata:  metadata,
		Data:      data,
		CreatedAt: b.now(),
	}
}
