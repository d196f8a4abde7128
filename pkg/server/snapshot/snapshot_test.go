package snapshot

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woodser/haveno-pricenode/pkg/logging"
	"github.com/woodser/haveno-pricenode/pkg/server/aggregator"
	"github.com/woodser/haveno-pricenode/pkg/server/currency"
	"github.com/woodser/haveno-pricenode/pkg/server/pivot"
	"github.com/woodser/haveno-pricenode/pkg/server/sources"
	"github.com/woodser/haveno-pricenode/pkg/server/transform"
)

type stubProvider struct {
	name    string
	prefix  string
	rates   []sources.Rate
	reads   int
	cleared int
}

func (s *stubProvider) Rates() []sources.Rate {
	s.reads++
	return s.rates
}
func (s *stubProvider) Name() string     { return s.name }
func (s *stubProvider) Prefix() string   { return s.prefix }
func (s *stubProvider) ClearStaleRates() { s.cleared++ }

type noGap struct{}

func (noGap) Gap() (float64, bool) { return 0, false }

type staticGap float64

func (g staticGap) Gap() (float64, bool) { return float64(g), true }

func newBuilder(t *testing.T, providers []aggregator.Provider, reg *transform.Registry) *Builder {
	t.Helper()
	logger := logging.NewNoopLogger()
	classifier, err := currency.NewRegistry([]string{"XMR", "BTC", "LTC"}, []string{"USD", "EUR", "ARS"})
	require.NoError(t, err)
	agg, err := aggregator.New(logger, aggregator.DefaultOutlierStdDev, nil)
	require.NoError(t, err)
	tr, err := pivot.NewTranslator(pivot.Config{Pivot: "XMR", CryptoBridge: "BTC", FiatBridge: "USD"}, classifier, logger)
	require.NoError(t, err)
	return NewBuilder(providers, agg, tr, reg, logger)
}

func TestCollectMetadata(t *testing.T) {
	src := &stubProvider{name: "KRAKEN", prefix: "kraken"}

	fields, err := CollectMetadata(src, nil)
	require.NoError(t, err)
	assert.Equal(t, []Field{{"krakenTs", 0}, {"krakenCount", 0}}, fields)

	rates := []sources.Rate{
		{Base: "XMR", Counter: "USD", Price: 1, Timestamp: 5, Provider: "OTHER"},
		{Base: "XMR", Counter: "BTC", Price: 1, Timestamp: 7, Provider: "KRAKEN-XMR"},
		{Base: "BTC", Counter: "USD", Price: 1, Timestamp: 9, Provider: "KRAKEN"},
	}
	fields, err = CollectMetadata(src, rates)
	require.NoError(t, err)
	assert.Equal(t, []Field{{"krakenTs", 7}, {"krakenCount", 3}}, fields)

	fields, err = CollectMetadata(src, rates[:1])
	assert.ErrorIs(t, err, ErrNoSourceRates)
	assert.Equal(t, []Field{{"krakenTs", 0}, {"krakenCount", 1}}, fields)
}

func TestBuild_AbsentSource(t *testing.T) {
	kraken := &stubProvider{name: "KRAKEN", prefix: "kraken", rates: []sources.Rate{
		{Base: "XMR", Counter: "BTC", Price: 0.0065, Timestamp: 100, Provider: "KRAKEN"},
		{Base: "BTC", Counter: "USD", Price: 30000, Timestamp: 200, Provider: "KRAKEN"},
	}}
	down := &stubProvider{name: "BITFINEX", prefix: "btcAverage"}

	snap := newBuilder(t, []aggregator.Provider{kraken, down}, nil).Build()

	assert.Equal(t, []Field{
		{"krakenTs", 100},
		{"krakenCount", 2},
		{"btcAverageTs", 0},
		{"btcAverageCount", 0},
	}, snap.Metadata)

	require.Len(t, snap.Data, 2)
	assert.Equal(t, "BTC", snap.Data[0].Base)
	assert.Equal(t, 153.84615385, snap.Data[0].Price)
	assert.Equal(t, "USD", snap.Data[1].Counter)
	assert.InDelta(t, 195, snap.Data[1].Price, 1e-9)

	assert.Equal(t, 1, kraken.reads)
	assert.Equal(t, 1, kraken.cleared)
	assert.Equal(t, 1, down.reads)
	assert.Equal(t, 1, down.cleared)
}

func TestBuild_AggregatesAcrossSources(t *testing.T) {
	a := &stubProvider{name: "A", prefix: "a", rates: []sources.Rate{
		{Base: "XMR", Counter: "USD", Price: 190, Timestamp: 1, Provider: "A"},
	}}
	b := &stubProvider{name: "B", prefix: "b", rates: []sources.Rate{
		{Base: "XMR", Counter: "USD", Price: 200, Timestamp: 2, Provider: "B"},
	}}

	snap := newBuilder(t, []aggregator.Provider{a, b}, nil).Build()

	require.Len(t, snap.Data, 1)
	assert.InDelta(t, 195, snap.Data[0].Price, 1e-9)
	assert.Equal(t, sources.AggregateProvider, snap.Data[0].Provider)
}

func TestBuild_TransformerCannotCompute(t *testing.T) {
	src := &stubProvider{name: "KRAKEN", prefix: "kraken", rates: []sources.Rate{
		{Base: "XMR", Counter: "BTC", Price: 0.005, Timestamp: 100, Provider: "KRAKEN"},
		{Base: "BTC", Counter: "ARS", Price: 1e7, Timestamp: 200, Provider: "KRAKEN"},
	}}
	reg, err := transform.NewRegistry(transform.NewParallelMarket("ARS", "BLUE", noGap{}, nil, nil))
	require.NoError(t, err)

	snap := newBuilder(t, []aggregator.Provider{src}, reg).Build()

	require.Len(t, snap.Data, 2)
	ars := snap.Data[1]
	assert.Equal(t, "XMR", ars.Base)
	assert.Equal(t, "ARS", ars.Counter)
	assert.InDelta(t, 50000, ars.Price, 1e-6)
	assert.Equal(t, int64(200), ars.Timestamp)
	assert.Equal(t, "KRAKEN", ars.Provider)
}

func logLevels(t *testing.T, buf *bytes.Buffer, msg string) []string {
	t.Helper()
	var levels []string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["message"] == msg {
			levels = append(levels, entry["level"].(string))
		}
	}
	return levels
}

func TestBuild_TransformerLogsAtInfoEachWindow(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, "json")

	classifier, err := currency.NewRegistry([]string{"XMR", "BTC"}, []string{"USD", "ARS"})
	require.NoError(t, err)
	agg, err := aggregator.New(logger, aggregator.DefaultOutlierStdDev, logging.NewGate(time.Hour))
	require.NoError(t, err)
	tr, err := pivot.NewTranslator(pivot.Config{Pivot: "XMR", CryptoBridge: "BTC", FiatBridge: "USD"}, classifier, logger)
	require.NoError(t, err)
	reg, err := transform.NewRegistry(
		transform.NewParallelMarket("ARS", "BLUE", staticGap(1.5), logging.NewGate(time.Hour), logger))
	require.NoError(t, err)

	src := &stubProvider{name: "KRAKEN", prefix: "kraken", rates: []sources.Rate{
		{Base: "XMR", Counter: "BTC", Price: 0.005, Timestamp: 100, Provider: "KRAKEN"},
		{Base: "BTC", Counter: "ARS", Price: 1e7, Timestamp: 200, Provider: "KRAKEN"},
	}}
	b := NewBuilder([]aggregator.Provider{src}, agg, tr, reg, logger)

	snap := b.Build()
	require.Len(t, snap.Data, 2)
	assert.InDelta(t, 75000, snap.Data[1].Price, 1e-6)
	assert.Equal(t, []string{"info"}, logLevels(t, &buf, "Rate transformed"))

	b.Build()
	assert.Equal(t, []string{"info", "debug"}, logLevels(t, &buf, "Rate transformed"))
}

func TestSnapshot_MarshalJSONOrder(t *testing.T) {
	snap := &Snapshot{
		Metadata: []Field{{"zTs", 2}, {"zCount", 1}, {"aTs", 0}, {"aCount", 0}},
		Data: []sources.Rate{
			{Base: "BTC", Counter: "XMR", Price: 153.84615385, Timestamp: 100, Provider: "KRAKEN"},
		},
	}

	out, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Equal(t,
		`{"zTs":2,"zCount":1,"aTs":0,"aCount":0,"data":[{"baseCurrencyCode":"BTC","counterCurrencyCode":"XMR","price":153.84615385,"timestampSec":100,"provider":"KRAKEN"}]}`,
		string(out))

	v, ok := snap.Field("zCount")
	assert.True(t, ok)
	assert.Equal(t, int64(1), v)

	out, err = json.Marshal(&Snapshot{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[]}`, string(out))
}
