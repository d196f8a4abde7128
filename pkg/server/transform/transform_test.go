package transform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woodser/haveno-pricenode/pkg/logging"
	"github.com/woodser/haveno-pricenode/pkg/server/aggregator"
	"github.com/woodser/haveno-pricenode/pkg/server/sources"
)

type fakeProvider struct {
	name string
}

func (f fakeProvider) Rates() []sources.Rate { return nil }
func (f fakeProvider) Name() string          { return f.name }
func (f fakeProvider) Prefix() string        { return f.name }
func (f fakeProvider) ClearStaleRates()      {}

type fixedGap struct {
	gap float64
	ok  bool
}

func (f fixedGap) Gap() (float64, bool) { return f.gap, f.ok }

type recordingTransformer struct {
	currency string
	seen     []aggregator.Provider
}

func (r *recordingTransformer) Currency() string { return r.currency }

func (r *recordingTransformer) Transform(src aggregator.Provider, rate sources.Rate) (sources.Rate, bool) {
	r.seen = append(r.seen, src)
	rate.Price++
	return rate, true
}

func ars(price float64, provider string) sources.Rate {
	return sources.Rate{Base: "XMR", Counter: "ARS", Price: price, Timestamp: 100, Provider: provider}
}

func TestNewRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(
		NewParallelMarket("ARS", "", fixedGap{}, nil, nil),
		NewParallelMarket("ars", "", fixedGap{}, nil, nil),
	)
	assert.ErrorIs(t, err, ErrDuplicateTransformer)

	_, err = NewRegistry(&recordingTransformer{})
	assert.ErrorIs(t, err, ErrEmptyCurrency)

	r, err := NewRegistry(&recordingTransformer{currency: "ARS"}, &recordingTransformer{currency: "VES"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ARS", "VES"}, r.Currencies())
	assert.Equal(t, 2, r.Len())
}

func TestApply_GapUnavailableLeavesRateUnchanged(t *testing.T) {
	r, err := NewRegistry(NewParallelMarket("ARS", "BLUE", fixedGap{ok: false}, nil, logging.NewNoopLogger()))
	require.NoError(t, err)

	in := []sources.Rate{ars(20000, "KRAKEN")}
	out := r.Apply("XMR", in, nil)

	assert.Equal(t, in, out)
}

func TestApply_ScalesByGap(t *testing.T) {
	r, err := NewRegistry(NewParallelMarket("ARS", "BLUE", fixedGap{gap: 1.5, ok: true}, nil, nil))
	require.NoError(t, err)

	usd := sources.Rate{Base: "XMR", Counter: "USD", Price: 195, Timestamp: 100, Provider: "KRAKEN"}
	out := r.Apply("XMR", []sources.Rate{ars(20000, "KRAKEN"), usd}, nil)

	require.Len(t, out, 2)
	assert.Equal(t, ars(30000, "KRAKEN"), out[0])
	assert.Equal(t, usd, out[1])
}

func TestApply_NativeSourcePassesThrough(t *testing.T) {
	providers := []aggregator.Provider{fakeProvider{name: "KRAKEN"}, fakeProvider{name: "BLUE"}}
	r, err := NewRegistry(NewParallelMarket("ARS", "BLUE", fixedGap{gap: 2, ok: true}, nil, nil))
	require.NoError(t, err)

	native := ars(40000, "BLUE-ARS")
	out := r.Apply("XMR", []sources.Rate{native}, ProviderResolver(providers))
	assert.Equal(t, native, out[0])

	out = r.Apply("XMR", []sources.Rate{ars(20000, "KRAKEN")}, ProviderResolver(providers))
	assert.Equal(t, ars(40000, "KRAKEN"), out[0])
}

func TestApply_PassesResolvedSource(t *testing.T) {
	kraken := fakeProvider{name: "KRAKEN"}
	rec := &recordingTransformer{currency: "LTC"}
	r, err := NewRegistry(rec)
	require.NoError(t, err)

	in := []sources.Rate{
		{Base: "LTC", Counter: "XMR", Price: 0.4, Provider: "KRAKEN"},
		{Base: "LTC", Counter: "XMR", Price: 0.4, Provider: sources.AggregateProvider},
	}
	out := r.Apply("XMR", in, ProviderResolver([]aggregator.Provider{kraken}))

	require.Len(t, rec.seen, 2)
	assert.Equal(t, kraken, rec.seen[0])
	assert.Nil(t, rec.seen[1])
	assert.InDelta(t, 1.4, out[0].Price, 1e-12)
	// input untouched
	assert.InDelta(t, 0.4, in[0].Price, 1e-12)
}

func TestHTTPGap(t *testing.T) {
	body := `{"oficial":{"value_sell":1000},"blue":{"value_sell":1500}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.UserAgent(), "haveno-pricenode/")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	g := NewHTTPGap("bluelytics", HTTPGapConfig{
		URL:          srv.URL,
		OfficialPath: "oficial.value_sell",
		ParallelPath: "blue.value_sell",
		MaxAge:       time.Minute,
	}, logging.NewNoopLogger())

	_, ok := g.Gap()
	assert.False(t, ok)

	require.NoError(t, g.Refresh(context.Background()))
	gap, ok := g.Gap()
	require.True(t, ok)
	assert.InDelta(t, 1.5, gap, 1e-12)

	// expires after MaxAge
	g.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, ok = g.Gap()
	assert.False(t, ok)

	body = `{"oficial":{"value_sell":0}}`
	assert.ErrorIs(t, g.Refresh(context.Background()), ErrInvalidGapResponse)
}
