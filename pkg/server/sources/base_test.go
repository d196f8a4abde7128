package sources

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRate(t *testing.T) {
	r, err := NewRate("XMR", "USD", 195, 1700000000, "KRAKEN")
	require.NoError(t, err)
	assert.Equal(t, "XMR/USD", r.Symbol())

	_, err = NewRate("XMR", "XMR", 1, 0, "x")
	assert.ErrorIs(t, err, ErrSameCurrency)

	_, err = NewRate("XMR", "USD", -1, 0, "x")
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = NewRate("", "USD", 1, 0, "x")
	assert.ErrorIs(t, err, ErrInvalidSymbolFormat)

	zero, err := NewRate("XMR", "USD", 0, 0, "x")
	require.NoError(t, err)
	assert.Zero(t, zero.Price)
}

func TestRate_JSONFieldOrder(t *testing.T) {
	data, err := json.Marshal(Rate{Base: "XMR", Counter: "USD", Price: 195.5, Timestamp: 1700000000, Provider: AggregateProvider})
	require.NoError(t, err)
	assert.Equal(t,
		`{"baseCurrencyCode":"XMR","counterCurrencyCode":"USD","price":195.5,"timestampSec":1700000000,"provider":"Haveno-Aggregate"}`,
		string(data))
}

func TestBaseSource_SetRateAndRates(t *testing.T) {
	b := NewBaseSource("KRAKEN", SourceTypeHTTP, map[string]string{"XMR/USD": "a", "BTC/USD": "b"}, nil)
	assert.Equal(t, []string{"BTC/USD", "XMR/USD"}, b.Symbols())
	assert.Equal(t, "KRAKEN", b.Prefix())

	updates := make(chan RateUpdate, 4)
	require.NoError(t, b.Subscribe(updates))

	ts := time.Unix(1700000000, 0)
	require.NoError(t, b.SetRate("XMR", "USD", 195, ts))
	require.NoError(t, b.SetRate("BTC", "USD", 30000, ts))
	assert.Error(t, b.SetRate("BTC", "BTC", 1, ts))

	rates := b.Rates()
	require.Len(t, rates, 2)
	assert.Equal(t, "BTC", rates[0].Base)
	assert.Equal(t, "XMR", rates[1].Base)
	assert.Equal(t, "KRAKEN", rates[1].Provider)
	assert.Equal(t, int64(1700000000), rates[1].Timestamp)

	update := <-updates
	assert.Equal(t, "KRAKEN", update.Source)
	require.Len(t, update.Rates, 1)
	assert.Equal(t, "XMR/USD", update.Rates[0].Symbol())

	// returned slice is a copy
	rates[0].Price = 1
	got, ok := b.GetRate("BTC/USD")
	require.True(t, ok)
	assert.InDelta(t, 30000, got.Price, 1e-9)
}

func TestBaseSource_ClearStaleRates(t *testing.T) {
	now := time.Unix(1700000000, 0)
	b := NewBaseSource("S", SourceTypeStatic, map[string]string{}, nil)
	b.now = func() time.Time { return now }

	require.NoError(t, b.SetRate("XMR", "USD", 195, now.Add(-time.Hour)))
	require.NoError(t, b.SetRate("BTC", "USD", 30000, now.Add(-time.Minute)))

	// no max age keeps everything
	b.ClearStaleRates()
	assert.Len(t, b.Rates(), 2)

	b.ApplyCommon(CommonConfig{Name: "S", Prefix: "s", MaxAge: 10 * time.Minute})
	assert.Equal(t, "s", b.Prefix())
	b.ClearStaleRates()

	rates := b.Rates()
	require.Len(t, rates, 1)
	assert.Equal(t, "BTC/USD", rates[0].Symbol())
}

func TestBaseSource_RetryWithBackoff(t *testing.T) {
	b := NewBaseSource("S", SourceTypeHTTP, map[string]string{}, nil)

	calls := 0
	err := b.RetryWithBackoff(context.Background(), "fetch", func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, b.IsHealthy())

	b.Close()
	err = b.RetryWithBackoff(context.Background(), "fetch", func() error {
		return errors.New("boom")
	})
	assert.ErrorIs(t, err, ErrSourceStoppedRetry)
}

func TestRegistry(t *testing.T) {
	Register("test.fake", func(config map[string]interface{}) (Source, error) {
		return nil, ErrInvalidConfig
	})

	_, err := Create("test", "fake", nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Create("test", "missing", nil)
	assert.ErrorIs(t, err, ErrUnknownSource)

	assert.Contains(t, List(), "test.fake")
}
