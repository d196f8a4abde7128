package snapshot

import (
	"fmt"
	"strings"

	"github.com/woodser/haveno-pricenode/pkg/server/aggregator"
	"github.com/woodser/haveno-pricenode/pkg/server/sources"
)

// Field is one metadata entry of a snapshot.
type Field struct {
	Key   string
	Value int64
}

// CollectMetadata returns the <prefix>Ts and <prefix>Count fields for src, in that order.
// Ts is the timestamp of the first rate whose provider starts with the source name, 0 when
// there is none; the returned error explains a 0 Ts for a source that did return rates.
func CollectMetadata(src aggregator.Provider, rates []sources.Rate) ([]Field, error) {
	prefix := src.Prefix()
	var ts int64
	var err error
	if len(rates) > 0 {
		ts, err = firstTimestamp(src.Name(), rates)
	}
	return []Field{
		{Key: prefix + "Ts", Value: ts},
		{Key: prefix + "Count", Value: int64(len(rates))},
	}, err
}

func firstTimestamp(name string, rates []sources.Rate) (int64, error) {
	for _, r := range rates {
		if strings.HasPrefix(r.Provider, name) {
			return r.Timestamp, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrNoSourceRates, name)
}
