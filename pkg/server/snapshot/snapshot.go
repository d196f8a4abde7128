package snapshot

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/woodser/haveno-pricenode/pkg/server/sources"
)

// DataKey is the key holding the rate list in the serialized snapshot.
const DataKey = "data"

// Snapshot is the payload of one aggregation pass: metadata fields in source
// order followed by the sorted pivot rates.
type Snapshot struct {
	Metadata  []Field
	Data      []sources.Rate
	CreatedAt time.Time
}

// MarshalJSON writes the metadata keys in order, then "data".
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for _, f := range s.Metadata {
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
		buf.WriteByte(',')
	}

	data := s.Data
	if data == nil {
		data = []sources.Rate{}
	}
	rates, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`"` + DataKey + `":`)
	buf.Write(rates)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Field returns the metadata value stored under key.
func (s *Snapshot) Field(key string) (int64, bool) {
	for _, f := range s.Metadata {
		if f.Key == key {
			return f.Value, true
		}
	}
	return 0, false
}
