// Package stream provides a generic WebSocket source for JSON ticker streams.
package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/woodser/haveno-pricenode/pkg/server/sources"
	ws "github.com/woodser/haveno-pricenode/pkg/server/sources/websocket"
)

func init() {
	sources.Register("ws.json", NewSource)
}

// Source keeps the latest price of every configured instrument seen on a stream.
type Source struct {
	*sources.BaseSource

	subscribe     interface{}
	symbolPath    string
	pricePath     string
	timestampPath string
	client        *ws.Client
}

// NewSource creates a Source from config. Expected keys:
//
//	url:            stream endpoint
//	pairs:          { "XMR/USD": "XMRUSDT" } unified symbol -> instrument id on the stream
//	subscribe:      message sent after every (re)connect, a string or a JSON object
//	symbol_path:    gjson path of the instrument id in each message
//	price_path:     gjson path of the price in each message
//	timestamp_path: optional gjson path of a unix timestamp (s or ms)
//	reconnect_wait: initial reconnect backoff, default 5s
func NewSource(config map[string]interface{}) (sources.Source, error) {
	common, err := sources.ParseCommonConfig(config)
	if err != nil {
		return nil, err
	}

	url := sources.GetString(config, "url", "")
	if url == "" {
		return nil, fmt.Errorf("%w: missing 'url'", sources.ErrInvalidConfig)
	}
	symbolPath := sources.GetString(config, "symbol_path", "")
	pricePath := sources.GetString(config, "price_path", "")
	if symbolPath == "" || pricePath == "" {
		return nil, fmt.Errorf("%w: 'symbol_path' and 'price_path' are required", sources.ErrInvalidConfig)
	}

	pairs, err := sources.ParsePairsFromMap(config)
	if err != nil {
		return nil, err
	}

	if msg, ok := config["subscribe"].(string); ok && !gjson.Valid(msg) {
		return nil, fmt.Errorf("%w: subscribe message is not JSON", sources.ErrInvalidConfig)
	}

	logger := sources.GetLoggerFromConfig(config)
	base := sources.NewBaseSource(common.Name, sources.SourceTypeWS, pairs, logger)
	base.ApplyCommon(common)

	s := &Source{
		BaseSource:    base,
		subscribe:     config["subscribe"],
		symbolPath:    symbolPath,
		pricePath:     pricePath,
		timestampPath: sources.GetString(config, "timestamp_path", ""),
	}
	s.client = ws.NewClient(ws.Config{
		URL:           url,
		ReconnectWait: sources.GetDuration(config, "reconnect_wait", 5*time.Second),
		Logger:        base.Logger(),
	})
	s.client.SetHandlers(s.handleMessage, s.onConnect, s.onDisconnect)
	return s, nil
}

// Initialize prepares the source.
func (s *Source) Initialize(_ context.Context) error {
	return nil
}

// Start connects in the background; the client reconnects until Stop.
func (s *Source) Start(ctx context.Context) error {
	s.Logger().Info("Starting WebSocket stream source", "symbols", len(s.Symbols()))

	go func() {
		if err := s.client.ConnectWithRetry(ctx); err != nil {
			s.Logger().Error("Stream connection abandoned", "error", err)
			s.SetHealthy(false)
		}
	}()
	go func() {
		select {
		case <-ctx.Done():
			_ = s.client.Close()
		case <-s.StopChan():
		}
	}()
	return nil
}

// Stop closes the stream.
func (s *Source) Stop() error {
	s.Close()
	return s.client.Close()
}

func (s *Source) onConnect() {
	if s.subscribe == nil {
		return
	}
	var err error
	switch msg := s.subscribe.(type) {
	case string:
		err = s.client.SendJSON(rawMessage(msg))
	default:
		err = s.client.SendJSON(msg)
	}
	if err != nil {
		s.Logger().Warn("Failed to send subscribe message", "error", err)
	}
}

func (s *Source) onDisconnect(err error) {
	s.Logger().Warn("Stream disconnected", "error", err)
	s.SetHealthy(false)
}

// handleMessage stores the price carried by one stream message, if any.
func (s *Source) handleMessage(msg []byte) {
	if !gjson.ValidBytes(msg) {
		s.Logger().Debug("Ignoring non-JSON message")
		return
	}

	id := gjson.GetBytes(msg, s.symbolPath)
	if !id.Exists() {
		return
	}
	symbol := s.GetUnifiedSymbol(id.String())
	if symbol == "" {
		return
	}

	price := gjson.GetBytes(msg, s.pricePath).Float()
	if price <= 0 {
		s.Logger().Warn("Ignoring non-positive price", "symbol", symbol)
		return
	}

	ts := time.Now()
	if s.timestampPath != "" {
		if v := gjson.GetBytes(msg, s.timestampPath).Int(); v > 1e12 {
			ts = time.UnixMilli(v)
		} else if v > 0 {
			ts = time.Unix(v, 0)
		}
	}

	base, counter, err := sources.ParseSymbol(symbol)
	if err != nil {
		return
	}
	if err := s.SetRate(base, counter, price, ts); err != nil {
		s.Logger().Warn("Rejected rate", "symbol", symbol, "error", err)
		return
	}
	s.SetHealthy(true)
}

// rawMessage lets a configured string be sent verbatim through SendJSON.
type rawMessage string

func (m rawMessage) MarshalJSON() ([]byte, error) {
	if !gjson.Valid(string(m)) {
		return nil, fmt.Errorf("%w: subscribe message is not JSON", sources.ErrInvalidConfig)
	}
	return []byte(m), nil
}
