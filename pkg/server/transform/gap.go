package transform

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/woodser/haveno-pricenode/pkg/logging"
	"github.com/woodser/haveno-pricenode/pkg/server/sources"
	"github.com/woodser/haveno-pricenode/pkg/version"
)

// HTTPGapConfig configures an HTTPGap.
type HTTPGapConfig struct {
	URL          string
	OfficialPath string // gjson path of the official sell price
	ParallelPath string // gjson path of the parallel-market sell price
	Interval     time.Duration
	MaxAge       time.Duration
	Timeout      time.Duration
}

// HTTPGap polls a JSON endpoint quoting an official and a parallel-market price and
// serves their ratio. The value expires after MaxAge without a successful poll.
type HTTPGap struct {
	*sources.BaseSource

	cfg    HTTPGapConfig
	client *http.Client

	mu        sync.RWMutex
	gap       float64
	updatedAt time.Time
	now       func() time.Time
}

var _ GapProvider = (*HTTPGap)(nil)

// NewHTTPGap creates a gap provider. Zero durations get defaults.
func NewHTTPGap(name string, cfg HTTPGapConfig, logger *logging.Logger) *HTTPGap {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 3 * cfg.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &HTTPGap{
		BaseSource: sources.NewBaseSource(name, sources.SourceTypeHTTP, map[string]string{}, logger),
		cfg:        cfg,
		client:     &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
	}
}

// Start fetches once and then polls until ctx is done or Stop is called.
func (g *HTTPGap) Start(ctx context.Context) error {
	if err := g.RetryWithBackoff(ctx, "gap", func() error { return g.Refresh(ctx) }); err != nil {
		g.Logger().Warn("Initial gap fetch failed after retries", "error", err)
	}

	go func() {
		ticker := time.NewTicker(g.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-g.StopChan():
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := g.Refresh(ctx); err != nil {
					g.Logger().Warn("Gap refresh failed", "error", err)
				}
			}
		}
	}()
	return nil
}

// Stop halts polling.
func (g *HTTPGap) Stop() {
	g.Close()
}

// Refresh fetches the endpoint once and updates the cached gap.
func (g *HTTPGap) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", version.AgentString())

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch gap: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", sources.ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	official := gjson.GetBytes(body, g.cfg.OfficialPath)
	parallel := gjson.GetBytes(body, g.cfg.ParallelPath)
	if !official.Exists() || !parallel.Exists() || official.Float() <= 0 || parallel.Float() <= 0 {
		return fmt.Errorf("%w: official=%q parallel=%q", ErrInvalidGapResponse, official.Raw, parallel.Raw)
	}

	gap := parallel.Float() / official.Float()

	g.mu.Lock()
	g.gap = gap
	g.updatedAt = g.now()
	g.mu.Unlock()

	g.SetLastUpdate(g.now())
	g.SetHealthy(true)
	g.Logger().Debug("Updated gap", "gap", gap)
	return nil
}

// Gap returns the cached ratio, false if none was fetched or it is older than MaxAge.
func (g *HTTPGap) Gap() (float64, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.updatedAt.IsZero() || g.now().Sub(g.updatedAt) > g.cfg.MaxAge {
		return 0, false
	}
	return g.gap, true
}
