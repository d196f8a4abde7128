// Package publish pushes built snapshots to downstream consumers.
package publish

import (
	"context"
	"time"

	"github.com/woodser/haveno-pricenode/pkg/logging"
	"github.com/woodser/haveno-pricenode/pkg/metrics"
	"github.com/woodser/haveno-pricenode/pkg/server/snapshot"
)

// Publisher delivers a snapshot somewhere outside the process.
type Publisher interface {
	Publish(ctx context.Context, snap *snapshot.Snapshot) error
	Close() error
}

// NopPublisher discards snapshots.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(context.Context, *snapshot.Snapshot) error { return nil }

// Close does nothing.
func (NopPublisher) Close() error { return nil }

// Loop builds a snapshot every interval and hands it to every publisher. Publish
// failures are logged and counted, never fatal.
type Loop struct {
	build      func() *snapshot.Snapshot
	interval   time.Duration
	publishers []Publisher
	logger     *logging.Logger
}

// NewLoop creates a publish loop.
func NewLoop(build func() *snapshot.Snapshot, interval time.Duration, logger *logging.Logger, publishers ...Publisher) *Loop {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Loop{
		build:      build,
		interval:   interval,
		publishers: publishers,
		logger:     logger,
	}
}

// Run publishes until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.PublishOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.PublishOnce(ctx)
		}
	}
}

// PublishOnce builds one snapshot and publishes it.
func (l *Loop) PublishOnce(ctx context.Context) {
	snap := l.build()
	for _, p := range l.publishers {
		if err := p.Publish(ctx, snap); err != nil {
			metrics.RecordSnapshotPublish("error")
			l.logger.Warn("Failed to publish snapshot", "publisher", publisherName(p), "error", err)
			continue
		}
		metrics.RecordSnapshotPublish("success")
	}
}

func publisherName(p Publisher) string {
	switch p.(type) {
	case *RedisPublisher:
		return "redis"
	case NopPublisher:
		return "nop"
	default:
		return "custom"
	}
}
