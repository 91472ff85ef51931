package learning

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/liliang-cn/federation-go/pkg/log"
)

// DefaultQueueSize bounds the ingest queue.
const DefaultQueueSize = 1024

// Ingestor decouples outcome recording from the routing hot path. Enqueue
// never blocks: when the queue is full the outcome is dropped and counted.
type Ingestor struct {
	tracker *Tracker
	queue   chan *Outcome
	dropped atomic.Int64
	logger  *slog.Logger
}

// NewIngestor wraps a tracker with a bounded queue. A non-positive size uses
// the default.
func NewIngestor(tracker *Tracker, size int) *Ingestor {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Ingestor{
		tracker: tracker,
		queue:   make(chan *Outcome, size),
		logger:  log.WithModule("outcome-ingest"),
	}
}

// Enqueue hands an outcome to the background worker. It reports whether the
// outcome was accepted.
func (i *Ingestor) Enqueue(o *Outcome) bool {
	select {
	case i.queue <- o:
		return true
	default:
		n := i.dropped.Add(1)
		i.logger.Warn("outcome queue full, dropping", "dropped_total", n)
		return false
	}
}

// Dropped returns how many outcomes have been dropped since start.
func (i *Ingestor) Dropped() int64 {
	return i.dropped.Load()
}

// Run drains the queue into the tracker until the context is cancelled.
// Outcomes still queued at cancellation are flushed.
func (i *Ingestor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case o := <-i.queue:
					i.tracker.Record(context.Background(), o)
				default:
					return ctx.Err()
				}
			}
		case o := <-i.queue:
			i.tracker.Record(ctx, o)
		}
	}
}
