package metrics

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

const (
	sinkQueueSize     = 4096
	sinkBatchSize     = 200
	sinkFlushInterval = 5 * time.Second
)

// analyticsEvent is one row of the droptracker.submission_events table.
type analyticsEvent struct {
	ID        string
	Timestamp time.Time
	Kind      string
	Success   bool
	Source    string
}

// analyticsSink batches submission events into ClickHouse the way the
// teacher's worker pool batches raw events: a buffered channel feeds a
// single loop that flushes on a size or time trigger, never blocking the
// request path that called enqueue.
type analyticsSink struct {
	ch     driver.Conn
	log    *zap.SugaredLogger
	events chan analyticsEvent
}

func newAnalyticsSink(ch driver.Conn, log *zap.SugaredLogger) *analyticsSink {
	return &analyticsSink{ch: ch, log: log, events: make(chan analyticsEvent, sinkQueueSize)}
}

func (s *analyticsSink) enqueue(e analyticsEvent) {
	select {
	case s.events <- e:
	default:
		analyticsDropped.Inc()
	}
}

func (s *analyticsSink) run(ctx context.Context) {
	ticker := time.NewTicker(sinkFlushInterval)
	defer ticker.Stop()

	batch := make([]analyticsEvent, 0, sinkBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.insert(batch); err != nil {
			s.log.Warnw("metrics: clickhouse batch insert failed", "error", err, "count", len(batch))
		}
		batch = batch[:0]
	}

	for {
		select {
		case e, ok := <-s.events:
			if !ok {
				flush()
				return
			}
			batch = append(batch, e)
			if len(batch) >= sinkBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			flush()
			return
		}
	}
}

func (s *analyticsSink) insert(batch []analyticsEvent) error {
	start := time.Now()
	defer func() { batchInsertDuration.Observe(time.Since(start).Seconds()) }()

	ctx := context.Background()
	chBatch, err := s.ch.PrepareBatch(ctx, `
		INSERT INTO droptracker.submission_events (id, timestamp, kind, success, source)
	`)
	if err != nil {
		return err
	}
	for _, e := range batch {
		if err := chBatch.Append(e.ID, e.Timestamp, e.Kind, e.Success, e.Source); err != nil {
			s.log.Warnw("metrics: append to clickhouse batch failed", "error", err)
			continue
		}
	}
	return chBatch.Send()
}
