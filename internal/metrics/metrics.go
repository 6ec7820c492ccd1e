// Package metrics implements the pipeline's observability surface: a set of
// promauto collectors scraped at /metrics, a rolling one-minute-bucket
// in-memory window for the health/status surface, and an optional
// ClickHouse analytics sink that batches submission events for later
// querying. None of these ever fail a submission — ClickHouse writes are
// best-effort per §7's TransientBackend classification.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "droptracker_submissions_total",
		Help: "Total number of submissions processed, by kind/success/source.",
	}, []string{"kind", "success", "source"})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "droptracker_notify_queue_depth",
		Help: "Current depth of the pending notification queue.",
	})

	notifyDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "droptracker_notify_dispatched_total",
		Help: "Total notifications dispatched, by outcome.",
	}, []string{"outcome"})

	hofRendersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "droptracker_hof_renders_total",
		Help: "Total Hall-of-Fame render attempts, by outcome.",
	}, []string{"outcome"})

	batchInsertDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "droptracker_analytics_batch_insert_duration_seconds",
		Help:    "Duration of batched analytics inserts into ClickHouse.",
		Buckets: prometheus.DefBuckets,
	})

	analyticsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "droptracker_analytics_events_dropped_total",
		Help: "Analytics events dropped because the sink queue was full.",
	})
)

// Recorder is the concrete implementation of ingress.Metrics, notifier and
// hof dispatch counters, and an in-memory sliding window of submission
// counts; the monitor CLI does not read the window.
type Recorder struct {
	log    *zap.SugaredLogger
	window *slidingWindow
	sink   *analyticsSink
}

func New(log *zap.SugaredLogger, ch driver.Conn) *Recorder {
	r := &Recorder{
		log:    log,
		window: newSlidingWindow(60),
	}
	if ch != nil {
		r.sink = newAnalyticsSink(ch, log)
	}
	return r
}

// Run starts the analytics sink's background flush loop. It blocks until
// ctx is cancelled.
func (r *Recorder) Run(ctx context.Context) {
	if r.sink == nil {
		<-ctx.Done()
		return
	}
	r.sink.run(ctx)
}

// RecordSubmission implements ingress.Metrics.
func (r *Recorder) RecordSubmission(kind string, success bool, source string) {
	submissionsTotal.WithLabelValues(kind, boolLabel(success), source).Inc()
	r.window.record(kind, success)
	if r.sink != nil {
		r.sink.enqueue(analyticsEvent{
			ID:        uuid.NewString(),
			Timestamp: time.Now(),
			Kind:      kind,
			Success:   success,
			Source:    source,
		})
	}
}

func (r *Recorder) SetQueueDepth(n int64) { queueDepth.Set(float64(n)) }

func (r *Recorder) RecordNotifyDispatch(success bool) {
	notifyDispatched.WithLabelValues(boolLabel(success)).Inc()
}

func (r *Recorder) RecordHoFRender(success bool) {
	hofRendersTotal.WithLabelValues(boolLabel(success)).Inc()
}

// Snapshot returns counts by kind summed over the window's 60 one-minute
// buckets.
func (r *Recorder) Snapshot() map[string]WindowCount {
	return r.window.snapshot()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// WindowCount is one kind's tallies within the sliding window.
type WindowCount struct {
	Total   int64
	Success int64
}

// slidingWindow keeps per-minute buckets for the last N minutes, used for a
// lightweight "how's it going right now" view without querying ClickHouse.
type slidingWindow struct {
	mu      sync.Mutex
	minutes int
	buckets []map[string]WindowCount
	cursor  int
	stamp   int64
}

func newSlidingWindow(minutes int) *slidingWindow {
	buckets := make([]map[string]WindowCount, minutes)
	for i := range buckets {
		buckets[i] = make(map[string]WindowCount)
	}
	return &slidingWindow{minutes: minutes, buckets: buckets, stamp: nowMinute()}
}

func nowMinute() int64 { return time.Now().Unix() / 60 }

func (w *slidingWindow) record(kind string, success bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rotate()
	c := w.buckets[w.cursor][kind]
	c.Total++
	if success {
		c.Success++
	}
	w.buckets[w.cursor][kind] = c
}

// rotate clears buckets that have aged out since the last call.
func (w *slidingWindow) rotate() {
	now := nowMinute()
	elapsed := int(now - w.stamp)
	if elapsed <= 0 {
		return
	}
	if elapsed > w.minutes {
		elapsed = w.minutes
	}
	for i := 0; i < elapsed; i++ {
		w.cursor = (w.cursor + 1) % w.minutes
		w.buckets[w.cursor] = make(map[string]WindowCount)
	}
	w.stamp = now
}

func (w *slidingWindow) snapshot() map[string]WindowCount {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rotate()
	out := make(map[string]WindowCount)
	for _, bucket := range w.buckets {
		for kind, c := range bucket {
			agg := out[kind]
			agg.Total += c.Total
			agg.Success += c.Success
			out[kind] = agg
		}
	}
	return out
}
