package supervisor

import (
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"
)

// LogRegistry keeps a bounded ring of recent log lines per task name, fed by
// a zapcore.WriteSyncer attached to that task's logger. It backs the
// monitor CLI's `logs` subcommand (§6) without needing a log file per task.
type LogRegistry struct {
	mu       sync.Mutex
	capacity int
	rings    map[string]*ring
}

func NewLogRegistry(capacity int) *LogRegistry {
	if capacity <= 0 {
		capacity = 200
	}
	return &LogRegistry{capacity: capacity, rings: make(map[string]*ring)}
}

// Sink returns a zapcore.WriteSyncer that appends every write to task's ring,
// for use with zap.WrapCore + zapcore.NewTee when constructing a task's
// named logger.
func (r *LogRegistry) Sink(task string) zapcore.WriteSyncer {
	r.mu.Lock()
	defer r.mu.Unlock()
	rg, ok := r.rings[task]
	if !ok {
		rg = newRing(r.capacity)
		r.rings[task] = rg
	}
	return ringWriter{rg}
}

// Tail returns up to n of the most recent log lines for task, oldest first.
func (r *LogRegistry) Tail(task string, n int) []string {
	r.mu.Lock()
	rg, ok := r.rings[task]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return rg.tail(n)
}

type ring struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

func newRing(capacity int) *ring {
	return &ring{lines: make([]string, capacity)}
}

func (rg *ring) append(line string) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	rg.lines[rg.next] = line
	rg.next = (rg.next + 1) % len(rg.lines)
	if rg.next == 0 {
		rg.full = true
	}
}

func (rg *ring) tail(n int) []string {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	var ordered []string
	if rg.full {
		ordered = append(ordered, rg.lines[rg.next:]...)
		ordered = append(ordered, rg.lines[:rg.next]...)
	} else {
		ordered = append(ordered, rg.lines[:rg.next]...)
	}
	if n <= 0 || n >= len(ordered) {
		return ordered
	}
	return ordered[len(ordered)-n:]
}

// ringWriter adapts a *ring to zapcore.WriteSyncer, splitting each write on
// newlines since zap may batch multiple encoded entries per call.
type ringWriter struct{ rg *ring }

func (w ringWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line != "" {
			w.rg.append(line)
		}
	}
	return len(p), nil
}

func (w ringWriter) Sync() error { return nil }
