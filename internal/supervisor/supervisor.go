// Package supervisor implements C12: it runs the ingress server, notifier,
// Hall-of-Fame renderer, and lootboard scheduler as long-lived tasks, polls
// each one's health on a cron-driven watchdog tick, restarts a task after
// repeated unhealthy polls, and drives graceful shutdown on SIGINT/SIGTERM/
// SIGHUP (§4.7).
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ErrUnknownTask is returned by StartTask/StopTask/RestartTask for a name
// that does not match any task the supervisor was constructed with — the
// monitor CLI's exit code 2 (§6).
var ErrUnknownTask = errors.New("supervisor: unknown task")

// Task is one supervised long-running component. Run should block until ctx
// is cancelled or the task fails; Healthy reports whether the task's last
// observed state is good, polled independently of Run's lifetime.
type Task interface {
	Name() string
	Run(ctx context.Context) error
	Healthy() bool
}

type Settings struct {
	HeartbeatInterval    time.Duration
	RestartAfterFailures int
	ShutdownGrace        time.Duration
}

type handle struct {
	task     Task
	cancel   context.CancelFunc
	failures int
	running  bool
}

type Supervisor struct {
	tasks   []Task
	cfg     Settings
	log     *zap.SugaredLogger
	mu      sync.Mutex
	handles map[string]*handle
	wg      sync.WaitGroup
	ctx     context.Context
}

// TaskStatus is a point-in-time snapshot of one supervised task, the shape
// the monitor CLI's `list`/`status` subcommands render (§6).
type TaskStatus struct {
	Name     string `json:"name"`
	Running  bool   `json:"running"`
	Healthy  bool   `json:"healthy"`
	Failures int    `json:"consecutive_failures"`
}

func New(cfg Settings, log *zap.SugaredLogger, tasks ...Task) *Supervisor {
	return &Supervisor{
		tasks:   tasks,
		cfg:     cfg,
		log:     log,
		handles: make(map[string]*handle, len(tasks)),
	}
}

// Run starts every task, the watchdog cron, and blocks until a shutdown
// signal arrives or the parent context is cancelled. It returns once every
// task has stopped, or force-exits the process if the grace period expires
// first.
func (s *Supervisor) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	for _, t := range s.tasks {
		s.start(ctx, t)
	}

	watchdog := cron.New()
	tick := s.cfg.HeartbeatInterval / 2
	if tick <= 0 {
		tick = 5 * time.Second
	}
	if _, err := watchdog.AddFunc(fmt.Sprintf("@every %s", tick), func() { s.checkHealth(ctx) }); err != nil {
		s.log.Errorw("supervisor: failed to schedule watchdog", "error", err)
	}
	watchdog.Start()
	defer watchdog.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case sig := <-sigCh:
		s.log.Infow("supervisor: shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
	}

	cancel()
	select {
	case <-done:
		s.log.Infow("supervisor: all tasks stopped cleanly")
		return nil
	case <-time.After(s.cfg.ShutdownGrace):
		s.log.Errorw("supervisor: graceful shutdown exceeded grace period, forcing exit")
		os.Exit(1)
		return nil
	}
}

// start launches a task with its own cancelable child context, recording a
// handle so the watchdog can cancel and relaunch it later.
func (s *Supervisor) start(parent context.Context, t Task) {
	taskCtx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	s.handles[t.Name()] = &handle{task: t, cancel: cancel, running: true}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := t.Run(taskCtx); err != nil && taskCtx.Err() == nil {
			s.log.Errorw("supervisor: task exited with error", "task", t.Name(), "error", err)
		}
		s.mu.Lock()
		if h, ok := s.handles[t.Name()]; ok && h.cancel != nil {
			h.running = false
		}
		s.mu.Unlock()
	}()
}

// Status snapshots every task's current liveness, in the order tasks were
// registered — the monitor CLI's `list` subcommand (§6).
func (s *Supervisor) Status() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaskStatus, 0, len(s.tasks))
	for _, t := range s.tasks {
		st := TaskStatus{Name: t.Name(), Healthy: t.Healthy()}
		if h, ok := s.handles[t.Name()]; ok {
			st.Running = h.running
			st.Failures = h.failures
		}
		out = append(out, st)
	}
	return out
}

func (s *Supervisor) findTask(name string) Task {
	for _, t := range s.tasks {
		if t.Name() == name {
			return t
		}
	}
	return nil
}

// StopTask cancels a running task's context. The task is responsible for
// observing ctx.Done() and returning from Run promptly (§4.7).
func (s *Supervisor) StopTask(name string) error {
	s.mu.Lock()
	h, ok := s.handles[name]
	s.mu.Unlock()
	if !ok {
		return ErrUnknownTask
	}
	h.cancel()
	return nil
}

// StartTask relaunches a named task with a fresh child context. Calling it
// on an already-running task spawns a second goroutine racing the first —
// callers should StopTask first (RestartTask does this).
func (s *Supervisor) StartTask(name string) error {
	task := s.findTask(name)
	if task == nil {
		return ErrUnknownTask
	}
	s.mu.Lock()
	parent := s.ctx
	s.mu.Unlock()
	if parent == nil {
		return fmt.Errorf("supervisor: not running")
	}
	s.start(parent, task)
	return nil
}

// RestartTask stops then relaunches a named task.
func (s *Supervisor) RestartTask(name string) error {
	if err := s.StopTask(name); err != nil {
		return err
	}
	return s.StartTask(name)
}

// checkHealth polls every task's Healthy() and restarts one after
// RestartAfterFailures consecutive unhealthy polls.
func (s *Supervisor) checkHealth(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for name, h := range s.handles {
		if h.task.Healthy() {
			h.failures = 0
			continue
		}
		h.failures++
		s.log.Warnw("supervisor: task reported unhealthy", "task", name, "consecutive_failures", h.failures)
		if h.failures < s.cfg.RestartAfterFailures {
			continue
		}

		s.log.Errorw("supervisor: restarting task after consecutive failures", "task", name, "failures", h.failures)
		h.cancel()
		s.wg.Add(1)
		task := h.task
		taskCtx, cancel := context.WithCancel(ctx)
		h.cancel = cancel
		h.failures = 0
		h.running = true
		go func() {
			defer s.wg.Done()
			if err := task.Run(taskCtx); err != nil && taskCtx.Err() == nil {
				s.log.Errorw("supervisor: restarted task exited with error", "task", task.Name(), "error", err)
			}
			s.mu.Lock()
			if hh, ok := s.handles[task.Name()]; ok && hh.cancel != nil {
				hh.running = false
			}
			s.mu.Unlock()
		}()
	}
}
