package ingress

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

func (s *Server) Name() string { return "ingress" }

// Healthy reports whether the last health probe (driven by Run's own
// background loop) succeeded within the last three health budgets.
func (s *Server) Healthy() bool {
	last := s.lastHealthyAt.Load()
	if last == 0 {
		return true
	}
	return time.Since(time.Unix(last, 0)) < 3*s.cfg.HealthBudget
}

// Run starts the HTTP listener on cfg.Port and blocks until ctx is
// cancelled, shutting the server down gracefully (§4.1, driven by C12).
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.Router(),
	}

	go s.pingLoop(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

// pingLoop periodically pings the SQL store and stamps lastHealthyAt, the
// value Healthy() checks; it never itself causes a worker restart since it
// only feeds the supervisor's independent watchdog poll.
func (s *Server) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.HealthBudget)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, s.cfg.HealthBudget)
			err := s.store.Ping(pingCtx)
			cancel()
			if err == nil {
				s.lastHealthyAt.Store(time.Now().Unix())
			}
		}
	}
}
