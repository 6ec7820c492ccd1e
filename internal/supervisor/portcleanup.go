package supervisor

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// CleanupPort frees a TCP port left bound by a crashed prior instance of
// this process before the HTTP listener starts, best-effort (fuser/lsof may
// not exist in every deployment environment, and that's not fatal).
func CleanupPort(ctx context.Context, port int, log *zap.SugaredLogger) bool {
	const maxAttempts = 10
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if portAvailable(port) {
			return true
		}

		killListeners(ctx, port, log)

		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Second):
		}

		if portAvailable(port) {
			log.Infow("supervisor: port now available", "port", port, "attempt", attempt+1)
			return true
		}
	}
	log.Warnw("supervisor: port still in use after cleanup attempts", "port", port)
	return false
}

func portAvailable(port int) bool {
	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	l.Close()
	return true
}

// killListeners runs fuser and then lsof (killing each PID lsof reports) to
// terminate whatever process currently holds the port. Missing binaries are
// ignored.
func killListeners(ctx context.Context, port int, log *zap.SugaredLogger) {
	if err := exec.CommandContext(ctx, "fuser", "-k", fmt.Sprintf("%d/tcp", port)).Run(); err != nil {
		log.Debugw("supervisor: fuser port cleanup unavailable or no-op", "port", port, "error", err)
	}

	out, err := exec.CommandContext(ctx, "lsof", "-ti", fmt.Sprintf("tcp:%d", port), "-sTCP:LISTEN").Output()
	if err != nil || len(out) == 0 {
		return
	}
	for _, pid := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if pid == "" {
			continue
		}
		log.Infow("supervisor: killing process holding port", "pid", pid, "port", port)
		_ = exec.CommandContext(ctx, "kill", "-9", pid).Run()
	}
}
