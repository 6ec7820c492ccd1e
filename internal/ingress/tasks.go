package ingress

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/droptracker-go/pipeline/internal/supervisor"
)

// handleListTasks serves the monitor CLI's `list`/`status` (no service arg)
// subcommands (§6): one row per supervised task.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if s.sup == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "supervisor not wired"})
		return
	}
	writeJSON(w, http.StatusOK, s.sup.Status())
}

// handleTaskStatus serves `monitor status {service}`.
func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	if s.sup == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "supervisor not wired"})
		return
	}
	name := chi.URLParam(r, "task")
	for _, st := range s.sup.Status() {
		if st.Name == name {
			writeJSON(w, http.StatusOK, st)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown service"})
}

func (s *Server) handleTaskStart(w http.ResponseWriter, r *http.Request) {
	s.taskOp(w, r, s.sup.StartTask)
}

func (s *Server) handleTaskStop(w http.ResponseWriter, r *http.Request) {
	s.taskOp(w, r, s.sup.StopTask)
}

func (s *Server) handleTaskRestart(w http.ResponseWriter, r *http.Request) {
	s.taskOp(w, r, s.sup.RestartTask)
}

// taskOp runs op against the task named in the URL and translates its
// result into the monitor CLI's exit-code contract: 404 for an unknown
// service (CLI exit 2), 500 for any other failure (CLI exit 1), 200 on
// success (CLI exit 0).
func (s *Server) taskOp(w http.ResponseWriter, r *http.Request, op func(string) error) {
	if s.sup == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "supervisor not wired"})
		return
	}
	name := chi.URLParam(r, "task")
	err := op(name)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	case errors.Is(err, supervisor.ErrUnknownTask):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown service"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

// handleTaskLogs serves `monitor logs {service} -n N`.
func (s *Server) handleTaskLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "log registry not wired"})
		return
	}
	name := chi.URLParam(r, "task")
	n := 100
	if raw := r.URL.Query().Get("n"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			n = parsed
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"lines": s.logs.Tail(name, n)})
}
