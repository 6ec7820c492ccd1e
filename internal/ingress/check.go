package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

type checkRequest struct {
	UUID string `json:"uuid"`
}

// handleCheck is the idempotency probe: given {uuid}, report whether any of
// the four submission tables recorded it within the last 12 hours. After
// maxChecksBeforeGivingUp consecutive misses, report processed=true anyway
// so a polling client stops — this fallback masks upstream bugs but is
// preserved as-is (§9 open question (a)).
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r.Context(), s.cfg.RequestBudget)
	defer cancel()

	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UUID == "" {
		writeJSON(w, http.StatusOK, map[string]any{"processed": false, "status": "not_found", "uuid": req.UUID})
		return
	}

	kind, id, found, err := s.store.CheckSubmission(ctx, s.store.Pool(), req.UUID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			writeJSON(w, http.StatusOK, map[string]any{"processed": false, "status": "timeout", "uuid": req.UUID})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"processed": false, "status": "not_found", "uuid": req.UUID})
		return
	}
	if found {
		s.checkMisses.clear(req.UUID)
		writeJSON(w, http.StatusOK, map[string]any{
			"processed": true, "status": "processed", "uuid": req.UUID, "type": kind, "id": id,
		})
		return
	}

	if s.checkMisses.recordMiss(req.UUID) {
		writeJSON(w, http.StatusOK, map[string]any{"processed": true, "status": "processed", "uuid": req.UUID})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"processed": false, "status": "not_found", "uuid": req.UUID})
}
