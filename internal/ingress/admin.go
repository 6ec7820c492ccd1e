package ingress

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/droptracker-go/pipeline/internal/lootboard"
)

// requireGroupAdmin loads groupID's Group and checks the caller's chat user
// id (X-Chat-User-ID header) against the group's authed_users config key
// (§3.1's per-group authorized-admin gate).
func (s *Server) requireGroupAdmin(w http.ResponseWriter, r *http.Request, groupID int64) bool {
	ctx, cancel := contextWithTimeout(r.Context(), s.cfg.RequestBudget)
	defer cancel()

	group, err := s.store.Group(ctx, s.store.Pool(), groupID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown group"})
		return false
	}

	userID := r.Header.Get("X-Chat-User-ID")
	allowed, ok := group.Configuration["authed_users"]
	if userID == "" || !ok || !containsCSV(allowed, userID) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not an authorized admin for this group"})
		return false
	}
	return true
}

func containsCSV(csv, value string) bool {
	for _, part := range strings.Split(csv, ",") {
		if strings.TrimSpace(part) == value {
			return true
		}
	}
	return false
}

// handleAdminHoFRender manually re-triggers a Hall-of-Fame render for one
// boss, carried from the original's admin command surface (§3.1).
func (s *Server) handleAdminHoFRender(w http.ResponseWriter, r *http.Request) {
	groupID, npcID, ok := s.parseGroupNPC(w, r)
	if !ok {
		return
	}
	if !s.requireGroupAdmin(w, r, groupID) {
		return
	}
	s.hof.Enqueue(groupID, npcID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "render queued"})
}

// handleAdminLootboardRender forces a lootboard regeneration outside the
// 6-minute cadence (§3.1).
func (s *Server) handleAdminLootboardRender(w http.ResponseWriter, r *http.Request) {
	groupIDStr := chi.URLParam(r, "group")
	groupID, err := strconv.ParseInt(groupIDStr, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid group id"})
		return
	}
	if !s.requireGroupAdmin(w, r, groupID) {
		return
	}

	ctx, cancel := contextWithTimeout(r.Context(), s.cfg.RequestBudget)
	defer cancel()
	if err := s.lootboard.Generate(ctx, groupID, lootboard.BoardFilter{Granularity: lootboard.GranularityMonthly}); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "lootboard regenerated"})
}

func (s *Server) parseGroupNPC(w http.ResponseWriter, r *http.Request) (groupID, npcID int64, ok bool) {
	groupID, err := strconv.ParseInt(chi.URLParam(r, "group"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid group id"})
		return 0, 0, false
	}
	npcID, err = strconv.ParseInt(chi.URLParam(r, "npc"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid npc id"})
		return 0, 0, false
	}
	return groupID, npcID, true
}
