package ingress

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/droptracker-go/pipeline/internal/sqlstore"
)

var validate = validator.New()

type claimGenerateRequest struct {
	PlayerName string `json:"player_name" validate:"required"`
}

// handleClaimGenerate mints a short claim code bound to a player, the
// game-side half of the "!claim MOH-XXXX" flow carried from the original
// implementation (§3.1).
func (s *Server) handleClaimGenerate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r.Context(), s.cfg.RequestBudget)
	defer cancel()

	var req claimGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing player_name"})
		return
	}

	player, err := s.store.PlayerByName(ctx, s.store.Pool(), req.PlayerName)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown player"})
		return
	}

	code := "MOH-" + strings.ToUpper(uuid.NewString()[:8])
	expiresAt := time.Now().Add(s.cfg.ClaimCodeTTL)
	if err := s.store.InsertClaimCode(ctx, code, player.ID, expiresAt); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not generate claim code"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"code": code, "expires_at": expiresAt})
}

type claimRequest struct {
	Code      string `json:"code" validate:"required"`
	ClaimedBy string `json:"claimed_by" validate:"required"`
}

// handleClaim resolves a code generated by handleClaimGenerate, binding the
// chat account in claimed_by to the code's player (§3.1).
func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r.Context(), s.cfg.RequestBudget)
	defer cancel()

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing code or claimed_by"})
		return
	}

	playerID, err := s.store.ClaimCode(ctx, req.Code, req.ClaimedBy)
	if err != nil {
		if errors.Is(err, sqlstore.ErrNotFound) {
			writeJSON(w, http.StatusOK, map[string]string{"error": "invalid or expired code"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "claim failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "account claimed", "player_id": playerID})
}
