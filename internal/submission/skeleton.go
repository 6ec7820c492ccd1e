package submission

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/droptracker-go/pipeline/internal/directory"
	"github.com/droptracker-go/pipeline/internal/models"
	"github.com/droptracker-go/pipeline/internal/sqlstore"
)

// newSkeleton builds the shared dependency bundle used by every processor.
func newSkeleton(store *sqlstore.Store, dir *directory.Client, agg Aggregator, notify Notifications, cfg Settings) skeleton {
	dedup := make(map[models.SubmissionKind]*dedupRing, 4)
	for _, k := range []models.SubmissionKind{
		models.KindDrop, models.KindCollectionLog, models.KindPersonalBest,
		models.KindCombatAchievement, models.KindPet,
	} {
		dedup[k] = newDedupRing(models.RecentUniqueIDCache)
	}
	return skeleton{store: store, dir: dir, agg: agg, notify: notify, cfg: cfg, dedup: dedup}
}

// checkDuplicate implements §4.2 step 2: the in-process ring is checked
// first (fast path), then the durable SQL table (cross-process backstop).
func (s *skeleton) checkDuplicate(ctx context.Context, q sqlstore.PgPool, kind models.SubmissionKind, uniqueID string) (bool, error) {
	if ring, ok := s.dedup[kind]; ok && ring.seenOrAdd(uniqueID) {
		return true, nil
	}
	dup, err := s.store.RecentUniqueID(ctx, q, uniqueID)
	if err != nil {
		return false, fmt.Errorf("submission: duplicate check: %w", err)
	}
	return dup, nil
}

// resolvePlayer implements §4.2 step 3 (player half) and step 4
// (authentication). The nameChanged result is always false: players are
// matched by display name here, and renames are not detected on this path.
func (s *skeleton) resolvePlayer(ctx context.Context, q sqlstore.PgPool, name, accountHash string) (p *models.Player, nameChanged bool, err error) {
	p, err = s.store.PlayerByName(ctx, q, name)
	if err == sqlstore.ErrNotFound {
		snap, derr := s.dir.Resolve(ctx, name)
		if derr != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrResolutionPending, derr)
		}
		newPlayer := &models.Player{
			DirectoryID: snap.DirectoryID,
			DisplayName: snap.DisplayName,
			AccountHash: accountHash,
		}
		id, ierr := s.store.InsertPlayer(ctx, q, newPlayer)
		if ierr != nil {
			return nil, false, fmt.Errorf("submission: insert new player: %w", ierr)
		}
		newPlayer.ID = id
		return newPlayer, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("submission: resolve player: %w", err)
	}

	// Authentication (§4.2 step 4): first-bind latches any hash; mismatch on
	// an already-bound hash fails silently.
	latch, ok := checkAccountHash(p.AccountHash, accountHash)
	if !ok {
		return nil, false, ErrAuthFailed
	}
	if latch {
		if err := s.store.LatchAccountHash(ctx, q, p.ID, accountHash); err != nil {
			return nil, false, err
		}
		p.AccountHash = accountHash
	}
	return p, false, nil
}

// checkAccountHash implements §4.2 step 4's authentication rule: an unbound
// player latches whatever hash arrives first; a bound player's hash must
// match exactly, or the submission is rejected.
func checkAccountHash(existing, submitted string) (latch bool, ok bool) {
	if existing == "" {
		return true, true
	}
	return false, existing == submitted
}

// resolveNPC implements §4.2 step 3 (NPC half), including the Mokhaiotl tier
// special case.
func (s *skeleton) resolveNPC(ctx context.Context, q sqlstore.PgPool, name string) (*models.NPC, bool, error) {
	if id, ok := mokhaiotlTierID(name); ok {
		npc, err := s.store.NPCByName(ctx, q, name)
		if err == sqlstore.ErrNotFound {
			if err := s.store.InsertNPC(ctx, q, id, name); err != nil {
				return nil, false, err
			}
			return &models.NPC{ID: id, Name: name}, true, nil
		}
		if err != nil {
			return nil, false, err
		}
		return npc, false, nil
	}

	npc, err := s.store.NPCByName(ctx, q, name)
	if err == sqlstore.ErrNotFound {
		snap, derr := s.dir.Resolve(ctx, name)
		if derr != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrResolutionPending, derr)
		}
		if ierr := s.store.InsertNPC(ctx, q, snap.DirectoryID, name); ierr != nil {
			return nil, false, ierr
		}
		return &models.NPC{ID: snap.DirectoryID, Name: name}, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return npc, false, nil
}

// resolveItem implements §4.2 step 3 (Item half).
func (s *skeleton) resolveItem(ctx context.Context, q sqlstore.PgPool, name string) (*models.Item, bool, error) {
	item, err := s.store.ItemByName(ctx, q, name)
	if err == sqlstore.ErrNotFound {
		snap, derr := s.dir.Resolve(ctx, name)
		if derr != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrResolutionPending, derr)
		}
		if ierr := s.store.InsertItem(ctx, q, snap.DirectoryID, name); ierr != nil {
			return nil, false, ierr
		}
		return &models.Item{ID: snap.DirectoryID, Name: name}, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return item, false, nil
}

// mokhaiotlTierID resolves "Doom of Mokhaiotl (Level N)" to id 14707+N
// (§3, §4.2 step 3 "Special case").
func mokhaiotlTierID(npcName string) (int64, bool) {
	const prefix = "doom of mokhaiotl (level "
	lower := strings.ToLower(npcName)
	if !strings.HasPrefix(lower, prefix) || !strings.HasSuffix(lower, ")") {
		return 0, false
	}
	levelStr := lower[len(prefix) : len(lower)-1]
	n, err := strconv.ParseInt(levelStr, 10, 64)
	if err != nil {
		return 0, false
	}
	return models.MokhaiotlBaseID + n, true
}

// creditPoints awards points once, wrapping the store call with the reason
// string used throughout §4.2's kind-specific rules.
func (s *skeleton) creditPoints(ctx context.Context, q sqlstore.PgPool, playerID, amount int64, reason string) error {
	if amount <= 0 {
		return nil
	}
	return s.store.CreditPoints(ctx, q, &models.PointsCredit{
		PlayerID:  playerID,
		Amount:    amount,
		GrantedAt: time.Now(),
		Reason:    reason,
	})
}
