package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/droptracker-go/pipeline/internal/models"
)

// burstWindow is the buffering window for ToB/ToA kills (§4.2 PersonalBest):
// the client fires a burst of near-duplicate submissions per kill, and the
// one with the largest reported team size is the most informative.
const burstWindow = 10 * time.Second

type pbBurstEntry struct {
	candidates []models.Submission
	timer      *time.Timer
}

// PersonalBestProcessor implements §4.2's PersonalBest body, including the
// ToB/ToA burst buffer (original_source/data/submissions/pb.py's toa_cache).
type PersonalBestProcessor struct {
	skeleton

	mu    sync.Mutex
	burst map[string]*pbBurstEntry
}

func NewPersonalBestProcessor(s skeleton) *PersonalBestProcessor {
	return &PersonalBestProcessor{skeleton: s, burst: make(map[string]*pbBurstEntry)}
}

func isBurstBoss(npcName string) bool {
	lower := strings.ToLower(npcName)
	return strings.Contains(lower, "theatre of blood") || strings.Contains(lower, "amascut")
}

func (p *PersonalBestProcessor) Process(ctx context.Context, sub models.Submission) (models.Response, error) {
	if isBurstBoss(sub.NPCName) {
		p.buffer(sub)
		return models.Response{Success: true, Message: "queued for burst resolution"}, nil
	}
	return p.processImmediate(ctx, sub)
}

// buffer adds sub to the per-player burst window, starting a 10 s timer on
// the first submission in the window and resolving the winner when it fires.
func (p *PersonalBestProcessor) buffer(sub models.Submission) {
	key := strings.ToLower(sub.PlayerName) + "|" + strings.ToLower(sub.NPCName)

	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.burst[key]
	if !ok {
		entry = &pbBurstEntry{}
		p.burst[key] = entry
		entry.timer = time.AfterFunc(burstWindow, func() { p.resolveBurst(key) })
	}
	entry.candidates = append(entry.candidates, sub)
}

// resolveBurst picks the winning candidate (largest team size, ties broken
// by lowest time) and processes it through the normal upsert path.
func (p *PersonalBestProcessor) resolveBurst(key string) {
	p.mu.Lock()
	entry, ok := p.burst[key]
	if ok {
		delete(p.burst, key)
	}
	p.mu.Unlock()
	if !ok || len(entry.candidates) == 0 {
		return
	}

	winner := pickBurstWinner(entry.candidates)

	// The HTTP request that triggered buffering has long since returned;
	// this commit runs on the process's own background context.
	if _, err := p.processImmediate(context.Background(), winner); err != nil && !errors.Is(err, ErrDuplicate) {
		// Burst resolution has no caller left to report to, and the error
		// is discarded here.
		_ = err
	}
}

// pickBurstWinner picks the most informative candidate from a burst window:
// largest reported team size, ties broken by the lowest (best) time.
func pickBurstWinner(candidates []models.Submission) models.Submission {
	winner := candidates[0]
	for _, c := range candidates[1:] {
		if c.TeamSize > winner.TeamSize || (c.TeamSize == winner.TeamSize && c.TimeMs < winner.TimeMs) {
			winner = c
		}
	}
	return winner
}

func (p *PersonalBestProcessor) processImmediate(ctx context.Context, sub models.Submission) (models.Response, error) {
	tx, err := p.store.Begin(ctx)
	if err != nil {
		return models.Response{}, fmt.Errorf("submission: begin pb tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if dup, err := p.checkDuplicate(ctx, tx, models.KindPersonalBest, sub.UniqueID); err != nil {
		return models.Response{}, err
	} else if dup {
		return models.Response{Success: true, Message: "duplicate, ignored"}, ErrDuplicate
	}

	player, _, err := p.resolvePlayer(ctx, tx, sub.PlayerName, sub.AccountHash)
	if err != nil {
		return models.Response{}, err
	}
	npc, _, err := p.resolveNPC(ctx, tx, sub.NPCName)
	if err != nil {
		return models.Response{}, err
	}

	isNewBest, killCount, err := p.store.UpsertPersonalBest(ctx, tx, &models.PersonalBestEntryRow{
		PlayerID:      player.ID,
		NPCID:         npc.ID,
		TeamSize:      sub.TeamSize,
		KillTimeMs:    sub.TimeMs,
		LastUniqueID:  sub.UniqueID,
		LastUsedAPI:   sub.UsedAPI,
		LastDateAdded: submissionTime(sub),
	})
	if err != nil {
		return models.Response{}, err
	}

	if isNewBest {
		groupIDs, gerr := p.store.PlayerGroups(ctx, tx, player.ID)
		if gerr != nil {
			return models.Response{}, gerr
		}
		for _, gid := range groupIDs {
			group, err := p.store.Group(ctx, tx, gid)
			if err != nil {
				continue
			}
			if !group.Bool(models.CfgNotifyPBs) {
				continue
			}
			n := models.Notification{
				Type:     models.NotifyPB,
				PlayerID: player.ID,
				GroupID:  groupIDPtr(gid),
				Payload: map[string]any{
					"npc_name":       sub.NPCName,
					"team_size":      sub.TeamSize,
					"personal_best":  sub.TimeMs,
				},
			}
			if err := p.notify.Enqueue(ctx, tx, n); err != nil {
				return models.Response{}, fmt.Errorf("submission: enqueue pb notification: %w", err)
			}
		}
		if killCount >= 50 {
			if err := p.creditPoints(ctx, tx, player.ID, 20, "pb:"+sub.NPCName); err != nil {
				return models.Response{}, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Response{}, fmt.Errorf("submission: commit pb: %w", err)
	}
	return models.Response{Success: true, Message: "personal best recorded"}, nil
}
