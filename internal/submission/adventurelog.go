package submission

import (
	"context"
	"fmt"

	"github.com/droptracker-go/pipeline/internal/models"
)

// AdventureLogProcessor implements §4.2's AdventureLog body: a back-fill
// sweep applying the PB upsert rule per line, with no notifications.
type AdventureLogProcessor struct {
	skeleton
}

func NewAdventureLogProcessor(s skeleton) *AdventureLogProcessor {
	return &AdventureLogProcessor{skeleton: s}
}

func (p *AdventureLogProcessor) Process(ctx context.Context, sub models.Submission) (models.Response, error) {
	tx, err := p.store.Begin(ctx)
	if err != nil {
		return models.Response{}, fmt.Errorf("submission: begin adventure log tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if dup, err := p.checkDuplicate(ctx, tx, models.KindAdventureLog, sub.UniqueID); err != nil {
		return models.Response{}, err
	} else if dup {
		return models.Response{Success: true, Message: "duplicate, ignored"}, ErrDuplicate
	}

	player, _, err := p.resolvePlayer(ctx, tx, sub.PlayerName, sub.AccountHash)
	if err != nil {
		return models.Response{}, err
	}

	applied := 0
	for _, line := range sub.AdventureLines {
		if line.NPCName != "" {
			npc, _, err := p.resolveNPC(ctx, tx, line.NPCName)
			if err != nil {
				continue
			}
			if _, _, err := p.store.UpsertPersonalBest(ctx, tx, &models.PersonalBestEntryRow{
				PlayerID:      player.ID,
				NPCID:         npc.ID,
				TeamSize:      line.TeamSize,
				KillTimeMs:    line.TimeMs,
				LastUniqueID:  sub.UniqueID,
				LastUsedAPI:   sub.UsedAPI,
				LastDateAdded: submissionTime(sub),
			}); err == nil {
				applied++
			}
			continue
		}
		if line.PetItemID != 0 {
			if _, _, err := p.store.InsertPlayerPet(ctx, tx, &models.PlayerPetRow{
				UniqueID:  sub.UniqueID,
				UsedAPI:   sub.UsedAPI,
				DateAdded: submissionTime(sub),
				PlayerID:  player.ID,
				ItemID:    line.PetItemID,
			}); err == nil {
				applied++
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Response{}, fmt.Errorf("submission: commit adventure log: %w", err)
	}
	return models.Response{Success: true, Message: fmt.Sprintf("back-filled %d of %d lines", applied, len(sub.AdventureLines))}, nil
}
