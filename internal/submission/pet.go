package submission

import (
	"context"
	"fmt"

	"github.com/droptracker-go/pipeline/internal/models"
)

// PetProcessor implements §4.2's Pet body.
type PetProcessor struct {
	skeleton
}

func NewPetProcessor(s skeleton) *PetProcessor { return &PetProcessor{skeleton: s} }

func (p *PetProcessor) Process(ctx context.Context, sub models.Submission) (models.Response, error) {
	tx, err := p.store.Begin(ctx)
	if err != nil {
		return models.Response{}, fmt.Errorf("submission: begin pet tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if dup, err := p.checkDuplicate(ctx, tx, models.KindPet, sub.UniqueID); err != nil {
		return models.Response{}, err
	} else if dup {
		return models.Response{Success: true, Message: "duplicate, ignored"}, ErrDuplicate
	}

	player, _, err := p.resolvePlayer(ctx, tx, sub.PlayerName, sub.AccountHash)
	if err != nil {
		return models.Response{}, err
	}
	item, _, err := p.resolveItem(ctx, tx, sub.PetItemName)
	if err != nil {
		return models.Response{}, err
	}

	_, isNew, err := p.store.InsertPlayerPet(ctx, tx, &models.PlayerPetRow{
		UniqueID:  sub.UniqueID,
		UsedAPI:   sub.UsedAPI,
		DateAdded: submissionTime(sub),
		PlayerID:  player.ID,
		ItemID:    item.ID,
		SourceNPC: sub.SourceNPC,
		Duplicate: sub.Duplicate,
	})
	if err != nil {
		return models.Response{}, err
	}

	if isNew {
		if err := p.creditPoints(ctx, tx, player.ID, 50, "pet:"+sub.PetItemName); err != nil {
			return models.Response{}, err
		}
	}

	// Emitted on first acquisition or, if the client flagged duplicate, as a
	// duplicate event (§4.2 Pet) — either way the client saw a pet drop.
	if isNew || sub.Duplicate {
		groupIDs, gerr := p.store.PlayerGroups(ctx, tx, player.ID)
		if gerr != nil {
			return models.Response{}, gerr
		}
		for _, gid := range groupIDs {
			group, err := p.store.Group(ctx, tx, gid)
			if err != nil {
				continue
			}
			if !group.Bool(models.CfgNotifyPets) {
				continue
			}
			n := models.Notification{
				Type:     models.NotifyPet,
				PlayerID: player.ID,
				GroupID:  groupIDPtr(gid),
				Payload: map[string]any{
					"item_name": sub.PetItemName,
					"npc_name":  sub.SourceNPC,
					"duplicate": sub.Duplicate,
				},
			}
			if err := p.notify.Enqueue(ctx, tx, n); err != nil {
				return models.Response{}, fmt.Errorf("submission: enqueue pet notification: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Response{}, fmt.Errorf("submission: commit pet: %w", err)
	}
	return models.Response{Success: true, Message: "pet recorded"}, nil
}
