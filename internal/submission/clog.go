package submission

import (
	"context"
	"fmt"

	"github.com/droptracker-go/pipeline/internal/models"
)

// CollectionLogProcessor implements §4.2's CollectionLog body.
type CollectionLogProcessor struct {
	skeleton
}

func NewCollectionLogProcessor(s skeleton) *CollectionLogProcessor {
	return &CollectionLogProcessor{skeleton: s}
}

func (p *CollectionLogProcessor) Process(ctx context.Context, sub models.Submission) (models.Response, error) {
	tx, err := p.store.Begin(ctx)
	if err != nil {
		return models.Response{}, fmt.Errorf("submission: begin clog tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if dup, err := p.checkDuplicate(ctx, tx, models.KindCollectionLog, sub.UniqueID); err != nil {
		return models.Response{}, err
	} else if dup {
		return models.Response{Success: true, Message: "duplicate, ignored"}, ErrDuplicate
	}

	player, _, err := p.resolvePlayer(ctx, tx, sub.PlayerName, sub.AccountHash)
	if err != nil {
		return models.Response{}, err
	}
	item, _, err := p.resolveItem(ctx, tx, sub.ItemName)
	if err != nil {
		return models.Response{}, err
	}

	_, isNew, err := p.store.UpsertCollectionLogEntry(ctx, tx, &models.CollectionLogEntryRow{
		UniqueID:       sub.UniqueID,
		UsedAPI:        sub.UsedAPI,
		DateAdded:      submissionTime(sub),
		PlayerID:       player.ID,
		ItemID:         item.ID,
		CollectionName: sub.CollectionName,
	})
	if err != nil {
		return models.Response{}, err
	}

	if isNew {
		if err := p.creditPoints(ctx, tx, player.ID, 5, "clog:"+sub.ItemName); err != nil {
			return models.Response{}, err
		}

		groupIDs, gerr := p.store.PlayerGroups(ctx, tx, player.ID)
		if gerr != nil {
			return models.Response{}, gerr
		}
		for _, gid := range groupIDs {
			group, err := p.store.Group(ctx, tx, gid)
			if err != nil {
				continue
			}
			if !group.Bool(models.CfgNotifyClogs) {
				continue
			}
			n := models.Notification{
				Type:     models.NotifyClog,
				PlayerID: player.ID,
				GroupID:  groupIDPtr(gid),
				Payload: map[string]any{
					"item_name":       sub.ItemName,
					"collection_name": sub.CollectionName,
				},
			}
			if err := p.notify.Enqueue(ctx, tx, n); err != nil {
				return models.Response{}, fmt.Errorf("submission: enqueue clog notification: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Response{}, fmt.Errorf("submission: commit clog: %w", err)
	}
	return models.Response{Success: true, Message: "collection log entry recorded"}, nil
}
