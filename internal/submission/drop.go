package submission

import (
	"context"
	"fmt"
	"time"

	"github.com/droptracker-go/pipeline/internal/models"
)

// DropProcessor implements §4.2's Drop body.
type DropProcessor struct {
	skeleton
}

func NewDropProcessor(s skeleton) *DropProcessor { return &DropProcessor{skeleton: s} }

func (p *DropProcessor) Process(ctx context.Context, sub models.Submission) (models.Response, error) {
	tx, err := p.store.Begin(ctx)
	if err != nil {
		return models.Response{}, fmt.Errorf("submission: begin drop tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if dup, err := p.checkDuplicate(ctx, tx, models.KindDrop, sub.UniqueID); err != nil {
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
	item, _, err := p.resolveItem(ctx, tx, sub.ItemName)
	if err != nil {
		return models.Response{}, err
	}

	perItem, err := EffectiveValue(ctx, p.dir, sub.ItemName, sub.Value)
	if err != nil {
		return models.Response{}, fmt.Errorf("submission: true value lookup: %w", err)
	}
	total := perItem * sub.Quantity

	if total > 1_000_000 {
		valid, verr := p.dir.VerifyDrop(ctx, sub.NPCName, sub.ItemName)
		if verr != nil {
			return models.Response{}, fmt.Errorf("submission: drop verify: %w", verr)
		}
		if !valid {
			return models.Response{Success: false, Message: "item is not a valid drop from this NPC"}, ErrValidationRejected
		}
	}

	row := &models.DropRow{
		UniqueID:   sub.UniqueID,
		UsedAPI:    sub.UsedAPI,
		DateAdded:  submissionTime(sub),
		PlayerID:   player.ID,
		NPCID:      npc.ID,
		ItemID:     item.ID,
		Quantity:   sub.Quantity,
		Value:      perItem,
		TotalValue: total,
	}
	dropID, err := p.store.InsertDrop(ctx, tx, row)
	if err != nil {
		return models.Response{}, err
	}

	groupIDs, err := p.store.PlayerGroups(ctx, tx, player.ID)
	if err != nil {
		return models.Response{}, err
	}
	if err := p.agg.RecordDrop(ctx, player.ID, npc.ID, item.ID, sub.Quantity, perItem, groupIDs); err != nil {
		return models.Response{}, fmt.Errorf("submission: aggregate drop: %w", err)
	}

	notice := ""
	for _, gid := range groupIDs {
		group, gerr := p.store.Group(ctx, tx, gid)
		if gerr != nil {
			continue
		}
		threshold := group.Int64(models.CfgMinValueToNotify, 0)
		sendStacks := group.Bool(models.CfgSendStacks)
		if shouldNotifyDrop(perItem, total, threshold, sendStacks) {
			n := models.Notification{
				Type:     models.NotifyDrop,
				PlayerID: player.ID,
				GroupID:  groupIDPtr(gid),
				Payload: map[string]any{
					"item_name": sub.ItemName,
					"npc_name":  sub.NPCName,
					"value":     perItem,
					"quantity":  sub.Quantity,
					"total_value": total,
					"drop_id":     dropID,
				},
			}
			if err := p.notify.Enqueue(ctx, tx, n); err != nil {
				return models.Response{}, fmt.Errorf("submission: enqueue drop notification: %w", err)
			}
			notice = "group notifications sent"
		}
	}

	points := total / p.cfg.PointDivisor
	if err := p.creditPoints(ctx, tx, player.ID, points, "drop:"+sub.ItemName); err != nil {
		return models.Response{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Response{}, fmt.Errorf("submission: commit drop: %w", err)
	}
	return models.Response{Success: true, Message: "drop recorded", Notice: notice}, nil
}

// shouldNotifyDrop implements §9 Open Question (b): a single item's value
// clears the group's threshold, or the stacked total does when the group
// opts in to send_stacks_of_items.
func shouldNotifyDrop(perItem, total, threshold int64, sendStacks bool) bool {
	return perItem >= threshold || (sendStacks && total >= threshold)
}

func submissionTime(sub models.Submission) time.Time {
	if sub.SubmittedAt.IsZero() {
		return time.Now()
	}
	return sub.SubmittedAt
}

func groupIDPtr(id int64) *int64 { return &id }
