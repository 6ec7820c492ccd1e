package submission

import (
	"context"
	"fmt"

	"github.com/droptracker-go/pipeline/internal/models"
)

// CombatAchievementProcessor implements §4.2's CombatAchievement body.
type CombatAchievementProcessor struct {
	skeleton
}

func NewCombatAchievementProcessor(s skeleton) *CombatAchievementProcessor {
	return &CombatAchievementProcessor{skeleton: s}
}

func (p *CombatAchievementProcessor) Process(ctx context.Context, sub models.Submission) (models.Response, error) {
	tx, err := p.store.Begin(ctx)
	if err != nil {
		return models.Response{}, fmt.Errorf("submission: begin ca tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if dup, err := p.checkDuplicate(ctx, tx, models.KindCombatAchievement, sub.UniqueID); err != nil {
		return models.Response{}, err
	} else if dup {
		return models.Response{Success: true, Message: "duplicate, ignored"}, ErrDuplicate
	}

	player, _, err := p.resolvePlayer(ctx, tx, sub.PlayerName, sub.AccountHash)
	if err != nil {
		return models.Response{}, err
	}

	_, isNew, err := p.store.InsertCombatAchievement(ctx, tx, &models.CombatAchievementEntryRow{
		UniqueID:  sub.UniqueID,
		UsedAPI:   sub.UsedAPI,
		DateAdded: submissionTime(sub),
		PlayerID:  player.ID,
		TaskName:  sub.TaskName,
		Tier:      sub.Tier,
	})
	if err != nil {
		return models.Response{}, err
	}

	if isNew {
		tierRank, ok := models.CombatAchievementTier[sub.Tier]
		if !ok {
			tierRank = 1
		}
		if err := p.creditPoints(ctx, tx, player.ID, int64(tierRank), "ca:"+sub.TaskName); err != nil {
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
			minTier := group.Int64(models.CfgMinCATierNotify, 1)
			if !group.Bool(models.CfgNotifyCAs) || int64(tierRank) < minTier {
				continue
			}
			n := models.Notification{
				Type:     models.NotifyCA,
				PlayerID: player.ID,
				GroupID:  groupIDPtr(gid),
				Payload: map[string]any{
					"task_name":    sub.TaskName,
					"current_tier": sub.Tier,
				},
			}
			if err := p.notify.Enqueue(ctx, tx, n); err != nil {
				return models.Response{}, fmt.Errorf("submission: enqueue ca notification: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Response{}, fmt.Errorf("submission: commit ca: %w", err)
	}
	return models.Response{Success: true, Message: "combat achievement recorded"}, nil
}
