package hof

import (
	"context"
	"fmt"
	"strings"

	"github.com/droptracker-go/pipeline/internal/chat"
	"github.com/droptracker-go/pipeline/internal/models"
)

// assemble builds the Hall-of-Fame embed for one (group, npc) pair: an
// overview, the top-5 loot leaderboard if present, and top-5 personal bests
// per team size up to maxTeamSizes team sizes (§4.5 step 2). The returned
// content string is the hash input, stable across renders that didn't
// change.
func (r *Renderer) assemble(ctx context.Context, group *models.Group, npcID int64, npcName string) (*chat.Embed, string, error) {
	var content strings.Builder
	fmt.Fprintf(&content, "%s | %s\n", group.DisplayName, npcName)

	embed := &chat.Embed{
		Title:       fmt.Sprintf("%s Hall of Fame", npcName),
		Description: fmt.Sprintf("Tracked records for %s", group.DisplayName),
	}

	loot, err := r.store.TopLootByNPC(ctx, group.ID, npcID, 5)
	if err != nil {
		return nil, "", fmt.Errorf("top loot: %w", err)
	}
	if len(loot) > 0 {
		var lines []string
		for i, l := range loot {
			line := fmt.Sprintf("%d. %s — %d gp", i+1, l.PlayerName, l.TotalValue)
			lines = append(lines, line)
			fmt.Fprintln(&content, line)
		}
		embed.Fields = append(embed.Fields, chat.EmbedField{Name: "Top loot", Value: strings.Join(lines, "\n")})
	}

	teamSizes, err := r.store.DistinctTeamSizes(ctx, group.ID, npcID, maxTeamSizes)
	if err != nil {
		return nil, "", fmt.Errorf("team sizes: %w", err)
	}
	for _, ts := range teamSizes {
		pbs, err := r.store.TopPersonalBests(ctx, group.ID, npcID, ts, 5)
		if err != nil {
			return nil, "", fmt.Errorf("top pbs team size %d: %w", ts, err)
		}
		if len(pbs) == 0 {
			continue
		}
		var lines []string
		for i, pb := range pbs {
			line := fmt.Sprintf("%d. %s — %s (kc %d)", i+1, pb.PlayerName, formatMs(pb.PersonalBestMs), pb.KillCount)
			lines = append(lines, line)
			fmt.Fprintln(&content, line)
		}
		fieldName := fmt.Sprintf("Team size %d", ts)
		if ts == 1 {
			fieldName = "Solo"
		}
		embed.Fields = append(embed.Fields, chat.EmbedField{Name: fieldName, Value: strings.Join(lines, "\n")})
	}

	return embed, content.String(), nil
}

func formatMs(ms int64) string {
	total := ms / 1000
	minutes := total / 60
	seconds := total % 60
	centis := (ms % 1000) / 10
	return fmt.Sprintf("%d:%02d.%02d", minutes, seconds, centis)
}
