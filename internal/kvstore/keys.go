// Package kvstore implements C1, the keyed store client: hash maps, sorted
// sets, lists, and counters with TTLs, single-writer-safe per key and
// partitioned by player_id so multiple ingress/notifier processes can
// contribute without coordination (§9).
package kvstore

import (
	"fmt"

	"github.com/droptracker-go/pipeline/internal/models"
)

// Keys builds the bytes-exact key grammar from §6. Every key pattern in the
// spec's table has a builder here so callers never hand-format a key.
type Keys struct{}

func (Keys) PlayerTotalItems(playerID int64, p models.Partition) string {
	return fmt.Sprintf("player:%d:%s:total_items", playerID, p)
}

func (Keys) PlayerTotalLoot(playerID int64, p models.Partition) string {
	return fmt.Sprintf("player:%d:%s:total_loot", playerID, p)
}

func (Keys) PlayerRecentItems(playerID int64, p models.Partition) string {
	return fmt.Sprintf("player:%d:%s:recent_items", playerID, p)
}

func (Keys) PlayerDropHistory(playerID int64, p models.Partition) string {
	return fmt.Sprintf("player:%d:%s:drop_history", playerID, p)
}

func (Keys) PlayerHighValueItems(playerID int64, p models.Partition) string {
	return fmt.Sprintf("player:%d:%s:high_value_items", playerID, p)
}

func (Keys) Leaderboard(p models.Partition) string {
	return fmt.Sprintf("leaderboard:%s", p)
}

func (Keys) GroupLeaderboard(p models.Partition, groupID int64) string {
	return fmt.Sprintf("leaderboard:%s:group:%d", p, groupID)
}

func (Keys) BossLeaderboard(groupID, npcID int64, p models.Partition) string {
	return fmt.Sprintf("leaderboard:group:%d:npc:%d:%s", groupID, npcID, p)
}

func (Keys) GroupVsGroupLeaderboard(p models.Partition) string {
	return fmt.Sprintf("gleaderboard:%s", p)
}

func (Keys) MetricsAll(name string) string {
	return fmt.Sprintf("metrics:all:%s", name)
}

func (Keys) MetricsWindow(minute string, name string) string {
	return fmt.Sprintf("metrics:win:%s:%s", minute, name)
}

func (Keys) HoFHash(groupID, npcID int64) string {
	return fmt.Sprintf("hof:hash:%d:%d", groupID, npcID)
}
