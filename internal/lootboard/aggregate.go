package lootboard

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/droptracker-go/pipeline/internal/kvstore"
	"github.com/droptracker-go/pipeline/internal/models"
)

// itemTotal is one item's aggregated quantity/value across the scanned
// partitions, for the top-N item grid.
type itemTotal struct {
	ItemID     int64
	Quantity   int64
	TotalValue int64
}

// playerTotal is one player's aggregated loot value, for the top-12 monthly
// totals panel.
type playerTotal struct {
	PlayerID   int64
	TotalLoot  int64
}

// recentDrop is one entry from a player's recent_items list that survived
// the filter, for the recent-drops panel. Entries come from recent_items,
// not high_value_items, and are ordered by time, not by value.
type recentDrop struct {
	PlayerID int64
	models.RecentItem
}

// boardData is the aggregation result of scanning every partition/player
// combination the filter selects (§4.6 step 2).
type boardData struct {
	GroupItems  map[int64]*itemTotal
	PlayerTotals map[int64]*playerTotal
	RecentDrops []recentDrop
	TotalLoot   int64
}

// aggregate scans f's partitions for every id in playerIDs, building the
// combined board data set.
func aggregate(ctx context.Context, kv *kvstore.Client, f BoardFilter, playerIDs []int64) (*boardData, error) {
	data := &boardData{
		GroupItems:   make(map[int64]*itemTotal),
		PlayerTotals: make(map[int64]*playerTotal),
	}
	partitions := f.partitions(time.Now())

	for _, p := range partitions {
		for _, playerID := range playerIDs {
			if err := scanPlayerPartition(ctx, kv, f, playerID, p, data); err != nil {
				return nil, err
			}
		}
	}

	sort.Slice(data.RecentDrops, func(i, j int) bool {
		return data.RecentDrops[i].Timestamp.After(data.RecentDrops[j].Timestamp)
	})
	if len(data.RecentDrops) > 10 {
		data.RecentDrops = data.RecentDrops[:10]
	}
	return data, nil
}

func scanPlayerPartition(ctx context.Context, kv *kvstore.Client, f BoardFilter, playerID int64, p models.Partition, data *boardData) error {
	totalItems, err := kv.Raw().HGetAll(ctx, kv.PlayerTotalItems(playerID, p)).Result()
	if err != nil {
		return fmt.Errorf("lootboard: read total items: %w", err)
	}
	for field, encoded := range totalItems {
		var itemID int64
		if _, err := fmt.Sscan(field, &itemID); err != nil {
			continue
		}
		if !f.allowsItem(itemID) {
			continue
		}
		agg, err := models.DecodeItemAggregate(encoded)
		if err != nil {
			continue
		}
		if !f.allowsValue(agg.TotalValue) {
			continue
		}
		t, ok := data.GroupItems[itemID]
		if !ok {
			t = &itemTotal{ItemID: itemID}
			data.GroupItems[itemID] = t
		}
		t.Quantity += agg.Quantity
		t.TotalValue += agg.TotalValue
	}

	lootStr, ok, err := kv.Get(ctx, kv.PlayerTotalLoot(playerID, p))
	if err != nil {
		return fmt.Errorf("lootboard: read total loot: %w", err)
	}
	if ok {
		var loot int64
		fmt.Sscan(lootStr, &loot)
		pt, exists := data.PlayerTotals[playerID]
		if !exists {
			pt = &playerTotal{PlayerID: playerID}
			data.PlayerTotals[playerID] = pt
		}
		pt.TotalLoot += loot
		data.TotalLoot += loot
	}

	recent, err := kv.LRange(ctx, kv.PlayerRecentItems(playerID, p), 0, 199)
	if err != nil {
		return fmt.Errorf("lootboard: read recent items: %w", err)
	}
	for _, raw := range recent {
		var r models.RecentItem
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			continue
		}
		if !f.allowsNPC(r.NPCID) || !f.allowsItem(r.ItemID) || !f.allowsValue(r.TotalValue) {
			continue
		}
		if f.TimeStart != nil && r.Timestamp.Before(*f.TimeStart) {
			continue
		}
		if f.TimeEnd != nil && r.Timestamp.After(*f.TimeEnd) {
			continue
		}
		data.RecentDrops = append(data.RecentDrops, recentDrop{PlayerID: playerID, RecentItem: r})
	}
	return nil
}

func (d *boardData) topItems(n int) []*itemTotal {
	items := make([]*itemTotal, 0, len(d.GroupItems))
	for _, it := range d.GroupItems {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].TotalValue > items[j].TotalValue })
	if len(items) > n {
		items = items[:n]
	}
	return items
}

func (d *boardData) topPlayers(n int) []*playerTotal {
	players := make([]*playerTotal, 0, len(d.PlayerTotals))
	for _, p := range d.PlayerTotals {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].TotalLoot > players[j].TotalLoot })
	if len(players) > n {
		players = players[:n]
	}
	return players
}
