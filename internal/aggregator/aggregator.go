// Package aggregator implements C7: per-player counter mutation, leaderboard
// updates, and rank queries against the KV store. Each mutation for one
// accepted drop is a separate KV call; the calls are not pipelined and not
// applied atomically, so an error part-way returns with the earlier
// mutations already written.
package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/droptracker-go/pipeline/internal/kvstore"
	"github.com/droptracker-go/pipeline/internal/models"
)

// backend is the narrow slice of C1 the aggregator drives: counter/list/
// sorted-set mutation and lookup, with no key-building or connection
// concerns. *kvstore.Client satisfies it; tests supply an in-memory fake.
type backend interface {
	HGet(ctx context.Context, key, field string) (string, bool, error)
	HSet(ctx context.Context, key, field, value string) error
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
	LPushTrim(ctx context.Context, key, value string, maxLen int64) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	ZAdd(ctx context.Context, key, member string, score float64) error
	Rank(ctx context.Context, key, member string) (rank int64, total int64, ok bool, err error)
}

type Aggregator struct {
	kv                 backend
	keys               kvstore.Keys
	highValueThreshold int64
}

func New(kv *kvstore.Client, highValueThreshold int64) *Aggregator {
	return &Aggregator{kv: kv, highValueThreshold: highValueThreshold}
}

// RecordDrop mutates every partition counter for one accepted drop (§4.3
// steps 1-5) and every group leaderboard the player belongs to, including
// the reserved global group.
func (a *Aggregator) RecordDrop(ctx context.Context, playerID, npcID, itemID int64, quantity, perItemValue int64, groupIDs []int64) error {
	now := time.Now()
	totalValue := quantity * perItemValue
	partitions := []models.Partition{
		models.MonthlyPartition(now),
		models.DailyPartition(now),
		models.PartitionAll,
	}

	record := models.RecentItem{
		ItemID:     itemID,
		NPCID:      npcID,
		Quantity:   quantity,
		Value:      perItemValue,
		TotalValue: totalValue,
		Timestamp:  now,
	}
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("aggregator: encode recent item: %w", err)
	}

	for _, p := range partitions {
		if err := a.mutatePartitionCounters(ctx, playerID, p, itemID, quantity, perItemValue, totalValue, recordJSON, now); err != nil {
			return err
		}
		for _, gid := range groupIDs {
			key := a.keys.GroupLeaderboard(p, gid)
			total, err := a.currentPlayerTotal(ctx, playerID, p)
			if err != nil {
				return err
			}
			if err := a.kv.ZAdd(ctx, key, itoa(playerID), float64(total)); err != nil {
				return err
			}
		}
		globalTotal, err := a.currentPlayerTotal(ctx, playerID, p)
		if err != nil {
			return err
		}
		if err := a.kv.ZAdd(ctx, a.keys.Leaderboard(p), itoa(playerID), float64(globalTotal)); err != nil {
			return err
		}
		if err := a.kv.ZAdd(ctx, a.keys.BossLeaderboard(models.GlobalGroupID, npcID, p), itoa(playerID), float64(totalValue)); err != nil {
			return err
		}
	}
	return nil
}

// mutatePartitionCounters implements §4.3 steps 1-5 for a single partition.
func (a *Aggregator) mutatePartitionCounters(ctx context.Context, playerID int64, p models.Partition, itemID, quantity, perItemValue, totalValue int64, recordJSON []byte, now time.Time) error {
	hashKey := a.keys.PlayerTotalItems(playerID, p)
	field := itoa(itemID)
	existing, ok, err := a.kv.HGet(ctx, hashKey, field)
	if err != nil {
		return fmt.Errorf("aggregator: read item aggregate: %w", err)
	}
	agg := models.ItemAggregate{FirstSeen: now, LastSeen: now}
	if ok {
		decoded, derr := models.DecodeItemAggregate(existing)
		if derr == nil {
			agg = decoded
			if agg.FirstSeen.After(now) {
				agg.FirstSeen = now
			}
		}
	}
	agg.Quantity += quantity
	agg.TotalValue += totalValue
	agg.DropCount++
	agg.LastSeen = now
	if err := a.kv.HSet(ctx, hashKey, field, agg.Encode()); err != nil {
		return fmt.Errorf("aggregator: write item aggregate: %w", err)
	}

	if _, err := a.kv.IncrBy(ctx, a.keys.PlayerTotalLoot(playerID, p), totalValue); err != nil {
		return fmt.Errorf("aggregator: incr total loot: %w", err)
	}

	if err := a.kv.LPushTrim(ctx, a.keys.PlayerRecentItems(playerID, p), string(recordJSON), models.RecentItemsMaxLen); err != nil {
		return fmt.Errorf("aggregator: push recent item: %w", err)
	}
	if err := a.kv.LPushTrim(ctx, a.keys.PlayerDropHistory(playerID, p), string(recordJSON), models.DropHistoryMaxLen); err != nil {
		return fmt.Errorf("aggregator: push drop history: %w", err)
	}
	if perItemValue >= a.highValueThreshold {
		if err := a.kv.LPushTrim(ctx, a.keys.PlayerHighValueItems(playerID, p), string(recordJSON), models.DropHistoryMaxLen); err != nil {
			return fmt.Errorf("aggregator: push high value item: %w", err)
		}
	}

	if isDailyPartition(p) {
		if err := a.kv.Expire(ctx, hashKey, models.DailyTTL); err != nil {
			return err
		}
		if err := a.kv.Expire(ctx, a.keys.PlayerTotalLoot(playerID, p), models.DailyTTL); err != nil {
			return err
		}
		if err := a.kv.Expire(ctx, a.keys.PlayerRecentItems(playerID, p), models.DailyTTL); err != nil {
			return err
		}
		if err := a.kv.Expire(ctx, a.keys.PlayerDropHistory(playerID, p), models.DailyTTL); err != nil {
			return err
		}
	}
	return nil
}

func (a *Aggregator) currentPlayerTotal(ctx context.Context, playerID int64, p models.Partition) (int64, error) {
	v, ok, err := a.kv.Get(ctx, a.keys.PlayerTotalLoot(playerID, p))
	if err != nil {
		return 0, fmt.Errorf("aggregator: read total loot: %w", err)
	}
	if !ok {
		return 0, nil
	}
	var n int64
	if _, err := fmt.Sscan(v, &n); err != nil {
		return 0, fmt.Errorf("aggregator: parse total loot: %w", err)
	}
	return n, nil
}

// Rank implements the §4.3 rank query contract: rank(player, group?,
// partition) -> (rank_1_based, total_in_set).
func (a *Aggregator) Rank(ctx context.Context, playerID int64, groupID *int64, p models.Partition) (rank int64, total int64, ok bool, err error) {
	key := a.keys.Leaderboard(p)
	if groupID != nil {
		key = a.keys.GroupLeaderboard(p, *groupID)
	}
	return a.kv.Rank(ctx, key, itoa(playerID))
}

func isDailyPartition(p models.Partition) bool {
	return len(p) > 6 && p[:6] == "daily:"
}

func itoa(n int64) string {
	return fmt.Sprintf("%d", n)
}
