// Package lootboard implements C11: a PNG lootboard composited from the KV
// counter store, filtered by player/NPC/item/value and a time granularity.
package lootboard

import (
	"time"

	"github.com/droptracker-go/pipeline/internal/models"
)

// Granularity selects which partition family a BoardFilter scans.
type Granularity string

const (
	GranularityMonthly Granularity = "monthly"
	GranularityDaily   Granularity = "daily"
	GranularityAll     Granularity = "all"
)

// BoardFilter is the lootboard generation request (§4.6).
type BoardFilter struct {
	TimeStart   *time.Time
	TimeEnd     *time.Time
	Granularity Granularity

	PlayerIDs []int64 // empty means "all players in the group"
	NPCIDs    []int64 // empty means "no NPC filter"
	ItemIDs   []int64 // empty means "no item filter"

	MinValue *int64
	MaxValue *int64

	ExcludeNPCs  bool // NPCIDs is a blocklist instead of an allowlist
	ExcludeItems bool
}

// partitions enumerates the partition tokens covering f's time window,
// matching the active Granularity (§4.6 step 1).
func (f BoardFilter) partitions(now time.Time) []models.Partition {
	switch f.Granularity {
	case GranularityDaily:
		start := now
		if f.TimeStart != nil {
			start = *f.TimeStart
		}
		end := now
		if f.TimeEnd != nil {
			end = *f.TimeEnd
		}
		var out []models.Partition
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			out = append(out, models.DailyPartition(d))
		}
		if len(out) == 0 {
			out = []models.Partition{models.DailyPartition(now)}
		}
		return out
	case GranularityAll:
		return []models.Partition{models.PartitionAll}
	default: // monthly
		start := now
		if f.TimeStart != nil {
			start = *f.TimeStart
		}
		end := now
		if f.TimeEnd != nil {
			end = *f.TimeEnd
		}
		var out []models.Partition
		seen := make(map[models.Partition]bool)
		for m := start; !m.After(end); m = m.AddDate(0, 1, 0) {
			p := models.MonthlyPartition(m)
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
		if len(out) == 0 {
			out = []models.Partition{models.MonthlyPartition(now)}
		}
		return out
	}
}

func (f BoardFilter) allowsItem(itemID int64) bool {
	return allows(f.ItemIDs, itemID, f.ExcludeItems)
}

func (f BoardFilter) allowsNPC(npcID int64) bool {
	return allows(f.NPCIDs, npcID, f.ExcludeNPCs)
}

func allows(list []int64, id int64, exclude bool) bool {
	if len(list) == 0 {
		return true
	}
	in := false
	for _, v := range list {
		if v == id {
			in = true
			break
		}
	}
	if exclude {
		return !in
	}
	return in
}

func (f BoardFilter) allowsValue(v int64) bool {
	if f.MinValue != nil && v < *f.MinValue {
		return false
	}
	if f.MaxValue != nil && v > *f.MaxValue {
		return false
	}
	return true
}

// displayString renders the partition window for the board header.
func (f BoardFilter) displayString() string {
	switch f.Granularity {
	case GranularityDaily:
		return "Daily"
	case GranularityAll:
		return "All time"
	default:
		return "Monthly"
	}
}
