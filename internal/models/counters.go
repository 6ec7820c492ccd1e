package models

import (
	"fmt"
	"time"
)

// Partition is a time-window token used to bucket counters: "YYYYMM" for
// monthly, "daily:YYYYMMDD" for daily, or the literal "all".
type Partition string

const PartitionAll Partition = "all"

// MonthlyPartition returns the "YYYYMM" partition token for t.
func MonthlyPartition(t time.Time) Partition {
	return Partition(t.UTC().Format("200601"))
}

// DailyPartition returns the "daily:YYYYMMDD" partition token for t.
func DailyPartition(t time.Time) Partition {
	return Partition("daily:" + t.UTC().Format("20060102"))
}

// DailyTTL is the retention window for daily partition keys (§3, §6).
const DailyTTL = 14 * 24 * time.Hour

// ItemAggregate is the decoded form of a total_items hash field value
// ("q,v,c,first,last").
type ItemAggregate struct {
	Quantity   int64
	TotalValue int64
	DropCount  int64
	FirstSeen  time.Time
	LastSeen   time.Time
}

// Encode serializes the aggregate to the wire format stored in the KV store.
func (a ItemAggregate) Encode() string {
	return fmt.Sprintf("%d,%d,%d,%d,%d", a.Quantity, a.TotalValue, a.DropCount, a.FirstSeen.Unix(), a.LastSeen.Unix())
}

// DecodeItemAggregate parses the "q,v,c,first,last" wire format.
func DecodeItemAggregate(s string) (ItemAggregate, error) {
	var a ItemAggregate
	var first, last int64
	n, err := fmt.Sscanf(s, "%d,%d,%d,%d,%d", &a.Quantity, &a.TotalValue, &a.DropCount, &first, &last)
	if err != nil || n != 5 {
		return a, fmt.Errorf("decode item aggregate %q: %w", s, err)
	}
	a.FirstSeen = time.Unix(first, 0).UTC()
	a.LastSeen = time.Unix(last, 0).UTC()
	return a, nil
}

// RecentItem is one JSON-encoded entry in a player-partition recent_items or
// drop_history list.
type RecentItem struct {
	ItemID     int64     `json:"item_id"`
	ItemName   string    `json:"item_name"`
	NPCID      int64     `json:"npc_id"`
	NPCName    string    `json:"npc_name"`
	Quantity   int64     `json:"quantity"`
	Value      int64     `json:"value"`
	TotalValue int64     `json:"total_value"`
	Timestamp  time.Time `json:"timestamp"`
}

// Limits on the bounded lists in the keyspace (§4.3, §6).
const (
	RecentItemsMaxLen   = 200
	DropHistoryMaxLen   = 10000
	RecentUniqueIDCache = 1000
)

// PointsCredit is a points-ledger credit with expiry; balance is the sum of
// non-expired credits minus debits.
type PointsCredit struct {
	PlayerID  int64
	Amount    int64
	GrantedAt time.Time
	ExpiresAt *time.Time
	Reason    string
}

// PointsDebit is a points-ledger debit.
type PointsDebit struct {
	PlayerID int64
	Amount   int64
	SpentAt  time.Time
	Reason   string
}
