package aggregator

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/droptracker-go/pipeline/internal/models"
)

// fakeBackend is an in-memory stand-in for C1, scoped to exactly the backend
// interface the aggregator drives. No network, no redis.
type fakeBackend struct {
	mu      sync.Mutex
	hashes  map[string]map[string]string
	lists   map[string][]string
	strings map[string]string
	zsets   map[string]map[string]float64
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		hashes:  make(map[string]map[string]string),
		lists:   make(map[string][]string),
		strings: make(map[string]string),
		zsets:   make(map[string]map[string]float64),
	}
}

func (f *fakeBackend) HGet(ctx context.Context, key, field string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hashes[key]
	if !ok {
		return "", false, nil
	}
	v, ok := h[field]
	return v, ok, nil
}

func (f *fakeBackend) HSet(ctx context.Context, key, field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hashes[key]
	if !ok {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	h[field] = value
	return nil
}

func (f *fakeBackend) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, _ := strconv.ParseInt(f.strings[key], 10, 64)
	n += delta
	f.strings[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (f *fakeBackend) LPushTrim(ctx context.Context, key, value string, maxLen int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := append([]string{value}, f.lists[key]...)
	if int64(len(list)) > maxLen {
		list = list[:maxLen]
	}
	f.lists[key] = list
	return nil
}

func (f *fakeBackend) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}

func (f *fakeBackend) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.strings[key]
	return v, ok, nil
}

func (f *fakeBackend) ZAdd(ctx context.Context, key, member string, score float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	z, ok := f.zsets[key]
	if !ok {
		z = make(map[string]float64)
		f.zsets[key] = z
	}
	z[member] = score
	return nil
}

func (f *fakeBackend) Rank(ctx context.Context, key, member string) (int64, int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	z, ok := f.zsets[key]
	if !ok {
		return 0, 0, false, nil
	}
	score, ok := z[member]
	if !ok {
		return 0, int64(len(z)), false, nil
	}
	rank := int64(0)
	for _, s := range z {
		if s > score {
			rank++
		}
	}
	return rank + 1, int64(len(z)), true, nil
}

func newTestAggregator(backend backend) *Aggregator {
	return &Aggregator{kv: backend, highValueThreshold: 10_000_000}
}

// inv.3: for an accepted drop with value v and quantity q, total_loot(p,
// current_month) and total_loot(p, all) each increase by exactly v*q.
func TestRecordDrop_TotalLootDeltaMatchesValueTimesQuantity(t *testing.T) {
	fb := newFakeBackend()
	a := newTestAggregator(fb)
	ctx := context.Background()

	const playerID, npcID, itemID = int64(42), int64(7), int64(99)
	const quantity, perItemValue = int64(3), int64(4_000_000)
	wantDelta := quantity * perItemValue

	monthKey := a.keys.PlayerTotalLoot(playerID, models.MonthlyPartition(time.Now()))
	allKey := a.keys.PlayerTotalLoot(playerID, models.PartitionAll)

	before := map[string]int64{}
	for _, k := range []string{monthKey, allKey} {
		v, ok, err := fb.Get(ctx, k)
		if err != nil {
			t.Fatalf("Get(%s): %v", k, err)
		}
		if ok {
			n, _ := strconv.ParseInt(v, 10, 64)
			before[k] = n
		}
	}

	if err := a.RecordDrop(ctx, playerID, npcID, itemID, quantity, perItemValue, nil); err != nil {
		t.Fatalf("RecordDrop: %v", err)
	}

	for _, k := range []string{monthKey, allKey} {
		v, ok, err := fb.Get(ctx, k)
		if err != nil || !ok {
			t.Fatalf("Get(%s) after RecordDrop: ok=%v err=%v", k, ok, err)
		}
		n, _ := strconv.ParseInt(v, 10, 64)
		if got := n - before[k]; got != wantDelta {
			t.Fatalf("total_loot delta for %s = %d, want %d", k, got, wantDelta)
		}
	}
}

// A second drop on the same partition accumulates rather than overwrites.
func TestRecordDrop_AccumulatesAcrossMultipleDrops(t *testing.T) {
	fb := newFakeBackend()
	a := newTestAggregator(fb)
	ctx := context.Background()

	const playerID, npcID = int64(1), int64(2)
	if err := a.RecordDrop(ctx, playerID, npcID, 10, 2, 1000, nil); err != nil {
		t.Fatalf("first RecordDrop: %v", err)
	}
	if err := a.RecordDrop(ctx, playerID, npcID, 11, 1, 5000, nil); err != nil {
		t.Fatalf("second RecordDrop: %v", err)
	}

	allKey := a.keys.PlayerTotalLoot(playerID, models.PartitionAll)
	v, ok, err := fb.Get(ctx, allKey)
	if err != nil || !ok {
		t.Fatalf("Get(%s): ok=%v err=%v", allKey, ok, err)
	}
	n, _ := strconv.ParseInt(v, 10, 64)
	if want := int64(2*1000 + 1*5000); n != want {
		t.Fatalf("accumulated total_loot = %d, want %d", n, want)
	}
}

// RecordDrop must push every group the player belongs to onto that group's
// leaderboard, plus the reserved global leaderboard.
func TestRecordDrop_UpdatesEveryGroupLeaderboard(t *testing.T) {
	fb := newFakeBackend()
	a := newTestAggregator(fb)
	ctx := context.Background()

	const playerID = int64(5)
	groupIDs := []int64{100, 200}
	if err := a.RecordDrop(ctx, playerID, 1, 2, 1, 1000, groupIDs); err != nil {
		t.Fatalf("RecordDrop: %v", err)
	}

	p := models.MonthlyPartition(time.Now())
	for _, gid := range groupIDs {
		key := a.keys.GroupLeaderboard(p, gid)
		rank, total, ok, err := fb.Rank(ctx, key, strconv.FormatInt(playerID, 10))
		if err != nil || !ok {
			t.Fatalf("Rank in group %d: ok=%v err=%v", gid, ok, err)
		}
		if rank != 1 || total != 1 {
			t.Fatalf("group %d leaderboard rank=%d total=%d, want 1/1", gid, rank, total)
		}
	}

	globalKey := a.keys.Leaderboard(p)
	if _, _, ok, err := fb.Rank(ctx, globalKey, strconv.FormatInt(playerID, 10)); err != nil || !ok {
		t.Fatalf("global leaderboard rank: ok=%v err=%v", ok, err)
	}
}

// inv.4: for any group leaderboard at any moment, the sum of member scores
// equals the sum of those members' player totals for that month.
func TestRecordDrop_GroupLeaderboardScoresSumToPlayerTotals(t *testing.T) {
	fb := newFakeBackend()
	a := newTestAggregator(fb)
	ctx := context.Background()

	const groupID = int64(300)
	drops := []struct {
		playerID, npcID, itemID, quantity, perItem int64
	}{
		{1, 10, 100, 2, 5000},
		{2, 10, 101, 1, 12000},
		{1, 11, 102, 3, 1000}, // player 1 again, different NPC
	}
	for _, d := range drops {
		if err := a.RecordDrop(ctx, d.playerID, d.npcID, d.itemID, d.quantity, d.perItem, []int64{groupID}); err != nil {
			t.Fatalf("RecordDrop: %v", err)
		}
	}

	p := models.MonthlyPartition(time.Now())
	members := []int64{1, 2}
	var sumTotals, sumScores int64
	for _, pid := range members {
		v, ok, err := fb.Get(ctx, a.keys.PlayerTotalLoot(pid, p))
		if err != nil || !ok {
			t.Fatalf("Get player %d total loot: ok=%v err=%v", pid, ok, err)
		}
		n, _ := strconv.ParseInt(v, 10, 64)
		sumTotals += n

		fb.mu.Lock()
		score := fb.zsets[a.keys.GroupLeaderboard(p, groupID)][strconv.FormatInt(pid, 10)]
		fb.mu.Unlock()
		sumScores += int64(score)
	}

	if sumScores != sumTotals {
		t.Fatalf("sum of group leaderboard scores = %d, want sum of player totals = %d", sumScores, sumTotals)
	}
}

func TestRank_UnknownPlayerNotOK(t *testing.T) {
	fb := newFakeBackend()
	a := newTestAggregator(fb)
	_, _, ok, err := a.Rank(context.Background(), 999, nil, models.PartitionAll)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false for a player never recorded")
	}
}
