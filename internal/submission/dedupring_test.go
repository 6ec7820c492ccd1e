package submission

import (
	"fmt"
	"testing"
)

// inv.1 fast path: a replayed unique_id within the ring's window must be
// recognized as already seen, so only one persisted row is ever attempted.
func TestDedupRing_SeenOrAdd(t *testing.T) {
	r := newDedupRing(4)

	if r.seenOrAdd("a") {
		t.Fatalf("first occurrence of a new id must report false (not seen)")
	}
	if !r.seenOrAdd("a") {
		t.Fatalf("replay of the same id must report true (already seen)")
	}
}

// S1: the same Twisted Bow unique_id replayed back-to-back must be caught
// by the ring, independent of the SQL backstop.
func TestScenario_DropDedupReplayCaughtByRing(t *testing.T) {
	r := newDedupRing(100)
	const uniqueID = "twisted-bow-drop-abc123"

	if r.seenOrAdd(uniqueID) {
		t.Fatalf("original submission must not be flagged as a duplicate")
	}
	for i := 0; i < 3; i++ {
		if !r.seenOrAdd(uniqueID) {
			t.Fatalf("replay #%d of the same unique_id must be flagged as a duplicate", i)
		}
	}
}

// Once the ring wraps past capacity, an evicted id is treated as new again
// — the ring is a bounded fast path, not the durable record.
func TestDedupRing_EvictsOldestOnceFull(t *testing.T) {
	const capacity = 3
	r := newDedupRing(capacity)

	r.seenOrAdd("id-0")
	r.seenOrAdd("id-1")
	r.seenOrAdd("id-2")
	// Ring is now full; inserting a fourth id evicts "id-0".
	r.seenOrAdd("id-3")

	if r.seenOrAdd("id-0") {
		t.Fatalf("evicted id must be reported as new (not seen) on resubmission")
	}
	// Re-adding "id-0" above evicted "id-1"; "id-2" is still in the window.
	if !r.seenOrAdd("id-2") {
		t.Fatalf("id-2 must still be within the ring's window")
	}
}

// Distinct ids never collide, even at volume.
func TestDedupRing_DistinctIDsNeverCollide(t *testing.T) {
	r := newDedupRing(1000)
	for i := 0; i < 500; i++ {
		id := fmt.Sprintf("unique-%d", i)
		if r.seenOrAdd(id) {
			t.Fatalf("id %s must not be reported as already seen", id)
		}
	}
}
