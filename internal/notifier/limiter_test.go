package notifier

import (
	"testing"
	"time"
)

// inv.7 / S6: once a group is marked forbidden, zero RPCs should be
// considered eligible (inCooldown reports true) until the cooldown elapses,
// after which normal flow resumes automatically.
func TestLimiters_ForbiddenCooldown(t *testing.T) {
	const cooldown = 40 * time.Millisecond
	l := newLimiters(100, 100, cooldown)

	const groupID = int64(42)
	if l.inCooldown(groupID) {
		t.Fatalf("group must not start in cooldown")
	}

	l.setForbidden(groupID)
	if !l.inCooldown(groupID) {
		t.Fatalf("group must be in cooldown immediately after setForbidden")
	}

	time.Sleep(cooldown + 10*time.Millisecond)
	if l.inCooldown(groupID) {
		t.Fatalf("group must leave cooldown once the duration elapses")
	}
}

// A forbidden group's cooldown does not affect any other group.
func TestLimiters_CooldownIsPerGroup(t *testing.T) {
	l := newLimiters(100, 100, time.Hour)
	l.setForbidden(1)
	if l.inCooldown(2) {
		t.Fatalf("cooldown on group 1 must not leak to group 2")
	}
	if !l.inCooldown(1) {
		t.Fatalf("group 1 must still be in cooldown")
	}
}

// S6 end-to-end approximation: simulate the notifier's dispatch-time skip
// decision for a burst of notifications enqueued during the cooldown window.
func TestScenario_ForbiddenCooldownSkipsBurstThenResumes(t *testing.T) {
	const cooldown = 30 * time.Millisecond
	l := newLimiters(1000, 1000, cooldown)
	const groupID = int64(7)

	l.setForbidden(groupID)

	dispatched := 0
	const burst = 50
	for i := 0; i < burst; i++ {
		if l.inCooldown(groupID) {
			continue // dispatch() marks these MarkFailed without sending
		}
		dispatched++
	}
	if dispatched != 0 {
		t.Fatalf("expected zero dispatches during cooldown, got %d", dispatched)
	}

	time.Sleep(cooldown + 10*time.Millisecond)
	if l.inCooldown(groupID) {
		t.Fatalf("cooldown should have expired, normal dispatch must resume")
	}
}

func TestGroupLimiter_IsolatedPerGroup(t *testing.T) {
	l := newLimiters(10, 5, time.Hour)
	a := l.groupLimiter(1)
	b := l.groupLimiter(2)
	if a == b {
		t.Fatalf("distinct groups must get distinct limiters")
	}
	if l.groupLimiter(1) != a {
		t.Fatalf("groupLimiter must return the same limiter for a repeated group id")
	}
}

// boundedSet backs the in-memory "already sent" dedup layer: a key is only
// ever reported new once, and capacity overflow evicts the oldest key.
func TestBoundedSet_AddIfNewAndFIFOEviction(t *testing.T) {
	b := newBoundedSet(2)
	if !b.addIfNew("a") {
		t.Fatalf("first insert of a new key must report true")
	}
	if b.addIfNew("a") {
		t.Fatalf("re-adding the same key must report false")
	}

	b.addIfNew("b") // capacity now full: [a, b]
	b.addIfNew("c") // evicts "a": [b, c]

	if !b.addIfNew("a") {
		t.Fatalf("evicted key must be reportable as new again")
	}
}

func TestPerGroupSets_IsolatedPerGroup(t *testing.T) {
	p := newPerGroupSets(10)
	if !p.forGroup(1).addIfNew("x") {
		t.Fatalf("first add in group 1 must be new")
	}
	if !p.forGroup(2).addIfNew("x") {
		t.Fatalf("same key in a different group must independently be new")
	}
	if p.forGroup(1).addIfNew("x") {
		t.Fatalf("repeated key within group 1 must not be new")
	}
}
