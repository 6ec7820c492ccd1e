package submission

import "testing"

// S2: a wrong account hash against an already-bound player must fail
// authentication, so no Drop row/counter/notification is ever reached
// (resolvePlayer returns ErrAuthFailed before any store write).
func TestCheckAccountHash(t *testing.T) {
	cases := []struct {
		name      string
		existing  string
		submitted string
		wantLatch bool
		wantOK    bool
	}{
		{"first bind latches any hash", "", "hash-a", true, true},
		{"matching hash on bound player", "hash-a", "hash-a", false, true},
		{"mismatched hash on bound player rejected", "hash-a", "hash-b", false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			latch, ok := checkAccountHash(tc.existing, tc.submitted)
			if latch != tc.wantLatch || ok != tc.wantOK {
				t.Fatalf("checkAccountHash(%q, %q) = (%v, %v), want (%v, %v)",
					tc.existing, tc.submitted, latch, ok, tc.wantLatch, tc.wantOK)
			}
		})
	}
}

func TestScenario_AuthMismatchRejected(t *testing.T) {
	_, ok := checkAccountHash("bound-account-hash", "wrong-account-hash")
	if ok {
		t.Fatalf("a mismatched account hash must never be authenticated")
	}
}

func TestMokhaiotlTierID(t *testing.T) {
	cases := []struct {
		name    string
		npcName string
		wantID  int64
		wantOK  bool
	}{
		{"level 1", "Doom of Mokhaiotl (Level 1)", 14708, true},
		{"level 8 max", "Doom of Mokhaiotl (Level 8)", 14715, true},
		{"case insensitive", "doom of mokhaiotl (level 3)", 14710, true},
		{"not a tiered name", "Zulrah", 0, false},
		{"missing trailing paren", "Doom of Mokhaiotl (Level 3", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, ok := mokhaiotlTierID(tc.npcName)
			if ok != tc.wantOK {
				t.Fatalf("mokhaiotlTierID(%q) ok = %v, want %v", tc.npcName, ok, tc.wantOK)
			}
			if ok && id != tc.wantID {
				t.Fatalf("mokhaiotlTierID(%q) = %d, want %d", tc.npcName, id, tc.wantID)
			}
		})
	}
}
