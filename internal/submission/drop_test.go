package submission

import "testing"

// S3: Dragon bones x3 at 4000gp each (total 12000), group
// min_value_to_notify=5,000,000 — no notification either way regardless of
// send_stacks_of_items, since neither the per-item value nor the stacked
// total clears the threshold.
func TestScenario_SendStacksBelowThresholdNeverNotifies(t *testing.T) {
	const perItem, total, threshold = int64(4000), int64(12000), int64(5_000_000)

	if shouldNotifyDrop(perItem, total, threshold, false) {
		t.Fatalf("send_stacks_of_items=false must not notify below threshold")
	}
	if shouldNotifyDrop(perItem, total, threshold, true) {
		t.Fatalf("send_stacks_of_items=true must not notify when the stacked total is still below threshold")
	}
}

func TestShouldNotifyDrop(t *testing.T) {
	cases := []struct {
		name       string
		perItem    int64
		total      int64
		threshold  int64
		sendStacks bool
		want       bool
	}{
		{"single item clears threshold", 6_000_000, 6_000_000, 5_000_000, false, true},
		{"single item below threshold, stacks off", 1_000_000, 3_000_000, 5_000_000, false, false},
		{"stacked total clears threshold, stacks on", 1_000_000, 6_000_000, 5_000_000, true, true},
		{"stacked total clears threshold but stacks off", 1_000_000, 6_000_000, 5_000_000, false, false},
		{"zero threshold always notifies", 1, 1, 0, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := shouldNotifyDrop(tc.perItem, tc.total, tc.threshold, tc.sendStacks); got != tc.want {
				t.Fatalf("shouldNotifyDrop(%d, %d, %d, %v) = %v, want %v",
					tc.perItem, tc.total, tc.threshold, tc.sendStacks, got, tc.want)
			}
		})
	}
}
