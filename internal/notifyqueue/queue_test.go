package notifyqueue

import (
	"testing"

	"github.com/droptracker-go/pipeline/internal/models"
)

func TestContentHash_DeterministicPerIdentity(t *testing.T) {
	groupID := int64(5)
	n := models.Notification{
		Type:     models.NotifyDrop,
		PlayerID: 1,
		GroupID:  &groupID,
		Payload:  map[string]any{"item_name": "Twisted bow", "value": float64(1_000_000)},
	}

	h1, err := contentHash(n)
	if err != nil {
		t.Fatalf("contentHash: %v", err)
	}
	h2, err := contentHash(n)
	if err != nil {
		t.Fatalf("contentHash: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("contentHash must be deterministic for identical notifications")
	}
}

func TestContentHash_DiffersByPlayerGroupTypeOrPayload(t *testing.T) {
	groupA, groupB := int64(5), int64(6)
	base := models.Notification{Type: models.NotifyDrop, PlayerID: 1, GroupID: &groupA, Payload: map[string]any{"item_name": "Twisted bow"}}

	variants := []models.Notification{
		{Type: models.NotifyDrop, PlayerID: 2, GroupID: &groupA, Payload: base.Payload}, // different player
		{Type: models.NotifyDrop, PlayerID: 1, GroupID: &groupB, Payload: base.Payload}, // different group
		{Type: models.NotifyPB, PlayerID: 1, GroupID: &groupA, Payload: base.Payload},   // different type
		{Type: models.NotifyDrop, PlayerID: 1, GroupID: &groupA, Payload: map[string]any{"item_name": "Dragon bones"}}, // different payload
	}

	baseHash, err := contentHash(base)
	if err != nil {
		t.Fatalf("contentHash: %v", err)
	}
	for i, v := range variants {
		h, err := contentHash(v)
		if err != nil {
			t.Fatalf("contentHash variant %d: %v", i, err)
		}
		if h == baseHash {
			t.Fatalf("variant %d must hash differently from the base notification", i)
		}
	}
}
