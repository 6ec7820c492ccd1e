package models

import "testing"

func TestEmbedFieldsDecode(t *testing.T) {
	fields := EmbedFields{
		"value":     "1200000000",
		"quantity":  "1",
		"item_name": "Twisted bow",
		"is_new_pb": "true",
	}

	var sub Submission
	if err := fields.Decode(&sub); err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}

	if sub.Value != 1_200_000_000 {
		t.Errorf("Value = %d, want 1200000000", sub.Value)
	}
	if sub.Quantity != 1 {
		t.Errorf("Quantity = %d, want 1", sub.Quantity)
	}
	if sub.ItemName != "Twisted bow" {
		t.Errorf("ItemName = %q, want Twisted bow", sub.ItemName)
	}
	if !sub.IsNewBest {
		t.Errorf("IsNewBest = false, want true")
	}
}

func TestEmbedFieldsDecodeIgnoresUnknownKeys(t *testing.T) {
	fields := EmbedFields{"nonexistent_field": "whatever"}
	var sub Submission
	if err := fields.Decode(&sub); err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
}

func TestItemAggregateRoundTrip(t *testing.T) {
	original := ItemAggregate{Quantity: 3, TotalValue: 900, DropCount: 2}
	original.FirstSeen = original.FirstSeen.UTC()
	encoded := original.Encode()

	decoded, err := DecodeItemAggregate(encoded)
	if err != nil {
		t.Fatalf("DecodeItemAggregate returned error: %v", err)
	}
	if decoded.Quantity != original.Quantity || decoded.TotalValue != original.TotalValue || decoded.DropCount != original.DropCount {
		t.Errorf("round trip mismatch: got %+v, want %+v", decoded, original)
	}
}
