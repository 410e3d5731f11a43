package domain

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func assertEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()
	if !reflect.DeepEqual(expected, actual) {
		t.Fatalf("expected %v, got %v", expected, actual)
	}
}

func TestRecordFlatten(t *testing.T) {
	rec := &Record{
		ID:        "r1",
		Fields:    map[string]any{"text": "hello"},
		CreatedAt: time.UnixMilli(1000),
		UpdatedAt: time.UnixMilli(2000),
	}

	flat := rec.Flatten()
	assertEqual(t, "r1", flat[FieldID])
	assertEqual(t, int64(1000), flat[FieldCreatedAt])
	assertEqual(t, int64(2000), flat[FieldUpdatedAt])
	assertEqual(t, "hello", flat["text"])

	back := RecordFromFlat(flat)
	assertEqual(t, rec.ID, back.ID)
	assertEqual(t, rec.Fields, back.Fields)
	assertEqual(t, rec.CreatedAt.UnixMilli(), back.CreatedAt.UnixMilli())
}

func TestRecordJSON(t *testing.T) {
	rec := &Record{
		ID:        "r1",
		Fields:    map[string]any{"text": "hello", "completed": true},
		CreatedAt: time.UnixMilli(1000),
		UpdatedAt: time.UnixMilli(2000),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var back Record
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	assertEqual(t, rec.ID, back.ID)
	assertEqual(t, rec.Fields, back.Fields)
	assertEqual(t, rec.UpdatedAt.UnixMilli(), back.UpdatedAt.UnixMilli())
}

func TestMergeFields(t *testing.T) {
	t.Run("overlays partial onto existing", func(t *testing.T) {
		existing := map[string]any{"text": "old", "completed": false}
		partial := map[string]any{"completed": true}

		merged := MergeFields(existing, partial)
		assertEqual(t, map[string]any{"text": "old", "completed": true}, merged)
	})

	t.Run("strips generated fields from partial", func(t *testing.T) {
		merged := MergeFields(
			map[string]any{"text": "old"},
			map[string]any{FieldID: "forged", FieldCreatedAt: int64(1), "text": "new"},
		)
		assertEqual(t, map[string]any{"text": "new"}, merged)
	})

	t.Run("mutates neither input", func(t *testing.T) {
		existing := map[string]any{"text": "old"}
		partial := map[string]any{"text": "new"}

		MergeFields(existing, partial)
		assertEqual(t, map[string]any{"text": "old"}, existing)
		assertEqual(t, map[string]any{"text": "new"}, partial)
	})
}
