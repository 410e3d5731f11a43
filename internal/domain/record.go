package domain

import (
	"encoding/json"
	"time"
)

// Generated field names; assigned by the storage layer and stripped from
// any caller-supplied partial before a merge.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// Record is one stored document: a generated immutable id, the validated
// payload fields, and the creation/update timestamps. CreatedAt equals
// UpdatedAt at creation; UpdatedAt strictly increases on every update.
type Record struct {
	ID        string
	Fields    map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Flatten returns the record as a single map, the shape callers see:
// payload fields plus id/createdAt/updatedAt (epoch milliseconds).
func (r *Record) Flatten() map[string]any {
	out := make(map[string]any, len(r.Fields)+3)
	for k, v := range r.Fields {
		out[k] = v
	}
	out[FieldID] = r.ID
	out[FieldCreatedAt] = r.CreatedAt.UnixMilli()
	out[FieldUpdatedAt] = r.UpdatedAt.UnixMilli()
	return out
}

// RecordFromFlat rebuilds a Record from its flattened form.
func RecordFromFlat(flat map[string]any) *Record {
	rec := &Record{Fields: make(map[string]any, len(flat))}
	for k, v := range flat {
		switch k {
		case FieldID:
			if s, ok := v.(string); ok {
				rec.ID = s
			}
		case FieldCreatedAt:
			rec.CreatedAt = timeFromAny(v)
		case FieldUpdatedAt:
			rec.UpdatedAt = timeFromAny(v)
		default:
			rec.Fields[k] = v
		}
	}
	return rec
}

func timeFromAny(v any) time.Time {
	switch n := v.(type) {
	case int64:
		return time.UnixMilli(n)
	case int:
		return time.UnixMilli(int64(n))
	case float64:
		return time.UnixMilli(int64(n))
	case json.Number:
		if ms, err := n.Int64(); err == nil {
			return time.UnixMilli(ms)
		}
	}
	return time.Time{}
}

// MarshalJSON renders the flattened shape.
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Flatten())
}

// UnmarshalJSON parses the flattened shape.
func (r *Record) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	*r = *RecordFromFlat(flat)
	return nil
}

// MergeFields shallowly overlays partial onto existing and returns the
// result. Generated fields in partial are stripped first: a caller can
// never change a record's id or timestamps through an update. Neither
// input is mutated.
func MergeFields(existing, partial map[string]any) map[string]any {
	merged := make(map[string]any, len(existing)+len(partial))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range partial {
		switch k {
		case FieldID, FieldCreatedAt, FieldUpdatedAt:
			continue
		}
		merged[k] = v
	}
	return merged
}
