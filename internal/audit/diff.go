package audit

import (
	"encoding/json"
	"strconv"

	"github.com/google/uuid"
)

// FieldValue is a tracked field normalized to its comparable string form.
// Foreign keys compare by referenced id, structured values by serialized
// JSON, everything else by plain string form. A nil inner value means the
// field is unset.
type FieldValue struct {
	str *string
}

func stringPtr(s string) *string { return &s }

// StringField normalizes a required string field.
func StringField(v string) FieldValue {
	return FieldValue{str: stringPtr(v)}
}

// NullStringField normalizes an optional string field.
func NullStringField(v *string) FieldValue {
	if v == nil {
		return FieldValue{}
	}
	return FieldValue{str: stringPtr(*v)}
}

// BoolField normalizes a boolean field.
func BoolField(v bool) FieldValue {
	return FieldValue{str: stringPtr(strconv.FormatBool(v))}
}

// RefField normalizes a foreign key by its referenced id.
func RefField(id *uuid.UUID) FieldValue {
	if id == nil {
		return FieldValue{}
	}
	return FieldValue{str: stringPtr(id.String())}
}

// JSONField normalizes a structured value by its serialized form.
func JSONField(v any) FieldValue {
	if v == nil {
		return FieldValue{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return FieldValue{}
	}
	return FieldValue{str: stringPtr(string(b))}
}

// Value returns the normalized string, nil when unset.
func (f FieldValue) Value() *string { return f.str }

func (f FieldValue) equal(other FieldValue) bool {
	if f.str == nil || other.str == nil {
		return f.str == nil && other.str == nil
	}
	return *f.str == *other.str
}

// Change is one field's old and new normalized values.
type Change struct {
	Old *string `json:"old"`
	New *string `json:"new"`
}

// Changes maps field name to its change.
type Changes map[string]Change

// Diff compares two snapshots over the tracked field names and returns only
// the fields whose normalized values differ. Equal snapshots yield an empty
// map; callers emit nothing for a no-op save.
func Diff(old, new map[string]FieldValue, tracked []string) Changes {
	changes := Changes{}
	for _, name := range tracked {
		oldVal := old[name]
		newVal := new[name]
		if !oldVal.equal(newVal) {
			changes[name] = Change{Old: oldVal.Value(), New: newVal.Value()}
		}
	}
	return changes
}
