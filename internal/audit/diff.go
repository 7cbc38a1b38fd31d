package audit

import (
	"bytes"
	"encoding/json"
)

// ComputeDiff returns the set of keys whose JSON-serialized values differ
// between the two value sets, with their old/new pairs. Returns nil when
// nothing differs, so the entry omits the diff entirely rather than storing
// an empty object.
//
// Comparison is structural: values are serialized to JSON and the bytes
// compared, so nested objects compare by content (json.Marshal emits map
// keys in sorted order, making the encoding canonical for this purpose).
func ComputeDiff(oldValues, newValues map[string]any) map[string]FieldChange {
	diff := make(map[string]FieldChange)

	for key, oldVal := range oldValues {
		newVal, ok := newValues[key]
		if !ok {
			diff[key] = FieldChange{Old: oldVal, New: nil}
			continue
		}
		if !structurallyEqual(oldVal, newVal) {
			diff[key] = FieldChange{Old: oldVal, New: newVal}
		}
	}
	for key, newVal := range newValues {
		if _, ok := oldValues[key]; !ok {
			diff[key] = FieldChange{Old: nil, New: newVal}
		}
	}

	if len(diff) == 0 {
		return nil
	}
	return diff
}

func structurallyEqual(a, b any) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		// Unserializable values cannot be compared; treat as changed so the
		// trail errs on the side of recording.
		return false
	}
	return bytes.Equal(aj, bj)
}
