package settings

import "encoding/json"

// Field is a tri-state patch value. JSON distinguishes a field that is
// absent, explicitly null, and set to a value; all three survive
// unmarshaling so the merge can tell "leave unchanged" from "clear".
type Field[T any] struct {
	present bool
	null    bool
	value   T
}

// Val builds a set field. Test and internal-caller convenience.
func Val[T any](v T) Field[T] {
	return Field[T]{present: true, value: v}
}

// Null builds an explicit-null field.
func Null[T any]() Field[T] {
	return Field[T]{present: true, null: true}
}

func (f *Field[T]) UnmarshalJSON(b []byte) error {
	f.present = true
	if string(b) == "null" {
		f.null = true
		return nil
	}
	return json.Unmarshal(b, &f.value)
}

func (f Field[T]) Present() bool { return f.present }
func (f Field[T]) IsNull() bool  { return f.present && f.null }

// Get returns the value and whether one was provided.
func (f Field[T]) Get() (T, bool) {
	if !f.present || f.null {
		var zero T
		return zero, false
	}
	return f.value, true
}

// Merge resolves a required field: a provided value overwrites, absent
// and null both keep the existing value. Required fields cannot be
// cleared.
func (f Field[T]) Merge(existing T) T {
	if v, ok := f.Get(); ok {
		return v
	}
	return existing
}

// MergeRestricted resolves a field only elevated operators may change.
// Non-elevated input is silently retained, never an error.
func (f Field[T]) MergeRestricted(existing T, elevated bool) T {
	if !elevated {
		return existing
	}
	return f.Merge(existing)
}

// MergeOpt resolves a clearable field: value overwrites, null clears,
// absent keeps.
func MergeOpt[T any](existing *T, f Field[T]) *T {
	if !f.present {
		return existing
	}
	if f.null {
		return nil
	}
	v := f.value
	return &v
}
