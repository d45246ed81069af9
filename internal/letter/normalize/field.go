// Package normalize reconciles the legacy and the normalized generations of
// consultation fields into single canonical values.
//
// Every resolution goes through Resolve: the new-schema value wins when
// present, otherwise the legacy value, otherwise the field is Absent and the
// caller may substitute a documented default. Fields are resolved one at a
// time; a new value of one field is never combined with a legacy value of a
// related field.
package normalize

import (
	"strings"
)

// Origin records which schema generation a resolved value came from.
type Origin uint8

const (
	Absent Origin = iota
	New
	Legacy
	Default
)

func (o Origin) String() string {
	switch o {
	case New:
		return "new"
	case Legacy:
		return "legacy"
	case Default:
		return "default"
	}
	return "absent"
}

// Field is a resolved value tagged with its origin.
type Field[T any] struct {
	value  T
	origin Origin
}

// Value returns the resolved value, or the zero value when Absent.
func (f Field[T]) Value() T { return f.value }

// Origin returns where the value came from.
func (f Field[T]) Origin() Origin { return f.origin }

// Present reports whether a value was resolved from either schema or a
// default.
func (f Field[T]) Present() bool { return f.origin != Absent }

// Get returns the value and whether it is present.
func (f Field[T]) Get() (T, bool) { return f.value, f.origin != Absent }

// Or substitutes def when the field is Absent.
func (f Field[T]) Or(def T) Field[T] {
	if f.origin != Absent {
		return f
	}
	return Field[T]{value: def, origin: Default}
}

// Resolve applies the new-then-legacy fallback using present to decide
// whether a value counts as populated.
func Resolve[T any](newVal, legacyVal T, present func(T) bool) Field[T] {
	switch {
	case present(newVal):
		return Field[T]{value: newVal, origin: New}
	case present(legacyVal):
		return Field[T]{value: legacyVal, origin: Legacy}
	}
	var zero T
	return Field[T]{value: zero, origin: Absent}
}

// Text resolves a string pair. Whitespace-only strings are absent.
func Text(newVal, legacyVal string) Field[string] {
	return Resolve(newVal, legacyVal, nonBlank)
}

// Ptr resolves a pair of optional values; nil is absent.
func Ptr[T any](newVal, legacyVal *T) Field[T] {
	p := Resolve(newVal, legacyVal, func(v *T) bool { return v != nil })
	if !p.Present() {
		return Field[T]{}
	}
	return Field[T]{value: *p.value, origin: p.origin}
}

// Slice resolves a pair of lists; an empty list is absent.
func Slice[T any](newVal, legacyVal []T) Field[[]T] {
	return Resolve(newVal, legacyVal, func(v []T) bool { return len(v) > 0 })
}

func nonBlank(s string) bool {
	return strings.TrimSpace(s) != ""
}
