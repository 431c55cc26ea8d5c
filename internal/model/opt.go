package model

import (
	"bytes"
	"encoding/json"
)

// Opt is an optional field. It tells apart a field that was never set (omitted
// on encode), one explicitly set to null, and one holding a value. Fields of
// this type must carry the `omitzero` tag.
type Opt[T any] struct {
	set   bool
	null  bool
	value T
}

// Some returns an Opt holding v.
func Some[T any](v T) Opt[T] {
	return Opt[T]{set: true, value: v}
}

// Null returns an Opt explicitly set to null.
func Null[T any]() Opt[T] {
	return Opt[T]{set: true, null: true}
}

// IsZero reports whether the field is absent. encoding/json uses it for omitzero.
func (o Opt[T]) IsZero() bool { return !o.set }

func (o Opt[T]) IsSet() bool  { return o.set }
func (o Opt[T]) IsNull() bool { return o.set && o.null }

// Get returns the value and whether one is present.
func (o Opt[T]) Get() (T, bool) {
	if !o.set || o.null {
		var zero T
		return zero, false
	}
	return o.value, true
}

// OrElse returns the value, or def when absent or null.
func (o Opt[T]) OrElse(def T) T {
	if v, ok := o.Get(); ok {
		return v
	}
	return def
}

func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.set || o.null {
		return []byte("null"), nil
	}
	return marshalCompact(o.value)
}

func (o *Opt[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Null[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}
