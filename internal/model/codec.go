package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// marshalCompact encodes v without HTML escaping and without the trailing
// newline json.Encoder adds.
func marshalCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Marshal converts any model value into compact JSON text. Absent optional
// fields are omitted, explicit nulls are kept.
func Marshal(v any) ([]byte, error) {
	data, err := marshalCompact(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return data, nil
}

// MarshalEntry serializes a single entry as a self-contained JSON object with
// no leading or trailing separator.
func MarshalEntry(e Entry) ([]byte, error) {
	return Marshal(e)
}

// Unmarshal decodes and validates a complete HAR document.
func Unmarshal(data []byte) (*Har, error) {
	var h Har
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, asDecodeError(err)
	}
	return &h, nil
}

// Decode reads a complete HAR document from r.
func Decode(r io.Reader) (*Har, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read har: %w", err)
	}
	return Unmarshal(data)
}

// DecodeEntry decodes and validates a single entry object.
func DecodeEntry(data []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, asDecodeError(err)
	}
	return e, nil
}

func asDecodeError(err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return fmt.Errorf("%w: %w", ErrWrongShape, err)
	}
	return asFieldError("", err)
}

// Canonicalize normalizes JSON text: object keys sorted, no insignificant
// whitespace, number literals kept exactly as written.
func Canonicalize(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("canonicalize: trailing data after document")
	}
	return marshalCompact(v)
}

// field binds a JSON key to its destination during decoding.
type field struct {
	key      string
	dst      any
	required bool
}

func req(key string, dst any) field { return field{key: key, dst: dst, required: true} }
func opt(key string, dst any) field { return field{key: key, dst: dst} }

// decodeFields decodes a JSON object into the given fields. Missing or null
// required keys fail with ErrRequired, and every error carries the key path.
// Unknown keys are ignored.
func decodeFields(data []byte, fields ...field) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return asFieldError("", err)
	}

	for _, f := range fields {
		value, ok := raw[f.key]
		if !ok || isNull(value) {
			if f.required {
				return invalid(f.key, ErrRequired)
			}
			if !ok {
				continue
			}
		}
		if err := json.Unmarshal(value, f.dst); err != nil {
			return asFieldError(f.key, err)
		}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// List is a JSON array that always encodes as an array, even when nil.
type List[T any] []T

func (l List[T]) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return marshalCompact([]T(l))
}

func (l *List[T]) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return asFieldError("", err)
	}

	out := make(List[T], len(raws))
	for i, raw := range raws {
		if err := json.Unmarshal(raw, &out[i]); err != nil {
			return asFieldError(fmt.Sprintf("[%d]", i), err)
		}
	}
	*l = out
	return nil
}

func validateList[T interface{ Validate() error }](field string, items []T) error {
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return within(fmt.Sprintf("%s[%d]", field, i), err)
		}
	}
	return nil
}
