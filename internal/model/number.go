package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrNotANumber is returned when a value cannot be coerced into a Number.
var ErrNotANumber = errors.New("not a number")

type numberKind uint8

const (
	kindUnset numberKind = iota
	kindInt
	kindFloat
)

// Number is a JSON number that remembers whether it was written as an integer
// or as a floating-point literal, so 200 never comes back as 200.0.
// A parsed literal whose canonical rendering differs (12.50, 1e3, integers
// beyond int64) is kept and written back verbatim.
// The zero value is unset.
type Number struct {
	kind numberKind
	i    int64
	f    float64
	lit  string
}

// Int returns an integer Number.
func Int(v int64) Number {
	return Number{kind: kindInt, i: v, f: float64(v)}
}

// Float returns a floating-point Number. NaN and infinities are not
// representable in JSON; use NumberOf or ParseNumber to get an error for them.
func Float(v float64) Number {
	return Number{kind: kindFloat, f: v}
}

// ParseNumber builds a Number from its literal text. A literal containing a
// decimal point or an exponent is a float, anything else is an integer.
// Integers too large for int64 are accepted; Int64 saturates for them.
func ParseNumber(text string) (Number, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return Number{}, fmt.Errorf("%w: empty literal", ErrNotANumber)
	}

	var n Number
	if strings.ContainsAny(s, ".eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return Number{}, fmt.Errorf("%w: %q", ErrNotANumber, text)
		}
		n = Float(f)
	} else {
		i, err := strconv.ParseInt(s, 10, 64)
		switch {
		case err == nil:
			n = Int(i)
		case errors.Is(err, strconv.ErrRange) && isJSONNumber(s):
			f, _ := strconv.ParseFloat(s, 64)
			return Number{kind: kindInt, i: i, f: f, lit: s}, nil
		default:
			return Number{}, fmt.Errorf("%w: %q", ErrNotANumber, text)
		}
	}

	if isJSONNumber(s) && s != n.String() {
		n.lit = s
	}
	return n, nil
}

// isJSONNumber reports whether s is a number literal in JSON syntax. Go
// accepts forms such as "+5", "007" and hex floats that JSON does not.
func isJSONNumber(s string) bool {
	if s == "" || (s[0] != '-' && (s[0] < '0' || s[0] > '9')) {
		return false
	}
	return json.Valid([]byte(s))
}

// NumberOf coerces a host scalar into a Number through its textual form.
func NumberOf(v any) (Number, error) {
	switch n := v.(type) {
	case Number:
		if !n.IsSet() {
			return Number{}, fmt.Errorf("%w: unset number", ErrNotANumber)
		}
		return n, nil
	case json.Number:
		return ParseNumber(n.String())
	case string:
		return ParseNumber(n)
	case int:
		return Int(int64(n)), nil
	case int8:
		return Int(int64(n)), nil
	case int16:
		return Int(int64(n)), nil
	case int32:
		return Int(int64(n)), nil
	case int64:
		return Int(n), nil
	case uint:
		return ParseNumber(strconv.FormatUint(uint64(n), 10))
	case uint8:
		return Int(int64(n)), nil
	case uint16:
		return Int(int64(n)), nil
	case uint32:
		return Int(int64(n)), nil
	case uint64:
		return ParseNumber(strconv.FormatUint(n, 10))
	case float32:
		return ParseNumber(strconv.FormatFloat(float64(n), 'f', -1, 32))
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return Number{}, fmt.Errorf("%w: %v", ErrNotANumber, n)
		}
		return ParseNumber(strconv.FormatFloat(n, 'f', -1, 64))
	default:
		return Number{}, fmt.Errorf("%w: unsupported type %T", ErrNotANumber, v)
	}
}

// MustNumber is NumberOf for literals known to be valid. It panics otherwise.
func MustNumber(v any) Number {
	n, err := NumberOf(v)
	if err != nil {
		panic(err)
	}
	return n
}

func (n Number) IsSet() bool   { return n.kind != kindUnset }
func (n Number) IsInt() bool   { return n.kind == kindInt }
func (n Number) IsFloat() bool { return n.kind == kindFloat }

// Int64 returns the value truncated to an integer.
func (n Number) Int64() int64 {
	if n.kind == kindFloat {
		return int64(n.f)
	}
	return n.i
}

// Float64 returns the value as a float.
func (n Number) Float64() float64 {
	return n.f
}

// String renders the number the way it goes on the wire: the parsed literal
// when one was kept, otherwise a canonical form. Integers never carry a
// decimal point; floats always carry one (or an exponent).
func (n Number) String() string {
	if n.lit != "" {
		return n.lit
	}
	switch n.kind {
	case kindInt:
		return strconv.FormatInt(n.i, 10)
	case kindFloat:
		abs := math.Abs(n.f)
		if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
			return strconv.FormatFloat(n.f, 'e', -1, 64)
		}
		s := strconv.FormatFloat(n.f, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	default:
		return ""
	}
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.IsSet() {
		return nil, fmt.Errorf("%w: unset number", ErrNotANumber)
	}
	if n.kind == kindFloat && (math.IsNaN(n.f) || math.IsInf(n.f, 0)) {
		return nil, fmt.Errorf("%w: %v", ErrNotANumber, n.f)
	}
	return []byte(n.String()), nil
}

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("%w: null", ErrNotANumber)
	}
	if len(data) > 0 && data[0] == '"' {
		return fmt.Errorf("%w: got string %s", ErrNotANumber, data)
	}
	parsed, err := ParseNumber(string(data))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}
