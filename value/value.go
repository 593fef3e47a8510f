// Package value provides the typed tabular data model used by the analytics
// pipeline: a closed set of scalar kinds and an immutable columnar Table.
//
// Values form a tagged union over {Null, Bool, Int, Float, Text, Time}.
// Comparisons between mismatched kinds are total: Int and Float promote to
// a common numeric kind, everything else compares unequal rather than
// erroring.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the scalar type held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindText
	KindTime
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindTime:
		return "time"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is an immutable scalar of one of the supported kinds.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	t    time.Time
}

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns a 64-bit integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a 64-bit float value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Text returns a string value.
func Text(s string) Value { return Value{kind: KindText, s: s} }

// Time returns a timestamp value.
func Time(t time.Time) Value { return Value{kind: KindTime, t: t} }

// FromAny converts a dynamically typed scalar (as produced by database
// drivers and file readers) into a Value. Unknown types fall back to their
// textual rendering.
func FromAny(v interface{}) Value {
	switch val := v.(type) {
	case nil:
		return Null()
	case Value:
		return val
	case bool:
		return Bool(val)
	case int:
		return Int(int64(val))
	case int8:
		return Int(int64(val))
	case int16:
		return Int(int64(val))
	case int32:
		return Int(int64(val))
	case int64:
		return Int(val)
	case uint:
		return Int(int64(val))
	case uint8:
		return Int(int64(val))
	case uint16:
		return Int(int64(val))
	case uint32:
		return Int(int64(val))
	case uint64:
		return Int(int64(val))
	case float32:
		return Float(float64(val))
	case float64:
		return Float(val)
	case string:
		return Text(val)
	case []byte:
		return Text(string(val))
	case time.Time:
		return Time(val)
	default:
		return Text(fmt.Sprintf("%v", val))
	}
}

// Kind returns the kind of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsFloat returns the value as a float64. Int values promote; all other
// kinds report false.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	default:
		return 0, false
	}
}

// AsBool returns the boolean payload, reporting false for other kinds.
func (v Value) AsBool() (bool, bool) {
	if v.kind == KindBool {
		return v.b, true
	}
	return false, false
}

// AsText returns the string payload, reporting false for other kinds.
func (v Value) AsText() (string, bool) {
	if v.kind == KindText {
		return v.s, true
	}
	return "", false
}

// timeLayouts are the accepted textual timestamp shapes, tried in order.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
}

// AsTime returns the value as a timestamp. Time values are returned as-is,
// Text values are parsed against a fixed layout list, and Int values are
// interpreted as Unix seconds. All other kinds report false.
func (v Value) AsTime() (time.Time, bool) {
	switch v.kind {
	case KindTime:
		return v.t, true
	case KindText:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, v.s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	case KindInt:
		return time.Unix(v.i, 0).UTC(), true
	default:
		return time.Time{}, false
	}
}

// String returns the textual rendering of the value. Null renders as the
// empty string, timestamps as RFC 3339.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindText:
		return v.s
	case KindTime:
		return v.t.Format(time.RFC3339Nano)
	default:
		return ""
	}
}

// Any returns the value boxed as a plain Go scalar for response payloads.
// Null boxes as nil.
func (v Value) Any() interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindText:
		return v.s
	case KindTime:
		return v.t
	default:
		return nil
	}
}

// Equal reports whether two values are equal. Int and Float compare
// numerically; Null equals Null (so null group keys bucket together);
// values of otherwise mismatched kinds are unequal, never an error.
func (v Value) Equal(o Value) bool {
	if v.kind == KindNull || o.kind == KindNull {
		return v.kind == o.kind
	}
	if lf, lok := v.AsFloat(); lok {
		if rf, rok := o.AsFloat(); rok {
			return lf == rf || (math.IsNaN(lf) && math.IsNaN(rf))
		}
		return false
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindText:
		return v.s == o.s
	case KindTime:
		return v.t.Equal(o.t)
	default:
		return false
	}
}

// Compare orders two values, returning (-1|0|+1, true) when the pair is
// comparable and (0, false) otherwise. Numeric kinds promote; Text orders
// lexically; Time chronologically; Bool orders false before true. Null is
// incomparable here; callers decide where nulls sort.
func (v Value) Compare(o Value) (int, bool) {
	if v.kind == KindNull || o.kind == KindNull {
		return 0, false
	}
	if lf, lok := v.AsFloat(); lok {
		if rf, rok := o.AsFloat(); rok {
			switch {
			case lf < rf:
				return -1, true
			case lf > rf:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}
	if v.kind != o.kind {
		return 0, false
	}
	switch v.kind {
	case KindText:
		return strings.Compare(v.s, o.s), true
	case KindTime:
		switch {
		case v.t.Before(o.t):
			return -1, true
		case v.t.After(o.t):
			return 1, true
		default:
			return 0, true
		}
	case KindBool:
		switch {
		case !v.b && o.b:
			return -1, true
		case v.b && !o.b:
			return 1, true
		default:
			return 0, true
		}
	default:
		return 0, false
	}
}

// AppendKey writes a collision-safe encoding of the value for use in group
// keys. The kind tag keeps Int(1) distinct from Text("1"); Int and Float
// share a numeric tag so equal numbers land in the same group.
func (v Value) AppendKey(b *strings.Builder) {
	if f, ok := v.AsFloat(); ok {
		b.WriteString("num\x00:\x00")
		b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
		return
	}
	b.WriteString(v.kind.String())
	b.WriteString("\x00:\x00")
	b.WriteString(v.String())
}
