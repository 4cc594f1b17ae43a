package blazedb

import (
	"fmt"
	"sort"
	"time"
)

// ValueKind tags the variant carried by a Value.
type ValueKind int

const (
	KindText ValueKind = iota
	KindInt
	KindFloat
	KindBool
	KindTimestamp
	KindID
	KindSeq
	KindMap
)

// Value is the tagged sum every document field holds: one of text, a
// signed 64-bit integer, a 64-bit float, a bool, a timestamp, a 128-bit
// ID, an ordered sequence of Values, or a nested field->Value mapping.
// Document fields are untyped at the Go level (map[string]any) for ease of
// use; Value is the structural form used for compound-key comparisons and
// hashing where two differently-typed-but-equal inputs must normalize to
// the same key.
type Value struct {
	Kind ValueKind
	Text string
	Int  int64
	Flt  float64
	Bln  bool
	Time time.Time
	ID   ID
	Seq  []Value
	Map  map[string]Value
}

// Document is an unordered field-name -> value mapping. No fixed schema is
// enforced; any two documents in the same Collection may carry different
// field sets.
type Document map[string]any

// NormalizeValue coerces an arbitrary Go value found in a document field
// into the structural Value sum used by compound-key comparisons.
// Unsupported or missing inputs normalize to empty text, per spec: a
// document missing a field that a compound index covers still produces a
// valid (if vacuous) key component rather than failing the comparison.
func NormalizeValue(v any) Value {
	switch x := v.(type) {
	case nil:
		return Value{Kind: KindText, Text: ""}
	case string:
		return Value{Kind: KindText, Text: x}
	case bool:
		return Value{Kind: KindBool, Bln: x}
	case int:
		return Value{Kind: KindInt, Int: int64(x)}
	case int32:
		return Value{Kind: KindInt, Int: int64(x)}
	case int64:
		return Value{Kind: KindInt, Int: x}
	case float32:
		return Value{Kind: KindFloat, Flt: float64(x)}
	case float64:
		// JSON round-trips integers as float64; if it has no fractional
		// part, treat it as an int so a value inserted as 1 and a value
		// inserted as 1.0 compare equal.
		if x == float64(int64(x)) {
			return Value{Kind: KindInt, Int: int64(x)}
		}
		return Value{Kind: KindFloat, Flt: x}
	case time.Time:
		return Value{Kind: KindTimestamp, Time: x}
	case ID:
		return Value{Kind: KindID, ID: x}
	case []any:
		seq := make([]Value, len(x))
		for i, e := range x {
			seq[i] = NormalizeValue(e)
		}
		return Value{Kind: KindSeq, Seq: seq}
	case []Value:
		return Value{Kind: KindSeq, Seq: x}
	case map[string]any:
		m := make(map[string]Value, len(x))
		for k, e := range x {
			m[k] = NormalizeValue(e)
		}
		return Value{Kind: KindMap, Map: m}
	case map[string]Value:
		return Value{Kind: KindMap, Map: x}
	default:
		return Value{Kind: KindText, Text: ""}
	}
}

// Equal reports structural equality between two normalized Values.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindText:
		return v.Text == other.Text
	case KindInt:
		return v.Int == other.Int
	case KindFloat:
		return v.Flt == other.Flt
	case KindBool:
		return v.Bln == other.Bln
	case KindTimestamp:
		return v.Time.Equal(other.Time)
	case KindID:
		return v.ID == other.ID
	case KindSeq:
		if len(v.Seq) != len(other.Seq) {
			return false
		}
		for i := range v.Seq {
			if !v.Seq[i].Equal(other.Seq[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.Map) != len(other.Map) {
			return false
		}
		for k, a := range v.Map {
			b, ok := other.Map[k]
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	}
	return false
}

// HashKey returns a deterministic string form of a normalized Value,
// suitable as a Go map key for compound-key buckets. It is not meant to be
// a compact encoding, only a stable, collision-free-in-practice digest of
// the structural value.
func (v Value) HashKey() string {
	switch v.Kind {
	case KindText:
		return "s:" + v.Text
	case KindInt:
		return fmt.Sprintf("i:%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("f:%v", v.Flt)
	case KindBool:
		return fmt.Sprintf("b:%v", v.Bln)
	case KindTimestamp:
		return "t:" + v.Time.UTC().Format(time.RFC3339Nano)
	case KindID:
		return "u:" + v.ID.String()
	case KindSeq:
		out := "q:["
		for _, e := range v.Seq {
			out += e.HashKey() + ","
		}
		return out + "]"
	case KindMap:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := "m:{"
		for _, k := range keys {
			out += k + "=" + v.Map[k].HashKey() + ","
		}
		return out + "}"
	default:
		return "s:"
	}
}
