package codec

import (
	"encoding/json"
	"fmt"
)

// Kind tags which variant a Value holds.
type Kind uint8

const (
	KindString Kind = iota
	KindFloat
	KindInt
)

// Value is a tagged union over the scalar kinds a heterogeneous result map
// can carry (string | float64 | int64). The status method returns a
// map[string]Value so mixed value types survive both payload codecs.
type Value struct {
	Kind  Kind
	Str   string
	Float float64
	Int   int64
}

func String(s string) Value { return Value{Kind: KindString, Str: s} }
func Float(f float64) Value { return Value{Kind: KindFloat, Float: f} }
func Int(i int64) Value { return Value{Kind: KindInt, Int: i} }

// MarshalJSON writes the bare scalar, so a map[string]Value serializes as a
// plain JSON object of mixed value types.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindString:
		return json.Marshal(v.Str)
	case KindFloat:
		return json.Marshal(v.Float)
	case KindInt:
		return json.Marshal(v.Int)
	}
	return nil, fmt.Errorf("codec: unknown value kind %d", v.Kind)
}

// UnmarshalJSON sniffs the scalar type: strings stay strings, numbers become
// Int when they parse exactly as an integer and Float otherwise.
func (v *Value) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = String(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("codec: value is neither string nor number: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*v = Int(i)
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("codec: bad numeric value %q: %w", n.String(), err)
	}
	*v = Float(f)
	return nil
}
