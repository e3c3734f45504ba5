package boolexpr

import "time"

// Kind tags the dynamic type carried by a Value, implementing the "tagged
// variant over {Bool,Int,Float,String,Duration,Null}" recommended by
// design notes §9. List is added to host provide-map array values (e.g.
// dependency_solver's "args" symbol) consumed by the `in` operator.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindDuration
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindDuration:
		return "duration"
	case KindList:
		return "list"
	default:
		return "null"
	}
}

// Value is a dynamically-typed leaf value resolved from the symbol table.
type Value struct {
	Kind Kind
	Bool bool
	Num  float64
	Str  string
	Dur  time.Duration
	List []Value
}

func Null() Value                    { return Value{Kind: KindNull} }
func BoolValue(b bool) Value         { return Value{Kind: KindBool, Bool: b} }
func NumberValue(n float64) Value    { return Value{Kind: KindNumber, Num: n} }
func StringValue(s string) Value     { return Value{Kind: KindString, Str: s} }
func DurationValue(d time.Duration) Value { return Value{Kind: KindDuration, Dur: d} }
func ListValue(items []Value) Value  { return Value{Kind: KindList, List: items} }

// Truthy implements bare-name truthiness: bools by value, numbers
// non-zero, strings non-empty, durations non-zero, null always false.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindNumber:
		return v.Num != 0
	case KindString:
		return v.Str != ""
	case KindDuration:
		return v.Dur != 0
	case KindList:
		return len(v.List) > 0
	default:
		return false
	}
}

// AnyValue converts a plain Go value (as found in a provide map or a
// metric sample) into a typed Value, implementing "dynamic per-metric
// typing" from design notes §9.
func AnyValue(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case bool:
		return BoolValue(t)
	case int:
		return NumberValue(float64(t))
	case int64:
		return NumberValue(float64(t))
	case float64:
		return NumberValue(t)
	case float32:
		return NumberValue(float64(t))
	case string:
		return StringValue(t)
	case time.Duration:
		return DurationValue(t)
	case []any:
		items := make([]Value, 0, len(t))
		for _, e := range t {
			items = append(items, AnyValue(e))
		}
		return ListValue(items)
	case []string:
		items := make([]Value, 0, len(t))
		for _, e := range t {
			items = append(items, StringValue(e))
		}
		return ListValue(items)
	default:
		return Null()
	}
}
