// Package telemetry turns tick-boundary simulation snapshots into typed
// channel samples and forwards them to pluggable sinks at two cadences.
package telemetry

import "fmt"

// ValueKind is the semantic type of a channel value. Downstream schema
// validation rejects samples whose kinds drift, so every channel publishes
// a fixed kind.
type ValueKind int

const (
	KindInt32 ValueKind = iota
	KindDouble
	KindEnum
	KindBitField
	KindString
)

// Value is one typed channel value.
type Value struct {
	Kind ValueKind

	IntVal   int32
	FloatVal float64
	BitsVal  byte
	StrVal   string
}

// Int32Value wraps an integer channel value.
func Int32Value(v int32) Value {
	return Value{Kind: KindInt32, IntVal: v}
}

// DoubleValue wraps a floating-point channel value.
func DoubleValue(v float64) Value {
	return Value{Kind: KindDouble, FloatVal: v}
}

// EnumValue wraps an enumerated channel value by its numeric key.
func EnumValue(v int32) Value {
	return Value{Kind: KindEnum, IntVal: v}
}

// BitFieldValue wraps a one-byte bit-field channel value.
func BitFieldValue(v byte) Value {
	return Value{Kind: KindBitField, BitsVal: v}
}

// StringValue wraps a string channel value.
func StringValue(v string) Value {
	return Value{Kind: KindString, StrVal: v}
}

// Any returns the value as a plain Go value for sinks that serialize
// generically.
func (v Value) Any() any {
	switch v.Kind {
	case KindInt32, KindEnum:
		return v.IntVal
	case KindDouble:
		return v.FloatVal
	case KindBitField:
		return uint8(v.BitsVal)
	case KindString:
		return v.StrVal
	}
	return nil
}

// String renders the value for logs.
func (v Value) String() string {
	switch v.Kind {
	case KindInt32:
		return fmt.Sprintf("%d", v.IntVal)
	case KindEnum:
		return fmt.Sprintf("enum(%d)", v.IntVal)
	case KindDouble:
		return fmt.Sprintf("%.3f", v.FloatVal)
	case KindBitField:
		return fmt.Sprintf("0b%08b", v.BitsVal)
	case KindString:
		return v.StrVal
	}
	return "?"
}
