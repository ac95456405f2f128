package ast

import (
	"encoding/json"
	"fmt"
)

// FullValue is the tagged union of values that flow through a workflow:
// task arguments, intermediate results, and the final value of a Finished
// execution.
type FullValue struct {
	Kind   FullValueKind          `json:"kind"`
	Bool   bool                   `json:"bool,omitempty"`
	Int    int64                  `json:"int,omitempty"`
	Real   float64                `json:"real,omitempty"`
	Str    string                 `json:"str,omitempty"`
	Array  []FullValue            `json:"array,omitempty"`
	Struct map[string]FullValue   `json:"struct,omitempty"`
	Class  string                 `json:"class,omitempty"`
	Name   string                 `json:"name,omitempty"`
}

// FullValueKind discriminates the variants of FullValue.
type FullValueKind string

const (
	FullValueVoid               FullValueKind = "Void"
	FullValueBoolean            FullValueKind = "Boolean"
	FullValueInteger            FullValueKind = "Integer"
	FullValueRealKind           FullValueKind = "Real"
	FullValueString             FullValueKind = "String"
	FullValueArray              FullValueKind = "Array"
	FullValueStruct             FullValueKind = "Struct"
	FullValueData               FullValueKind = "Data"
	FullValueIntermediateResult FullValueKind = "IntermediateResult"
)

// Void is the empty FullValue returned by tasks with no output.
func Void() FullValue { return FullValue{Kind: FullValueVoid} }

// Boolean wraps a bool as a FullValue.
func Boolean(b bool) FullValue { return FullValue{Kind: FullValueBoolean, Bool: b} }

// Integer wraps an int64 as a FullValue.
func Integer(i int64) FullValue { return FullValue{Kind: FullValueInteger, Int: i} }

// Real wraps a float64 as a FullValue.
func Real(r float64) FullValue { return FullValue{Kind: FullValueRealKind, Real: r} }

// String wraps a string as a FullValue.
func String(s string) FullValue { return FullValue{Kind: FullValueString, Str: s} }

// DataRef wraps a persistent dataset reference as a FullValue.
func DataRef(name string) FullValue { return FullValue{Kind: FullValueData, Name: name} }

// IntermediateResultRef wraps an intermediate-result reference as a FullValue.
func IntermediateResultRef(name string) FullValue {
	return FullValue{Kind: FullValueIntermediateResult, Name: name}
}

// MarshalJSON encodes the FullValue as a self-describing JSON object. A
// custom marshaller is used (rather than relying on struct tags alone) so
// that unset fields for the active Kind never appear in the wire form.
func (v FullValue) MarshalJSON() ([]byte, error) {
	type wire struct {
		Kind   FullValueKind        `json:"kind"`
		Bool   *bool                `json:"bool,omitempty"`
		Int    *int64               `json:"int,omitempty"`
		Real   *float64             `json:"real,omitempty"`
		Str    *string              `json:"str,omitempty"`
		Array  []FullValue          `json:"array,omitempty"`
		Struct map[string]FullValue `json:"struct,omitempty"`
		Class  string               `json:"class,omitempty"`
		Name   string               `json:"name,omitempty"`
	}
	w := wire{Kind: v.Kind, Class: v.Class, Name: v.Name}
	switch v.Kind {
	case FullValueBoolean:
		w.Bool = &v.Bool
	case FullValueInteger:
		w.Int = &v.Int
	case FullValueRealKind:
		w.Real = &v.Real
	case FullValueString:
		w.Str = &v.Str
	case FullValueArray:
		w.Array = v.Array
	case FullValueStruct:
		w.Struct = v.Struct
	}
	return json.Marshal(w)
}

// String implements fmt.Stringer for debug logging.
func (v FullValue) String() string {
	switch v.Kind {
	case FullValueVoid:
		return "Void"
	case FullValueBoolean:
		return fmt.Sprintf("Boolean(%v)", v.Bool)
	case FullValueInteger:
		return fmt.Sprintf("Integer(%d)", v.Int)
	case FullValueRealKind:
		return fmt.Sprintf("Real(%g)", v.Real)
	case FullValueString:
		return fmt.Sprintf("String(%q)", v.Str)
	case FullValueData, FullValueIntermediateResult:
		return fmt.Sprintf("%s(%s)", v.Kind, v.Name)
	default:
		return string(v.Kind)
	}
}
