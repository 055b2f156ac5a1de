package core

import (
	"encoding/json"
	"slices"
	"strconv"
	"time"
)

// Value is a normalized cell value ready for the record store.
//
// It is tagged with the column's DataType. A null Value is an explicit clear.
// An unsupported Value marks a column that cannot be patched from the grid;
// such values never enter a ChangeSet.
type Value struct {
	typ         DataType
	null        bool
	unsupported bool

	text  string
	i     int64
	f     float64
	b     bool
	t     time.Time
	codes []int
}

// TextValue returns a normalized text value.
func TextValue(s string) Value { return Value{typ: TypeText, text: s} }

// IntegerValue returns a normalized integer value.
func IntegerValue(i int64) Value { return Value{typ: TypeInteger, i: i} }

// DecimalValue returns a normalized decimal (or money, via typ) value.
func DecimalValue(typ DataType, f float64) Value { return Value{typ: typ, f: f} }

// BooleanValue returns a normalized boolean value.
func BooleanValue(b bool) Value { return Value{typ: TypeBoolean, b: b} }

// DateTimeValue returns a normalized timestamp in UTC.
func DateTimeValue(t time.Time) Value { return Value{typ: TypeDateTime, t: t.UTC()} }

// OptionValue returns a normalized option-set code.
func OptionValue(code int) Value { return Value{typ: TypeOptionSet, i: int64(code)} }

// MultiOptionValue returns a normalized multi-select value. Codes are copied and sorted.
func MultiOptionValue(codes []int) Value {
	cp := slices.Clone(codes)
	slices.Sort(cp)
	return Value{typ: TypeMultiSelectOptionSet, codes: cp}
}

// NullValue returns an explicit clear for a column of the given type.
func NullValue(typ DataType) Value { return Value{typ: typ, null: true} }

// Unsupported returns the marker for columns that cannot be patched here.
func Unsupported(typ DataType) Value { return Value{typ: typ, unsupported: true} }

// Type returns the data type the value was normalized for.
func (v Value) Type() DataType { return v.typ }

// IsNull reports whether the value clears the column.
func (v Value) IsNull() bool { return v.null }

// IsUnsupported reports whether the value is the Unsupported marker.
func (v Value) IsUnsupported() bool { return v.unsupported }

// Text returns the text payload.
func (v Value) Text() string { return v.text }

// Int returns the integer payload (also the code of an option-set value).
func (v Value) Int() int64 { return v.i }

// Float returns the decimal payload.
func (v Value) Float() float64 { return v.f }

// Bool returns the boolean payload.
func (v Value) Bool() bool { return v.b }

// Time returns the timestamp payload.
func (v Value) Time() time.Time { return v.t }

// Codes returns a copy of the multi-select codes.
func (v Value) Codes() []int { return slices.Clone(v.codes) }

// Interface returns the payload as a plain Go value, nil for clears.
func (v Value) Interface() any {
	if v.null || v.unsupported {
		return nil
	}
	switch v.typ {
	case TypeInteger, TypeOptionSet:
		return v.i
	case TypeDecimal, TypeMoney:
		return v.f
	case TypeBoolean:
		return v.b
	case TypeDateTime:
		return v.t
	case TypeMultiSelectOptionSet:
		return v.Codes()
	default:
		return v.text
	}
}

// Equal reports whether two values are identical.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ || v.null != o.null || v.unsupported != o.unsupported {
		return false
	}
	return v.text == o.text && v.i == o.i && v.f == o.f && v.b == o.b &&
		v.t.Equal(o.t) && slices.Equal(v.codes, o.codes)
}

// String formats the value for logs and user messages.
func (v Value) String() string {
	switch {
	case v.unsupported:
		return "<unsupported>"
	case v.null:
		return "<null>"
	}
	switch v.typ {
	case TypeInteger, TypeOptionSet:
		return strconv.FormatInt(v.i, 10)
	case TypeDecimal, TypeMoney:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case TypeBoolean:
		return strconv.FormatBool(v.b)
	case TypeDateTime:
		return v.t.Format(time.RFC3339Nano)
	case TypeMultiSelectOptionSet:
		b, _ := json.Marshal(v.codes)
		return string(b)
	default:
		return v.text
	}
}

// MarshalJSON encodes the payload in its natural JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.typ == TypeMultiSelectOptionSet && !v.null && !v.unsupported && v.codes == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(v.Interface())
}
