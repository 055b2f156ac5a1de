package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// RawKind tags the shape of a value entered in the grid.
type RawKind int

const (
	RawNull RawKind = iota
	RawString
	RawNumber
	RawBool
	RawSelection
)

func (k RawKind) String() string {
	switch k {
	case RawNull:
		return "null"
	case RawString:
		return "string"
	case RawNumber:
		return "number"
	case RawBool:
		return "boolean"
	case RawSelection:
		return "selection"
	default:
		return "raw(" + strconv.Itoa(int(k)) + ")"
	}
}

// Reference points at a record of another entity, as produced by lookup pickers.
type Reference struct {
	Entity string `json:"entity"`
	ID     string `json:"id"`
}

// Selection is the composite value produced by pickers and multi-select widgets.
type Selection struct {
	Codes     []int      `json:"codes,omitempty"`
	Labels    []string   `json:"labels,omitempty"`
	Reference *Reference `json:"reference,omitempty"`
}

// RawValue is a single cell value exactly as the editing surface produced it.
// The zero value is RawNull.
type RawValue struct {
	kind RawKind
	str  string
	num  float64
	b    bool
	sel  Selection
}

// NullRaw returns a raw null (cleared widget).
func NullRaw() RawValue { return RawValue{} }

// StringRaw wraps a string entered in a text-like widget.
func StringRaw(s string) RawValue { return RawValue{kind: RawString, str: s} }

// NumberRaw wraps a number produced by a numeric widget.
func NumberRaw(f float64) RawValue { return RawValue{kind: RawNumber, num: f} }

// BoolRaw wraps a checkbox or toggle state.
func BoolRaw(b bool) RawValue { return RawValue{kind: RawBool, b: b} }

// SelectionRaw wraps a picker selection.
func SelectionRaw(sel Selection) RawValue { return RawValue{kind: RawSelection, sel: sel} }

// CodesRaw is shorthand for a selection of option codes.
func CodesRaw(codes ...int) RawValue { return SelectionRaw(Selection{Codes: codes}) }

// Kind returns the tag of the value.
func (r RawValue) Kind() RawKind { return r.kind }

// String returns a short description for logs.
func (r RawValue) String() string {
	switch r.kind {
	case RawString:
		return strconv.Quote(r.str)
	case RawNumber:
		return strconv.FormatFloat(r.num, 'g', -1, 64)
	case RawBool:
		return strconv.FormatBool(r.b)
	case RawSelection:
		return fmt.Sprintf("selection%+v", r.sel)
	default:
		return "null"
	}
}

// UnmarshalJSON decodes any JSON value a grid widget can send.
//
// Arrays become selections (of codes when every member is a number, of
// labels otherwise). Objects are decoded as a Selection, with a bare
// {"entity","id"} object treated as a reference.
func (r *RawValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = NullRaw()
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = StringRaw(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*r = BoolRaw(b)
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		sel, err := selectionFromArray(items)
		if err != nil {
			return err
		}
		*r = SelectionRaw(sel)
	case '{':
		var obj struct {
			Selection
			Entity string `json:"entity"`
			ID     string `json:"id"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		sel := obj.Selection
		if sel.Reference == nil && (obj.Entity != "" || obj.ID != "") {
			sel.Reference = &Reference{Entity: obj.Entity, ID: obj.ID}
		}
		*r = SelectionRaw(sel)
	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("invalid raw value %s: %w", data, err)
		}
		*r = NumberRaw(f)
	}
	return nil
}

// MarshalJSON encodes the value back to its JSON shape.
func (r RawValue) MarshalJSON() ([]byte, error) {
	switch r.kind {
	case RawString:
		return json.Marshal(r.str)
	case RawNumber:
		return json.Marshal(r.num)
	case RawBool:
		return json.Marshal(r.b)
	case RawSelection:
		return json.Marshal(r.sel)
	default:
		return []byte("null"), nil
	}
}

func selectionFromArray(items []json.RawMessage) (Selection, error) {
	var sel Selection
	allNumbers := true
	for _, item := range items {
		if _, err := strconv.ParseFloat(string(bytes.TrimSpace(item)), 64); err != nil {
			allNumbers = false
			break
		}
	}

	for _, item := range items {
		if allNumbers {
			var code int
			if err := json.Unmarshal(item, &code); err != nil {
				return Selection{}, fmt.Errorf("invalid option code %s: %w", item, err)
			}
			sel.Codes = append(sel.Codes, code)
			continue
		}
		var label string
		if err := json.Unmarshal(item, &label); err != nil {
			return Selection{}, fmt.Errorf("invalid option label %s: %w", item, err)
		}
		sel.Labels = append(sel.Labels, label)
	}
	return sel, nil
}
