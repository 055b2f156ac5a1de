package core

import (
	"context"
	"fmt"
	"strings"
)

// DataType is the declared type of a column. The set is closed; every
// normalization branch dispatches on one of these.
type DataType int

const (
	TypeText DataType = iota
	TypeInteger
	TypeDecimal
	TypeMoney
	TypeBoolean
	TypeDateTime
	TypeOptionSet
	TypeMultiSelectOptionSet
	TypeLookup
	TypeUnsupported
)

var dataTypeNames = map[DataType]string{
	TypeText:                 "text",
	TypeInteger:              "integer",
	TypeDecimal:              "decimal",
	TypeMoney:                "money",
	TypeBoolean:              "boolean",
	TypeDateTime:             "dateTime",
	TypeOptionSet:            "optionSet",
	TypeMultiSelectOptionSet: "multiSelectOptionSet",
	TypeLookup:               "lookup",
	TypeUnsupported:          "unsupported",
}

// String returns the wire name of the data type.
func (t DataType) String() string {
	if name, ok := dataTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("DataType(%d)", int(t))
}

// ParseDataType converts a wire name back to a DataType. Unknown names map
// to TypeUnsupported so stale host metadata never unlocks an edit path.
func ParseDataType(s string) DataType {
	for t, name := range dataTypeNames {
		if strings.EqualFold(name, s) {
			return t
		}
	}
	return TypeUnsupported
}

// MarshalText implements encoding.TextMarshaler.
func (t DataType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *DataType) UnmarshalText(b []byte) error {
	*t = ParseDataType(string(b))
	return nil
}

// IsNumeric reports whether values of this type are numbers.
func (t DataType) IsNumeric() bool {
	return t == TypeInteger || t == TypeDecimal || t == TypeMoney
}

// Option is a single entry of an option-set table.
type Option struct {
	Code  int    `json:"code"`
	Label string `json:"label"`
}

// ColumnMetadata describes one column of an entity as supplied by the host.
type ColumnMetadata struct {
	Name      string   `json:"name"`
	DBColumn  string   `json:"-"`                  // Storage column (derived from Name if empty)
	Type      DataType `json:"type"`               // Declared data type
	Precision int      `json:"precision,omitempty"` // Decimal places for decimal/money (0 = unrounded, money defaults to 2)
	MinValue  *float64 `json:"minValue,omitempty"`
	MaxValue  *float64 `json:"maxValue,omitempty"`
	Options   []Option `json:"options,omitempty"`  // Option table for optionSet/multiSelect/two-state boolean
	DateOnly  bool     `json:"dateOnly,omitempty"` // dateTime column that stores a calendar date
	ReadOnly  bool     `json:"readOnly,omitempty"`
}

// StorageColumn returns the database column name for this column.
func (c ColumnMetadata) StorageColumn() string {
	if c.DBColumn != "" {
		return c.DBColumn
	}
	return toDBColumnName(c.Name)
}

// optionByCode returns the option with the given code.
func (c ColumnMetadata) optionByCode(code int) (Option, bool) {
	for _, o := range c.Options {
		if o.Code == code {
			return o, true
		}
	}
	return Option{}, false
}

// optionByLabel returns the option whose label matches case-insensitively.
func (c ColumnMetadata) optionByLabel(label string) (Option, bool) {
	label = strings.TrimSpace(label)
	for _, o := range c.Options {
		if strings.EqualFold(o.Label, label) {
			return o, true
		}
	}
	return Option{}, false
}

// opaqueTextColumn is the metadata used for columns the resolver cannot find.
func opaqueTextColumn(name string) ColumnMetadata {
	return ColumnMetadata{Name: name, Type: TypeText}
}

// ColumnResolver looks up column metadata by name.
// The bool result is false when the column is not part of the bound dataset.
type ColumnResolver interface {
	Resolve(column string) (ColumnMetadata, bool)
}

// RecordUpdater applies one record's changed fields to the remote store.
type RecordUpdater interface {
	UpdateRecord(ctx context.Context, entity, recordID string, fields map[string]Value) error
}

// Refresher re-pulls authoritative values after a successful save.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RecordLister reads a page of records of an entity, ordered by record id.
type RecordLister interface {
	ListRecords(ctx context.Context, entity string, limit, offset int) ([]Record, error)
}

// RecordStore is the full remote record-store capability used by the service.
type RecordStore interface {
	RecordUpdater
	RecordLister
	Close() error
}

// Record is a row as read back from the record store.
type Record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// toDBColumnName converts a display column name to a database column name.
// "Account Name" -> "account_name"
func toDBColumnName(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
}
