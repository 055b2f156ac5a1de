package store

import (
	"fmt"
	"slices"
	"strings"

	"github.com/JonMunkholm/gridedit/internal/core"
)

// dialect captures what differs between the SQL backends.
type dialect struct {
	name        string
	placeholder func(n int) string // 1-based
	columnType  func(col core.ColumnMetadata) string
	keyType     string
}

var postgresDialect = dialect{
	name:        "postgres",
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	columnType:  postgresColumnType,
	keyType:     "TEXT",
}

var sqliteDialect = dialect{
	name:        "sqlite",
	placeholder: func(int) string { return "?" },
	columnType:  sqliteColumnType,
	keyType:     "TEXT",
}

func postgresColumnType(col core.ColumnMetadata) string {
	switch col.Type {
	case core.TypeInteger:
		return "BIGINT"
	case core.TypeDecimal, core.TypeMoney:
		return "NUMERIC"
	case core.TypeBoolean:
		return "BOOLEAN"
	case core.TypeDateTime:
		if col.DateOnly {
			return "DATE"
		}
		return "TIMESTAMPTZ"
	case core.TypeOptionSet:
		return "INTEGER"
	case core.TypeMultiSelectOptionSet:
		return "INTEGER[]"
	default:
		return "TEXT"
	}
}

func sqliteColumnType(col core.ColumnMetadata) string {
	switch col.Type {
	case core.TypeInteger, core.TypeBoolean, core.TypeOptionSet:
		return "INTEGER"
	case core.TypeDecimal, core.TypeMoney:
		return "REAL"
	default:
		// dateTime as RFC 3339 text, multi-select as a JSON array
		return "TEXT"
	}
}

// quoteIdentifier quotes a SQL identifier to prevent injection.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteColumns quotes multiple column names.
func quoteColumns(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = quoteIdentifier(c)
	}
	return out
}

// resolveColumn returns the metadata for a pending field. Fields the entity
// does not declare are written as text to the snake_case column of the same name.
func resolveColumn(def core.EntityDefinition, name string) core.ColumnMetadata {
	if col, ok := def.Resolve(name); ok {
		return col
	}
	return core.ColumnMetadata{Name: name, Type: core.TypeText}
}

// sortedFieldNames returns field names in a stable order so generated SQL is deterministic.
func sortedFieldNames(fields map[string]core.Value) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// valueConverter turns a normalized value into a driver argument.
type valueConverter func(col core.ColumnMetadata, v core.Value) (any, error)

// buildUpdate builds the UPDATE statement for one record.
func buildUpdate(d dialect, def core.EntityDefinition, recordID string, fields map[string]core.Value, conv valueConverter) (string, []any, error) {
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("update %s %s: no fields", def.Info.Name, recordID)
	}

	names := sortedFieldNames(fields)
	sets := make([]string, len(names))
	args := make([]any, 0, len(names)+1)
	for i, name := range names {
		col := resolveColumn(def, name)
		arg, err := conv(col, fields[name])
		if err != nil {
			return "", nil, fmt.Errorf("column %s: %w", name, err)
		}
		sets[i] = fmt.Sprintf("%s = %s", quoteIdentifier(col.StorageColumn()), d.placeholder(i+1))
		args = append(args, arg)
	}
	args = append(args, recordID)

	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = %s",
		quoteIdentifier(def.TableName()),
		strings.Join(sets, ", "),
		quoteIdentifier(def.KeyColumn()),
		d.placeholder(len(names)+1),
	)
	return query, args, nil
}

// buildInsert builds the INSERT statement for one new record.
func buildInsert(d dialect, def core.EntityDefinition, recordID string, fields map[string]core.Value, conv valueConverter) (string, []any, error) {
	names := sortedFieldNames(fields)
	cols := make([]string, 0, len(names)+1)
	marks := make([]string, 0, len(names)+1)
	args := make([]any, 0, len(names)+1)

	cols = append(cols, quoteIdentifier(def.KeyColumn()))
	marks = append(marks, d.placeholder(1))
	args = append(args, recordID)

	for i, name := range names {
		col := resolveColumn(def, name)
		arg, err := conv(col, fields[name])
		if err != nil {
			return "", nil, fmt.Errorf("column %s: %w", name, err)
		}
		cols = append(cols, quoteIdentifier(col.StorageColumn()))
		marks = append(marks, d.placeholder(i+2))
		args = append(args, arg)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		quoteIdentifier(def.TableName()),
		strings.Join(cols, ", "),
		strings.Join(marks, ", "),
	)
	return query, args, nil
}

// buildSelect builds the paged SELECT for an entity, ordered by record id.
// The key column comes first, followed by the declared columns in order.
func buildSelect(d dialect, def core.EntityDefinition) string {
	cols := make([]string, 0, len(def.Columns)+1)
	cols = append(cols, def.KeyColumn())
	for _, c := range def.Columns {
		cols = append(cols, c.StorageColumn())
	}
	return fmt.Sprintf(
		"SELECT %s FROM %s ORDER BY %s LIMIT %s OFFSET %s",
		strings.Join(quoteColumns(cols), ", "),
		quoteIdentifier(def.TableName()),
		quoteIdentifier(def.KeyColumn()),
		d.placeholder(1),
		d.placeholder(2),
	)
}

// createTableSQL returns the DDL for an entity's table.
func createTableSQL(d dialect, def core.EntityDefinition) string {
	defs := make([]string, 0, len(def.Columns)+1)
	defs = append(defs, fmt.Sprintf("%s %s PRIMARY KEY", quoteIdentifier(def.KeyColumn()), d.keyType))
	for _, c := range def.Columns {
		defs = append(defs, fmt.Sprintf("%s %s", quoteIdentifier(c.StorageColumn()), d.columnType(c)))
	}
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		quoteIdentifier(def.TableName()),
		strings.Join(defs, ",\n\t"),
	)
}
