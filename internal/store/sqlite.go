package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/JonMunkholm/gridedit/internal/core"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

const sqliteDateLayout = "2006-01-02"

// SQLite stores records in a single SQLite database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
// ":memory:" opens a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		path = "gridedit.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: an in-memory database is per connection, and SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	slog.Info("connected to database", "driver", DriverSQLite, "path", path)
	return &SQLite{db: db}, nil
}

// UpdateRecord implements core.RecordUpdater.
func (s *SQLite) UpdateRecord(ctx context.Context, entity, recordID string, fields map[string]core.Value) error {
	def, err := definition(entity)
	if err != nil {
		return err
	}

	query, args, err := buildUpdate(sqliteDialect, def, recordID, fields, toSQLiteValue)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", entity, recordID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s %s: %w", entity, recordID, err)
	}
	if n == 0 {
		return notFound(entity, recordID)
	}
	return nil
}

// InsertRecord adds a new record.
func (s *SQLite) InsertRecord(ctx context.Context, entity, recordID string, fields map[string]core.Value) error {
	def, err := definition(entity)
	if err != nil {
		return err
	}

	query, args, err := buildInsert(sqliteDialect, def, recordID, fields, toSQLiteValue)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s %s: %w", entity, recordID, err)
	}
	return nil
}

// ListRecords implements core.RecordLister.
func (s *SQLite) ListRecords(ctx context.Context, entity string, limit, offset int) ([]core.Record, error) {
	def, err := definition(entity)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, buildSelect(sqliteDialect, def), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []core.Record
	for rows.Next() {
		var id string
		values := make([]any, len(def.Columns))
		dest := make([]any, len(def.Columns)+1)
		dest[0] = &id
		for i := range values {
			dest[i+1] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		rec := core.Record{ID: id, Fields: make(map[string]any, len(def.Columns))}
		for i, col := range def.Columns {
			rec.Fields[col.Name] = fromSQLiteValue(col, values[i])
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return records, nil
}

// EnsureSchema creates the table of every registered entity.
func (s *SQLite) EnsureSchema(ctx context.Context) error {
	for _, def := range core.All() {
		if _, err := s.db.ExecContext(ctx, createTableSQL(sqliteDialect, def)); err != nil {
			return fmt.Errorf("create table %s: %w", def.TableName(), err)
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// toSQLiteValue converts a normalized value into a driver argument.
func toSQLiteValue(col core.ColumnMetadata, v core.Value) (any, error) {
	if v.IsUnsupported() {
		return nil, core.ErrUnsupportedColumn
	}
	if v.IsNull() {
		return nil, nil
	}

	switch v.Type() {
	case core.TypeText:
		return v.Text(), nil
	case core.TypeInteger, core.TypeOptionSet:
		return v.Int(), nil
	case core.TypeDecimal, core.TypeMoney:
		return v.Float(), nil
	case core.TypeBoolean:
		if v.Bool() {
			return int64(1), nil
		}
		return int64(0), nil
	case core.TypeDateTime:
		if col.DateOnly {
			return v.Time().Format(sqliteDateLayout), nil
		}
		return v.Time().Format(time.RFC3339Nano), nil
	case core.TypeMultiSelectOptionSet:
		b, err := json.Marshal(v.Codes())
		if err != nil {
			return nil, err
		}
		return string(b), nil
	default:
		return nil, fmt.Errorf("no storage mapping for %s", v.Type())
	}
}

// fromSQLiteValue decodes a stored value back to the column's Go type.
func fromSQLiteValue(col core.ColumnMetadata, v any) any {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if v == nil {
		return nil
	}

	switch col.Type {
	case core.TypeBoolean:
		if n, ok := v.(int64); ok {
			return n != 0
		}
	case core.TypeDateTime:
		if s, ok := v.(string); ok {
			layout := time.RFC3339Nano
			if col.DateOnly {
				layout = sqliteDateLayout
			}
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
	case core.TypeMultiSelectOptionSet:
		if s, ok := v.(string); ok {
			var codes []int
			if err := json.Unmarshal([]byte(s), &codes); err == nil {
				return codes
			}
		}
	case core.TypeDecimal, core.TypeMoney:
		if n, ok := v.(int64); ok {
			return float64(n)
		}
	}
	return v
}
