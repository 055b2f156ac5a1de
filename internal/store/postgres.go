package store

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/JonMunkholm/gridedit/internal/core"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores records in PostgreSQL tables through a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects a pool and verifies the connection.
func OpenPostgres(ctx context.Context, opts Options) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = int32(opts.MinConns)
	}
	if opts.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(opts.URL); err == nil {
		slog.Info("connected to database", "driver", DriverPostgres, "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database", "driver", DriverPostgres)
	}

	return NewPostgres(pool), nil
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// UpdateRecord implements core.RecordUpdater.
func (p *Postgres) UpdateRecord(ctx context.Context, entity, recordID string, fields map[string]core.Value) error {
	def, err := definition(entity)
	if err != nil {
		return err
	}

	query, args, err := buildUpdate(postgresDialect, def, recordID, fields, toPgValue)
	if err != nil {
		return err
	}

	tag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", entity, recordID, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(entity, recordID)
	}
	return nil
}

// InsertRecord adds a new record.
func (p *Postgres) InsertRecord(ctx context.Context, entity, recordID string, fields map[string]core.Value) error {
	def, err := definition(entity)
	if err != nil {
		return err
	}

	query, args, err := buildInsert(postgresDialect, def, recordID, fields, toPgValue)
	if err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s %s: %w", entity, recordID, err)
	}
	return nil
}

// ListRecords implements core.RecordLister.
func (p *Postgres) ListRecords(ctx context.Context, entity string, limit, offset int) ([]core.Record, error) {
	def, err := definition(entity)
	if err != nil {
		return nil, err
	}

	rows, err := p.pool.Query(ctx, buildSelect(postgresDialect, def), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	var records []core.Record
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}

		rec := core.Record{
			ID:     fmt.Sprintf("%v", values[0]),
			Fields: make(map[string]any, len(def.Columns)),
		}
		for i, col := range def.Columns {
			rec.Fields[col.Name] = fromPgValue(values[i+1])
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return records, nil
}

// EnsureSchema creates the table of every registered entity.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	for _, def := range core.All() {
		if _, err := p.pool.Exec(ctx, createTableSQL(postgresDialect, def)); err != nil {
			return fmt.Errorf("create table %s: %w", def.TableName(), err)
		}
	}
	return nil
}

// Close closes the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// toPgValue converts a normalized value into the pgtype the column stores.
func toPgValue(col core.ColumnMetadata, v core.Value) (any, error) {
	if v.IsUnsupported() {
		return nil, core.ErrUnsupportedColumn
	}
	valid := !v.IsNull()

	switch v.Type() {
	case core.TypeText:
		return pgtype.Text{String: v.Text(), Valid: valid}, nil
	case core.TypeInteger:
		return pgtype.Int8{Int64: v.Int(), Valid: valid}, nil
	case core.TypeDecimal, core.TypeMoney:
		if !valid {
			return pgtype.Numeric{Valid: false}, nil
		}
		var n pgtype.Numeric
		if err := n.Scan(strconv.FormatFloat(v.Float(), 'f', -1, 64)); err != nil {
			return nil, fmt.Errorf("convert numeric: %w", err)
		}
		return n, nil
	case core.TypeBoolean:
		return pgtype.Bool{Bool: v.Bool(), Valid: valid}, nil
	case core.TypeDateTime:
		if col.DateOnly {
			return pgtype.Date{Time: v.Time(), Valid: valid}, nil
		}
		return pgtype.Timestamptz{Time: v.Time(), Valid: valid}, nil
	case core.TypeOptionSet:
		return pgtype.Int4{Int32: int32(v.Int()), Valid: valid}, nil
	case core.TypeMultiSelectOptionSet:
		if !valid {
			return []int32(nil), nil
		}
		codes := v.Codes()
		out := make([]int32, len(codes))
		for i, c := range codes {
			out[i] = int32(c)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("no storage mapping for %s", v.Type())
	}
}

// fromPgValue turns values decoded by pgx into JSON-friendly Go values.
func fromPgValue(v any) any {
	switch x := v.(type) {
	case pgtype.Numeric:
		if !x.Valid {
			return nil
		}
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = fromPgValue(item)
		}
		return out
	default:
		return v
	}
}
