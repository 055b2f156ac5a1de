package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/gridedit/internal/core"
	"github.com/google/uuid"
)

// seedEpoch anchors generated dateTime values so seeds are reproducible.
var seedEpoch = time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)

// Seed inserts rowsPerEntity demo records into every registered entity whose
// table is empty. It returns the number of records inserted.
func Seed(ctx context.Context, s Store, rowsPerEntity int) (int, error) {
	if rowsPerEntity <= 0 {
		return 0, nil
	}

	inserted := 0
	for _, def := range core.All() {
		existing, err := s.ListRecords(ctx, def.Info.Name, 1, 0)
		if err != nil {
			return inserted, fmt.Errorf("seed %s: %w", def.Info.Name, err)
		}
		if len(existing) > 0 {
			slog.Debug("seed skipped, table not empty", "entity", def.Info.Name)
			continue
		}

		for i := 0; i < rowsPerEntity; i++ {
			if err := s.InsertRecord(ctx, def.Info.Name, uuid.NewString(), seedFields(def, i)); err != nil {
				return inserted, fmt.Errorf("seed %s: %w", def.Info.Name, err)
			}
			inserted++
		}
		slog.Info("seeded entity", "entity", def.Info.Name, "rows", rowsPerEntity)
	}
	return inserted, nil
}

// seedFields generates the i-th demo record of def.
func seedFields(def core.EntityDefinition, i int) map[string]core.Value {
	fields := make(map[string]core.Value, len(def.Columns))
	for _, col := range def.Columns {
		if v, ok := seedValue(def, col, i); ok {
			fields[col.Name] = v
		}
	}
	return fields
}

func seedValue(def core.EntityDefinition, col core.ColumnMetadata, i int) (core.Value, bool) {
	switch col.Type {
	case core.TypeText:
		return core.TextValue(fmt.Sprintf("%s %s %d", def.Info.Label, col.Name, i+1)), true
	case core.TypeInteger:
		return core.IntegerValue(int64(clamp(col, float64((i+1)*10)))), true
	case core.TypeDecimal, core.TypeMoney:
		return core.DecimalValue(col.Type, clamp(col, float64(i+1)*1250.5)), true
	case core.TypeBoolean:
		return core.BooleanValue(i%2 == 0), true
	case core.TypeDateTime:
		t := seedEpoch.AddDate(0, 0, i*7)
		if col.DateOnly {
			t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		}
		return core.DateTimeValue(t), true
	case core.TypeOptionSet:
		if len(col.Options) == 0 {
			return core.Value{}, false
		}
		return core.OptionValue(col.Options[i%len(col.Options)].Code), true
	case core.TypeMultiSelectOptionSet:
		if len(col.Options) == 0 {
			return core.Value{}, false
		}
		n := i%len(col.Options) + 1
		codes := make([]int, n)
		for j := range codes {
			codes[j] = col.Options[j].Code
		}
		return core.MultiOptionValue(codes), true
	default:
		// Lookups and opaque columns are left empty
		return core.Value{}, false
	}
}

// clamp keeps a generated number inside the column's declared bounds.
func clamp(col core.ColumnMetadata, n float64) float64 {
	if col.MaxValue != nil && n > *col.MaxValue {
		n = *col.MaxValue
	}
	if col.MinValue != nil && n < *col.MinValue {
		n = *col.MinValue
	}
	return n
}
