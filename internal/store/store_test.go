package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/JonMunkholm/gridedit/internal/core"
)

func ptr(f float64) *float64 { return &f }

// ticketDefinition covers every column type the stores map.
var ticketDefinition = core.EntityDefinition{
	Info: core.EntityInfo{Name: "ticket", Label: "Tickets"},
	Columns: []core.ColumnMetadata{
		{Name: "Subject", Type: core.TypeText},
		{Name: "Priority", Type: core.TypeInteger, MinValue: ptr(1), MaxValue: ptr(5)},
		{Name: "Estimate", Type: core.TypeDecimal, Precision: 2},
		{Name: "Budget", Type: core.TypeMoney},
		{Name: "Urgent", Type: core.TypeBoolean},
		{Name: "Due Date", Type: core.TypeDateTime, DateOnly: true},
		{Name: "Opened At", Type: core.TypeDateTime},
		{Name: "Status", Type: core.TypeOptionSet, Options: []core.Option{{Code: 1, Label: "New"}, {Code: 2, Label: "Closed"}}},
		{Name: "Tags", Type: core.TypeMultiSelectOptionSet, Options: []core.Option{{Code: 1, Label: "bug"}, {Code: 2, Label: "ui"}, {Code: 3, Label: "api"}}},
		{Name: "Owner", Type: core.TypeLookup},
	},
}

func TestMain(m *testing.M) {
	core.Clear()
	core.Register(ticketDefinition)
	os.Exit(m.Run())
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	for _, driver := range []string{"", DriverMemory} {
		s, err := Open(ctx, Options{Driver: driver})
		if err != nil {
			t.Fatalf("Open(%q) error = %v", driver, err)
		}
		if _, ok := s.(*Memory); !ok {
			t.Errorf("Open(%q) = %T, want *Memory", driver, s)
		}
	}

	s, err := Open(ctx, Options{Driver: DriverSQLite, URL: ":memory:"})
	if err != nil {
		t.Fatalf("Open(sqlite) error = %v", err)
	}
	defer s.Close()
	if _, ok := s.(*SQLite); !ok {
		t.Errorf("Open(sqlite) = %T, want *SQLite", s)
	}

	if _, err := Open(ctx, Options{Driver: "oracle"}); err == nil {
		t.Error("Open(oracle) expected error")
	}
}

func TestDefinition_UnknownEntity(t *testing.T) {
	_, err := definition("nope")
	if !errors.Is(err, core.ErrUnknownEntity) {
		t.Errorf("definition(nope) error = %v, want ErrUnknownEntity", err)
	}
}
