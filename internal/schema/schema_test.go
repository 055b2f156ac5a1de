package schema

import (
	"testing"

	"github.com/JonMunkholm/gridedit/internal/core"
)

func TestEntitiesRegistered(t *testing.T) {
	names := Names()
	want := []string{"account", "opportunity"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestDefinitionsAreConsistent(t *testing.T) {
	for _, def := range core.All() {
		t.Run(def.Info.Name, func(t *testing.T) {
			seen := make(map[string]bool)
			for _, col := range def.Columns {
				storage := col.StorageColumn()
				if seen[storage] {
					t.Errorf("duplicate storage column %q", storage)
				}
				seen[storage] = true

				switch col.Type {
				case core.TypeOptionSet, core.TypeMultiSelectOptionSet:
					if len(col.Options) == 0 {
						t.Errorf("column %q has no options", col.Name)
					}
				}
				if col.MinValue != nil && col.MaxValue != nil && *col.MinValue > *col.MaxValue {
					t.Errorf("column %q has min > max", col.Name)
				}
			}
		})
	}
}

func TestReadOnlyColumnsAreUnsupported(t *testing.T) {
	def, ok := core.Get("opportunity")
	if !ok {
		t.Fatal("opportunity not registered")
	}
	col, ok := def.Resolve("created on")
	if !ok {
		t.Fatal("Created On not resolved")
	}

	v, err := core.Normalize(core.StringRaw("2025-01-01T00:00:00Z"), col)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if !v.IsUnsupported() {
		t.Errorf("Normalize() = %v, want unsupported for read-only column", v)
	}
}

func TestTwoStateBoolean(t *testing.T) {
	def, _ := core.Get("account")
	col, _ := def.Resolve("Active")

	v, err := core.Normalize(core.StringRaw("Yes"), col)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if !v.Bool() {
		t.Error("Normalize(Yes) = false, want true")
	}
}
