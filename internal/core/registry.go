package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	registry   = make(map[string]EntityDefinition)
	registryMu sync.RWMutex
)

// EntityInfo contains display and storage information about an entity.
type EntityInfo struct {
	Name       string `json:"name"`  // Unique logical name: "account"
	Label      string `json:"label"` // Display name: "Accounts"
	Table      string `json:"-"`     // Storage table (defaults to Name)
	PrimaryKey string `json:"-"`     // Storage column holding the record id (defaults to "id")
}

// EntityDefinition is the host-supplied metadata for one editable entity.
type EntityDefinition struct {
	Info    EntityInfo       `json:"info"`
	Columns []ColumnMetadata `json:"columns"`
}

// TableName returns the storage table for the entity.
func (d EntityDefinition) TableName() string {
	if d.Info.Table != "" {
		return d.Info.Table
	}
	return toDBColumnName(d.Info.Name)
}

// KeyColumn returns the storage column holding record ids.
func (d EntityDefinition) KeyColumn() string {
	if d.Info.PrimaryKey != "" {
		return d.Info.PrimaryKey
	}
	return "id"
}

// Resolve implements ColumnResolver with a case-insensitive name match.
func (d EntityDefinition) Resolve(column string) (ColumnMetadata, bool) {
	for _, c := range d.Columns {
		if strings.EqualFold(c.Name, column) {
			return c, true
		}
	}
	return ColumnMetadata{}, false
}

// Register adds an entity definition to the registry.
// Panics if an entity with the same name is already registered.
func Register(def EntityDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Info.Name]; exists {
		panic(fmt.Sprintf("entity already registered: %s", def.Info.Name))
	}
	if def.Info.Label == "" {
		def.Info.Label = def.Info.Name
	}

	registry[def.Info.Name] = def
}

// Get returns an entity definition by name.
func Get(name string) (EntityDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[name]
	return def, ok
}

// All returns all registered entity definitions sorted by name.
func All() []EntityDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]EntityDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Info.Name < result[j].Info.Name
	})

	return result
}

// EntityCount returns the number of registered entities.
func EntityCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered entities.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]EntityDefinition)
}
