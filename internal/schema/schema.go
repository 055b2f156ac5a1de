// Package schema registers the editable entities with the core registry.
// Import this package to ensure all entities are registered.
//
// Each file uses init() to register its entities.
package schema

import "github.com/JonMunkholm/gridedit/internal/core"

func bound(f float64) *float64 { return &f }

// twoState is the option table of yes/no columns rendered as toggles.
var twoState = []core.Option{
	{Code: 0, Label: "No"},
	{Code: 1, Label: "Yes"},
}

// Names returns the names of every registered entity.
func Names() []string {
	defs := core.All()
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Info.Name
	}
	return names
}
