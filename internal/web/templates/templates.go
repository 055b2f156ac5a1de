// Package templates holds the HTML partials the grid swaps in over HTMX.
//
// Components are written in partials.templ; run `templ generate` after
// editing it.
package templates

import "fmt"

// badgeModifier picks the badge style for the control state.
func badgeModifier(pending int, saving bool) string {
	switch {
	case saving:
		return "badge-saving"
	case pending == 0:
		return "badge-clean"
	default:
		return "badge-dirty"
	}
}

func badgeText(pending, cells int, saving bool) string {
	switch {
	case saving:
		return "Saving…"
	case pending == 0:
		return "All changes saved"
	default:
		return fmt.Sprintf("%d unsaved %s (%d %s)",
			pending, plural(pending, "record", "records"),
			cells, plural(cells, "cell", "cells"))
	}
}

func badgeURL(controlID string) string {
	return "/api/controls/" + controlID + "/badge"
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
