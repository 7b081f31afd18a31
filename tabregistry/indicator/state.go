// Package indicator renders the toolbar indicator for a tab: a glyph tinted
// by state with an optional count badge, at every requested pixel size.
//
// Rendering is a pure function of (state, label) and is cached on that pair.
package indicator

import "strconv"

// State is the indicator's color state.
type State string

const (
	StateEnabled  State = "enabled"
	StateDisabled State = "disabled"
)

// StateFor derives the state from a count.
func StateFor(count int) State {
	if count > 0 {
		return StateEnabled
	}
	return StateDisabled
}

// DefaultCap is the largest count shown verbatim.
const DefaultCap = 99

// Label formats a count for display: empty for zero, the decimal value up
// to cap, and "<cap>+" above it. The stored count is never affected.
func Label(count, cap int) string {
	if cap <= 0 {
		cap = DefaultCap
	}
	switch {
	case count <= 0:
		return ""
	case count > cap:
		return strconv.Itoa(cap) + "+"
	default:
		return strconv.Itoa(count)
	}
}
