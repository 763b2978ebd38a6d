package catalog

import (
	"sort"
	"strings"
)

// PadLineCode zero pads a line code to the 3 digits used as key in
// the line table.
func PadLineCode(code string) string {
	code = strings.TrimSpace(code)
	if len(code) >= 3 {
		return code
	}
	return strings.Repeat("0", 3-len(code)) + code
}

// Orders stop IDs numerically, assuming they are decimal strings
// without leading zeros.
func lessStopID(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

func sortStopRows(stops []*StopRow) {
	sort.Slice(stops, func(i, j int) bool {
		return lessStopID(stops[i].ID, stops[j].ID)
	})
}
