package aggregator

import (
	"sort"
	"strings"
)

// dateKey strips separators so row keys (YYYY-MM-DD or YYYY-MM) compare
// against the YYYYMMDD bounds lexicographically.
func dateKey(s string) string {
	return strings.ReplaceAll(s, "-", "")
}

// applyRange keeps rows whose key falls inside the inclusive since/until
// bounds of opts.
func applyRange[T any](rows []T, opts Options, key func(T) string) []T {
	if opts.Since == "" && opts.Until == "" {
		return rows
	}

	filtered := rows[:0]
	for _, row := range rows {
		k := dateKey(key(row))
		if opts.Since != "" && k < opts.Since {
			continue
		}
		if opts.Until != "" && k > opts.Until {
			continue
		}
		filtered = append(filtered, row)
	}
	return filtered
}

// sortRows orders rows by key in the given direction.
func sortRows[T any](rows []T, order SortOrder, key func(T) string) {
	sort.SliceStable(rows, func(i, j int) bool {
		if order == OrderAsc {
			return key(rows[i]) < key(rows[j])
		}
		return key(rows[i]) > key(rows[j])
	})
}
