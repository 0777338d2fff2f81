// Package strings holds helpers for the identifier lists carried by requests.
package strings

import (
	"slices"
	"strings"
)

// NormalizeIDs trims each id, drops blanks and keeps the first occurrence of
// every value. A nil input stays nil so optional JSON fields round-trip.
func NormalizeIDs(ids []string) []string {
	if ids == nil {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}

// SortedUnique returns a sorted copy of ids without duplicates. The input is
// left untouched.
func SortedUnique(ids []string) []string {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
