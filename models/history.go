package models

import (
	"sort"
	"strconv"
)

// Indexed encodes an ordered history as the dense "0", "1", ... keyed map
// the document store holds.
func Indexed[T any](items []T) map[string]T {
	out := make(map[string]T, len(items))
	for i, item := range items {
		out[strconv.Itoa(i)] = item
	}
	return out
}

// FromIndexed decodes a string-indexed map back into an ordered slice.
// Numeric keys come first in numeric order; anything else follows sorted.
// A nil map stays nil.
func FromIndexed[T any](m map[string]T) []T {
	if m == nil {
		return nil
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return keys[i] < keys[j]
		}
	})

	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}
