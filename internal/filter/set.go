package filter

import (
	"sort"
	"strings"
)

// ParseSet splits a stored multi-select value. Empty members are dropped.
func ParseSet(raw string) []string {
	if raw == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// FormatSet is the canonical stored form: sorted, comma-joined, no duplicates.
func FormatSet(values []string) string {
	return strings.Join(ParseSet(strings.Join(values, ",")), ",")
}

// ToggleSet adds value to the stored set, or removes it if already present.
func ToggleSet(current, value string) string {
	set := ParseSet(current)
	out := set[:0:0]
	found := false
	for _, v := range set {
		if v == value {
			found = true
			continue
		}
		out = append(out, v)
	}
	if !found {
		out = append(out, value)
	}
	return FormatSet(out)
}

// Contains reports membership of value in a stored set.
func Contains(set []string, value string) bool {
	for _, v := range set {
		if v == value {
			return true
		}
	}
	return false
}
