package utils

import "strings"

// UnionStrings appends the values of add that are not yet present, keeping
// the order of first appearance. Duplicates inside either input collapse.
func UnionStrings(base []string, add []string) []string {
	seen := make(map[string]struct{}, len(base)+len(add))
	result := make([]string, 0, len(base)+len(add))
	for _, list := range [][]string{base, add} {
		for _, v := range list {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			result = append(result, v)
		}
	}
	return result
}

// SplitAndTrim splits on sep, trims whitespace around each token and drops
// empty tokens.
func SplitAndTrim(str, sep string) []string {
	parts := strings.Split(str, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
