package index

import "strings"

// ExpandKeywordQuery rewrites a query so nearest-neighbor search leans
// toward its literal terms: every word is repeated with an emphasis marker.
// Both index backends share this rewrite so keyword search behaves the same
// regardless of storage.
func ExpandKeywordQuery(query string) string {
	words := strings.Fields(strings.ToLower(query))
	expanded := make([]string, 0, len(words)*2)
	expanded = append(expanded, words...)
	for _, w := range words {
		expanded = append(expanded, "important: "+w)
	}
	return strings.Join(expanded, " ")
}
