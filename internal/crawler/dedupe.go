package crawler

import "strings"

const dedupeKeyRunes = 100

// DedupeKey is the comparison key for near-duplicate titles: the first 100
// runes of the trimmed, lowercased title.
func DedupeKey(title string) string {
	key := []rune(strings.ToLower(strings.TrimSpace(title)))
	if len(key) > dedupeKeyRunes {
		key = key[:dedupeKeyRunes]
	}
	return string(key)
}

// Dedupe keeps the first record for every DedupeKey, preserving input order.
func Dedupe(records []Record) []Record {
	seen := make(map[string]struct{}, len(records))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		key := DedupeKey(r.Title)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}
