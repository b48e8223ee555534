package search

import "strings"

// Suggestions returns up to limit distinct text field values containing
// query, ignoring case, in the order they are first found in records. A
// non-positive limit uses DefaultSuggestions.
func (ix *Indexer[R]) Suggestions(query string, records []R, limit int) []string {
	q := normalize(query)
	if q == "" {
		return nil
	}
	if limit <= 0 {
		limit = DefaultSuggestions
	}

	seen := make(map[string]struct{})
	var out []string
	for _, r := range records {
		for _, field := range ix.schema.TextFields {
			v := strings.TrimSpace(r.Text(field))
			n := strings.ToLower(v)
			if n == "" || !strings.Contains(n, q) {
				continue
			}
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, v)
			if len(out) == limit {
				return out
			}
		}
	}
	return out
}
