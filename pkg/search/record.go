package search

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"go.trai.ch/zerr"
)

// Record is anything the indexer can search. Text returns "" for fields the
// record does not have.
type Record interface {
	RecordID() string
	Text(field string) string
	Number(field string) (float64, bool)
}

// Schema names the fields of a record collection and how each is used.
type Schema struct {
	// TextFields are indexed by full value and by word.
	TextFields []string
	// Composites are groups of fields indexed as one space-joined key, such as
	// {"make", "model"} for "honda civic".
	Composites [][]string
	// Categorical fields can be filtered with Equals.
	Categorical []string
	// Numeric fields can be filtered with Range, AtLeast and AtMost.
	Numeric []string
}

func (s Schema) Validate() error {
	if len(s.TextFields) == 0 {
		return ErrEmptySchema
	}
	for _, group := range s.Composites {
		if len(group) < 2 {
			return zerr.With(ErrInvalidSchema, "composite", strings.Join(group, "+"))
		}
		for _, f := range group {
			if f == "" {
				return zerr.With(ErrInvalidSchema, "composite", strings.Join(group, "+"))
			}
		}
	}
	return nil
}

func (s Schema) isCategorical(field string) bool {
	return contains(s.Categorical, field)
}

func (s Schema) isNumeric(field string) bool {
	return contains(s.Numeric, field)
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// Doc is a map-backed Record.
type Doc struct {
	ID      string
	Fields  map[string]string
	Numbers map[string]float64
}

func (d Doc) RecordID() string { return d.ID }

func (d Doc) Text(field string) string { return d.Fields[field] }

func (d Doc) Number(field string) (float64, bool) {
	v, ok := d.Numbers[field]
	return v, ok
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// keys derives the search keys of r: each full text value, each word of at
// least two characters, and each composite. Keys are lowercase and unique.
func (s Schema) keys(r Record) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(k string) {
		if k == "" {
			return
		}
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}

	for _, field := range s.TextFields {
		v := normalize(r.Text(field))
		add(v)
		for _, w := range words(v) {
			add(w)
		}
	}

	for _, group := range s.Composites {
		parts := make([]string, 0, len(group))
		for _, field := range group {
			if v := normalize(r.Text(field)); v != "" {
				parts = append(parts, v)
			}
		}
		if len(parts) > 1 {
			add(strings.Join(parts, " "))
		}
	}
	return out
}

func words(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, w := range fields {
		if utf8.RuneCountInString(w) >= 2 {
			out = append(out, w)
		}
	}
	return out
}
