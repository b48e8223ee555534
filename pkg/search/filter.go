package search

import (
	"strconv"
	"strings"

	"go.trai.ch/zerr"
)

// FilterKind is the comparison a Filter applies.
type FilterKind int

const (
	// KindEquals matches a categorical field against a set of values.
	KindEquals FilterKind = iota + 1
	// KindRange matches a numeric field against inclusive bounds.
	KindRange
)

func (k FilterKind) String() string {
	switch k {
	case KindEquals:
		return "equals"
	case KindRange:
		return "range"
	default:
		return "unknown"
	}
}

// Filter is one post-filter on a search result. Build filters with Equals,
// Range, AtLeast and AtMost.
type Filter struct {
	Field  string
	Kind   FilterKind
	Values []string
	Min    *float64
	Max    *float64
}

// Equals accepts records whose field equals one of values, ignoring case.
func Equals(field string, values ...string) Filter {
	return Filter{Field: field, Kind: KindEquals, Values: values}
}

// Range accepts records whose numeric field lies in [min, max].
func Range(field string, min, max float64) Filter {
	return Filter{Field: field, Kind: KindRange, Min: &min, Max: &max}
}

func AtLeast(field string, min float64) Filter {
	return Filter{Field: field, Kind: KindRange, Min: &min}
}

func AtMost(field string, max float64) Filter {
	return Filter{Field: field, Kind: KindRange, Max: &max}
}

func (f Filter) validate(schema Schema) error {
	switch f.Kind {
	case KindEquals:
		if !schema.isCategorical(f.Field) {
			return zerr.With(ErrUnknownField, "field", f.Field)
		}
		if len(f.Values) == 0 {
			return zerr.With(zerr.With(ErrInvalidFilter, "field", f.Field), "reason", "no values")
		}
	case KindRange:
		if !schema.isNumeric(f.Field) {
			return zerr.With(ErrUnknownField, "field", f.Field)
		}
		if f.Min == nil && f.Max == nil {
			return zerr.With(zerr.With(ErrInvalidFilter, "field", f.Field), "reason", "no bounds")
		}
		if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
			return zerr.With(zerr.With(ErrInvalidFilter, "field", f.Field), "reason",
				strconv.FormatFloat(*f.Min, 'g', -1, 64)+" > "+strconv.FormatFloat(*f.Max, 'g', -1, 64))
		}
	default:
		return zerr.With(zerr.With(ErrInvalidFilter, "field", f.Field), "kind", f.Kind.String())
	}
	return nil
}

func (f Filter) match(r Record) bool {
	switch f.Kind {
	case KindEquals:
		v := normalize(r.Text(f.Field))
		for _, want := range f.Values {
			if v == normalize(want) {
				return true
			}
		}
		return false
	case KindRange:
		v, ok := r.Number(f.Field)
		if !ok {
			return false
		}
		if f.Min != nil && v < *f.Min {
			return false
		}
		if f.Max != nil && v > *f.Max {
			return false
		}
		return true
	}
	return false
}

// FilterSet is a validated conjunction of filters. The zero FilterSet
// accepts every record.
type FilterSet struct {
	filters []Filter
}

// NewFilterSet checks each filter against schema: Equals needs a categorical
// field, ranges need a numeric one.
func NewFilterSet(schema Schema, filters ...Filter) (FilterSet, error) {
	for _, f := range filters {
		if err := f.validate(schema); err != nil {
			return FilterSet{}, err
		}
	}
	return FilterSet{filters: filters}, nil
}

// Match reports whether r passes every filter.
func (fs FilterSet) Match(r Record) bool {
	for _, f := range fs.filters {
		if !f.match(r) {
			return false
		}
	}
	return true
}

func (fs FilterSet) Len() int {
	return len(fs.filters)
}

func (fs FilterSet) String() string {
	parts := make([]string, len(fs.filters))
	for i, f := range fs.filters {
		parts[i] = f.Field + ":" + f.Kind.String()
	}
	return strings.Join(parts, ",")
}
