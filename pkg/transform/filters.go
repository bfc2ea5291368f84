package transform

import (
	"context"
	"regexp"

	"github.com/ajitpratap0/recordflow/pkg/record"
)

// CategoryIs keeps records whose category is one of categories
func CategoryIs(categories ...string) Filter {
	set := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		set[c] = struct{}{}
	}
	return Predicate(func(r record.Record) bool {
		c, ok := r.Category()
		if !ok {
			return false
		}
		_, found := set[c]
		return found
	})
}

// HasCategory keeps records that carry a category
func HasCategory() Filter {
	return Predicate(record.Record.HasCategory)
}

// NumberBetween keeps records numbered from to upto inclusive. upto 0 means
// no upper bound.
func NumberBetween(from, upto uint64) Filter {
	return Predicate(func(r record.Record) bool {
		n := r.Number()
		return n >= from && (upto == 0 || n <= upto)
	})
}

// ArityIs keeps records with exactly n fields
func ArityIs(n int) Filter {
	return Predicate(func(r record.Record) bool {
		return r.Arity() == n
	})
}

// FieldEquals keeps records whose field i equals value
func FieldEquals(i int, value string) Filter {
	return FieldMatchesFunc(i, func(v string) bool { return v == value })
}

// FieldMatches keeps records whose field i matches re. Records without
// field i are dropped.
func FieldMatches(i int, re *regexp.Regexp) Filter {
	return FieldMatchesFunc(i, re.MatchString)
}

// FieldMatchesFunc keeps records whose field i satisfies fn
func FieldMatchesFunc(i int, fn func(string) bool) Filter {
	return Predicate(func(r record.Record) bool {
		if i < 0 || i >= r.Arity() {
			return false
		}
		return fn(r.FieldOr(i, ""))
	})
}

// Distinct keeps the first of structurally equal records. It remembers
// every record it kept and must not be shared between runs.
type Distinct struct {
	seen map[uint64][]record.Record
}

// NewDistinct creates a distinct filter
func NewDistinct() *Distinct {
	return &Distinct{seen: make(map[uint64][]record.Record)}
}

// Keep implements Filter
func (d *Distinct) Keep(_ context.Context, r record.Record) (bool, error) {
	h := r.Hash()
	for _, prev := range d.seen[h] {
		if prev.Equal(r) {
			return false, nil
		}
	}
	d.seen[h] = append(d.seen[h], r)
	return true, nil
}

// Not inverts f
func Not(f Filter) Filter {
	return FilterFunc(func(ctx context.Context, r record.Record) (bool, error) {
		keep, err := f.Keep(ctx, r)
		return !keep && err == nil, err
	})
}

// And keeps records every filter keeps, evaluating left to right
func And(filters ...Filter) Filter {
	return FilterFunc(func(ctx context.Context, r record.Record) (bool, error) {
		for _, f := range filters {
			keep, err := f.Keep(ctx, r)
			if err != nil || !keep {
				return false, err
			}
		}
		return true, nil
	})
}

// Or keeps records any filter keeps, evaluating left to right
func Or(filters ...Filter) Filter {
	return FilterFunc(func(ctx context.Context, r record.Record) (bool, error) {
		for _, f := range filters {
			keep, err := f.Keep(ctx, r)
			if err != nil || keep {
				return keep && err == nil, err
			}
		}
		return false, nil
	})
}
