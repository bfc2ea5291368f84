package transform

import (
	"context"
	"strings"
	"unicode"

	"github.com/ajitpratap0/recordflow/pkg/errors"
	"github.com/ajitpratap0/recordflow/pkg/record"
)

// Identity returns every record unchanged
func Identity() Mapper {
	return MapperFunc(func(_ context.Context, r record.Record) (record.Record, error) {
		return r, nil
	})
}

// SetCategory sets a fixed category. An empty category removes it.
func SetCategory(category string) Mapper {
	return MapperFunc(func(_ context.Context, r record.Record) (record.Record, error) {
		return r.WithCategory(category), nil
	})
}

// CategoryFromField sets the category to the value of field i
func CategoryFromField(i int) Mapper {
	return MapperFunc(func(_ context.Context, r record.Record) (record.Record, error) {
		v, err := r.Field(i)
		if err != nil {
			return record.Record{}, err
		}
		return r.WithCategory(v), nil
	})
}

// AddField appends a constant field
func AddField(value string) Mapper {
	return MapperFunc(func(_ context.Context, r record.Record) (record.Record, error) {
		return r.AppendField(value), nil
	})
}

// InsertField inserts a constant field at index i
func InsertField(i int, value string) Mapper {
	return MapperFunc(func(_ context.Context, r record.Record) (record.Record, error) {
		return r.InsertField(i, value)
	})
}

// RemoveField drops field i
func RemoveField(i int) Mapper {
	return MapperFunc(func(_ context.Context, r record.Record) (record.Record, error) {
		return r.RemoveField(i)
	})
}

// ReplaceField sets field i to a constant value
func ReplaceField(i int, value string) Mapper {
	return MapperFunc(func(_ context.Context, r record.Record) (record.Record, error) {
		return r.WithField(i, value)
	})
}

// MapField applies fn to the value of field i
func MapField(i int, fn func(string) string) Mapper {
	return MapperFunc(func(_ context.Context, r record.Record) (record.Record, error) {
		v, err := r.Field(i)
		if err != nil {
			return record.Record{}, err
		}
		return r.WithField(i, fn(v))
	})
}

// MapFields applies fn to every field
func MapFields(fn func(string) string) Mapper {
	return MapperFunc(func(_ context.Context, r record.Record) (record.Record, error) {
		fields := r.Fields()
		for i, f := range fields {
			fields[i] = fn(f)
		}
		return r.WithFields(fields), nil
	})
}

// Lookup replaces field i through table. Values missing from the table are
// kept, or fail the record when strict is set.
func Lookup(i int, table map[string]string, strict bool) Mapper {
	return MapperFunc(func(_ context.Context, r record.Record) (record.Record, error) {
		v, err := r.Field(i)
		if err != nil {
			return record.Record{}, err
		}
		mapped, ok := table[v]
		if !ok {
			if strict {
				return record.Record{}, errors.Newf(errors.ErrorTypeTransformation, "no lookup entry for %q", v).
					AtRecord(r.Number())
			}
			return r, nil
		}
		return r.WithField(i, mapped)
	})
}

// Reorder builds a record from the given field indices. Indices may repeat
// or leave fields out.
func Reorder(indices ...int) Mapper {
	return MapperFunc(func(_ context.Context, r record.Record) (record.Record, error) {
		fields := make([]string, len(indices))
		for n, i := range indices {
			v, err := r.Field(i)
			if err != nil {
				return record.Record{}, err
			}
			fields[n] = v
		}
		return r.WithFields(fields), nil
	})
}

// Renumber assigns consecutive record numbers starting at start. It counts
// every record it sees and must not be shared between runs.
type Renumber struct {
	next uint64
}

// NewRenumber creates a renumbering mapper
func NewRenumber(start uint64) *Renumber {
	if start == 0 {
		start = 1
	}
	return &Renumber{next: start}
}

// Map implements Mapper
func (m *Renumber) Map(_ context.Context, r record.Record) (record.Record, error) {
	out := r.WithNumber(m.next)
	m.next++
	return out, nil
}

var stringFuncs = map[string]func(string) string{
	"upper":      strings.ToUpper,
	"lower":      strings.ToLower,
	"trim":       strings.TrimSpace,
	"trim-left":  func(s string) string { return strings.TrimLeftFunc(s, unicode.IsSpace) },
	"trim-right": func(s string) string { return strings.TrimRightFunc(s, unicode.IsSpace) },
	"title": func(s string) string {
		runes := []rune(strings.ToLower(s))
		start := true
		for i, r := range runes {
			if start && unicode.IsLetter(r) {
				runes[i] = unicode.ToTitle(r)
			}
			start = unicode.IsSpace(r)
		}
		return string(runes)
	},
	"reverse": func(s string) string {
		runes := []rune(s)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return string(runes)
	},
}

// StringFunc returns a named string operation: upper, lower, trim,
// trim-left, trim-right, title or reverse.
func StringFunc(name string) (func(string) string, bool) {
	fn, ok := stringFuncs[name]
	return fn, ok
}
