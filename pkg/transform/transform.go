// Package transform provides record mappers and filters and their
// composition into pipeline stages.
//
// Mappers derive a new record from each input record; filters decide whether
// a record is kept. Both may fail, and failures are reported as
// ErrorTypeTransformation attributed to the record number of the input.
// Mappers keep the record number of their input unless they exist to change
// it, such as Renumber.
package transform

import (
	"context"

	"github.com/ajitpratap0/recordflow/pkg/errors"
	"github.com/ajitpratap0/recordflow/pkg/record"
)

// Mapper derives a new record from r
type Mapper interface {
	Map(ctx context.Context, r record.Record) (record.Record, error)
}

// MapperFunc adapts a function to Mapper
type MapperFunc func(ctx context.Context, r record.Record) (record.Record, error)

// Map implements Mapper
func (f MapperFunc) Map(ctx context.Context, r record.Record) (record.Record, error) {
	return f(ctx, r)
}

// Filter decides whether r continues down the pipeline
type Filter interface {
	Keep(ctx context.Context, r record.Record) (bool, error)
}

// FilterFunc adapts a function to Filter
type FilterFunc func(ctx context.Context, r record.Record) (bool, error)

// Keep implements Filter
func (f FilterFunc) Keep(ctx context.Context, r record.Record) (bool, error) {
	return f(ctx, r)
}

// Predicate adapts an infallible function to Filter
func Predicate(fn func(r record.Record) bool) Filter {
	return FilterFunc(func(_ context.Context, r record.Record) (bool, error) {
		return fn(r), nil
	})
}

// Stage is one step of a chain: a named mapper or filter.
type Stage struct {
	Name   string
	mapper Mapper
	filter Filter
}

// Map wraps a mapper as a stage
func Map(name string, m Mapper) Stage {
	return Stage{Name: name, mapper: m}
}

// Where wraps a filter as a stage
func Where(name string, f Filter) Stage {
	return Stage{Name: name, filter: f}
}

// IsFilter reports whether the stage filters records
func (s Stage) IsFilter() bool {
	return s.filter != nil
}

// Apply runs the stage. keep is false when a filter dropped the record.
func (s Stage) Apply(ctx context.Context, r record.Record) (out record.Record, keep bool, err error) {
	if s.filter != nil {
		keep, err = s.filter.Keep(ctx, r)
		if err != nil {
			return record.Record{}, false, s.fail(err, r)
		}
		return r, keep, nil
	}
	if s.mapper == nil {
		return r, true, nil
	}
	out, err = s.mapper.Map(ctx, r)
	if err != nil {
		return record.Record{}, false, s.fail(err, r)
	}
	return out, true, nil
}

func (s Stage) fail(err error, r record.Record) error {
	if errors.IsType(err, errors.ErrorTypeCancelled) {
		return err
	}
	return errors.Wrap(err, errors.ErrorTypeTransformation, "stage "+s.Name+" failed").
		WithDetail("stage", s.Name).
		AtRecord(r.Number())
}

// Chain composes stages left to right.
type Chain struct {
	stages []Stage
}

// NewChain creates a chain of stages
func NewChain(stages ...Stage) *Chain {
	return &Chain{stages: append([]Stage(nil), stages...)}
}

// Len returns the number of stages
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.stages)
}

// Apply runs all stages in order. It stops at the first filter that drops
// the record or the first failure.
func (c *Chain) Apply(ctx context.Context, r record.Record) (record.Record, bool, error) {
	if c == nil {
		return r, true, nil
	}
	for _, s := range c.stages {
		var (
			keep bool
			err  error
		)
		r, keep, err = s.Apply(ctx, r)
		if err != nil || !keep {
			return record.Record{}, keep, err
		}
	}
	return r, true, nil
}

// Compose returns a mapper that applies mappers left to right
func Compose(mappers ...Mapper) Mapper {
	return MapperFunc(func(ctx context.Context, r record.Record) (record.Record, error) {
		var err error
		for _, m := range mappers {
			if r, err = m.Map(ctx, r); err != nil {
				return record.Record{}, err
			}
		}
		return r, nil
	})
}
