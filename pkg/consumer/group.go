package consumer

import (
	"context"
	"strings"

	"go.uber.org/multierr"

	"github.com/ajitpratap0/recordflow/pkg/errors"
	"github.com/ajitpratap0/recordflow/pkg/record"
)

// Group writes every record to all members.
type Group struct {
	members []Consumer
	opened  []Consumer
}

var _ Consumer = (*Group)(nil)

// NewGroup creates a fan-out consumer
func NewGroup(members ...Consumer) *Group {
	return &Group{members: members}
}

// Members returns the member consumers
func (g *Group) Members() []Consumer {
	return append([]Consumer(nil), g.members...)
}

// Name implements Consumer
func (g *Group) Name() string {
	names := make([]string, len(g.members))
	for i, m := range g.members {
		names[i] = m.Name()
	}
	return "group(" + strings.Join(names, ", ") + ")"
}

// Open opens all members in order. If one fails, the members opened so far
// are closed again and the open error is returned.
func (g *Group) Open(ctx context.Context) error {
	if len(g.members) == 0 {
		return errors.New(errors.ErrorTypeConfig, "consumer group has no members")
	}
	for _, m := range g.members {
		if err := m.Open(ctx); err != nil {
			var closeErr error
			for i := len(g.opened) - 1; i >= 0; i-- {
				closeErr = multierr.Append(closeErr, g.opened[i].Close())
			}
			g.opened = nil
			// remaining members were never opened and stay unopened
			if closeErr != nil {
				return multierr.Append(err, closeErr)
			}
			return err
		}
		g.opened = append(g.opened, m)
	}
	return nil
}

// Write writes r to every member. It succeeds only if all members succeed;
// every member is attempted. The combined error is record-level only when
// every member failure is.
func (g *Group) Write(ctx context.Context, r record.Record) error {
	var errs error
	for _, m := range g.members {
		errs = multierr.Append(errs, m.Write(ctx, r))
	}
	return classify(errs, r.Number(), "fan-out write failed")
}

// Flush flushes every member
func (g *Group) Flush() error {
	var errs error
	for _, m := range g.members {
		errs = multierr.Append(errs, m.Flush())
	}
	return classify(errs, 0, "fan-out flush failed")
}

// Close closes every member and aggregates the failures
func (g *Group) Close() error {
	var errs error
	for _, m := range g.members {
		errs = multierr.Append(errs, m.Close())
	}
	if errs == nil {
		return nil
	}
	return errors.Wrap(errs, errors.ErrorTypeResourceRelease, "cannot release consumer group")
}

// classify wraps aggregated member errors so that a single resource failure
// makes the whole write fatal.
func classify(errs error, number uint64, message string) error {
	if errs == nil {
		return nil
	}
	all := multierr.Errors(errs)
	if len(all) == 1 {
		return all[0]
	}
	kind := errors.TypeOf(all[0])
	for _, err := range all {
		if !errors.IsRecordLevel(err) {
			kind = errors.TypeOf(err)
			break
		}
	}
	wrapped := errors.Wrap(errs, kind, message)
	if number > 0 {
		wrapped.AtRecord(number)
	}
	return wrapped
}
