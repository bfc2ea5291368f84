package consumer

import (
	"context"

	"github.com/ajitpratap0/recordflow/pkg/record"
)

// Route pairs a predicate with the consumer of the records it accepts
type Route struct {
	Accept   func(r record.Record) bool
	Consumer Consumer
}

// CategoryRoute routes records of one category
func CategoryRoute(category string, c Consumer) Route {
	return Route{
		Accept: func(r record.Record) bool {
			got, ok := r.Category()
			return ok && got == category
		},
		Consumer: c,
	}
}

// Router writes each record to the first route that accepts it, or to the
// fallback consumer. Records nobody accepts are dropped.
type Router struct {
	routes   []Route
	fallback Consumer
	group    *Group
	dropped  uint64
}

var _ Consumer = (*Router)(nil)

// NewRouter creates a routing consumer. fallback may be nil.
func NewRouter(fallback Consumer, routes ...Route) *Router {
	members := make([]Consumer, 0, len(routes)+1)
	for _, route := range routes {
		members = append(members, route.Consumer)
	}
	if fallback != nil {
		members = append(members, fallback)
	}
	return &Router{routes: routes, fallback: fallback, group: NewGroup(members...)}
}

// Name implements Consumer
func (r *Router) Name() string { return "router" + r.group.Name()[len("group"):] }

// Dropped returns the number of records no route accepted
func (r *Router) Dropped() uint64 { return r.dropped }

// Open opens all route consumers
func (r *Router) Open(ctx context.Context) error { return r.group.Open(ctx) }

// Write implements Consumer
func (r *Router) Write(ctx context.Context, rec record.Record) error {
	for _, route := range r.routes {
		if route.Accept(rec) {
			return route.Consumer.Write(ctx, rec)
		}
	}
	if r.fallback != nil {
		return r.fallback.Write(ctx, rec)
	}
	r.dropped++
	return nil
}

// Flush implements Consumer
func (r *Router) Flush() error { return r.group.Flush() }

// Close implements Consumer
func (r *Router) Close() error { return r.group.Close() }
