package consumer

import (
	"context"
	"sync"

	"github.com/ajitpratap0/recordflow/pkg/errors"
	"github.com/ajitpratap0/recordflow/pkg/record"
)

// Collector keeps written records in memory.
type Collector struct {
	name    string
	mu      sync.Mutex
	state   State
	records []record.Record
	closes  int
}

var _ Consumer = (*Collector)(nil)

// NewCollector creates an in-memory consumer
func NewCollector(name string) *Collector {
	return &Collector{name: name}
}

// Name implements Consumer
func (c *Collector) Name() string { return c.name }

// Open implements Consumer
func (c *Collector) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateCreated {
		return errors.Newf(errors.ErrorTypeSourceUnavailable, "collector %s cannot be opened in state %s", c.name, c.state)
	}
	c.state = StateOpen
	return nil
}

// Write implements Consumer
func (c *Collector) Write(ctx context.Context, r record.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen && c.state != StateWriting {
		return errors.Newf(errors.ErrorTypeState, "collector cannot write in state %s", c.state).AtRecord(r.Number())
	}
	c.state = StateWriting
	c.records = append(c.records, r)
	return nil
}

// Flush implements Consumer
func (c *Collector) Flush() error { return nil }

// Close implements Consumer
func (c *Collector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateClosed {
		c.closes++
		c.state = StateClosed
	}
	return nil
}

// Records returns a copy of the written records
func (c *Collector) Records() []record.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]record.Record(nil), c.records...)
}

// State returns the current lifecycle state
func (c *Collector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Releases returns how often the collector was released, at most 1
func (c *Collector) Releases() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}
