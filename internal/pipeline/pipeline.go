// Package pipeline drives one producer through transformation stages into
// one or more consumers under a per-record error policy.
//
// # Overview
//
// A run is a single-threaded pull loop: the orchestrator asks the producer
// for the next record, applies the stages, and writes the result to the
// consumer before asking for the next one. There is no parallelism inside a
// run; independent runs share nothing and may run on separate goroutines.
//
// Per-record failures (parse, decoding, transformation, arity and serialize
// errors) go through the ErrorPolicy:
//   - Skip logs the failure, lists it in the result and continues
//   - Abort stops the run and reports the failure as fatal
//   - Collect lists the failure in the result and continues
//
// Failures of the resources themselves (open, read, write, close) are fatal
// regardless of policy. Producer and consumer are closed exactly once on
// every path, including panics inside stages. Records written before an
// abort are flushed and kept.
//
// # Basic Usage
//
//	p := pipeline.New(prod, cons,
//	    pipeline.WithName("orders"),
//	    pipeline.WithStages(transform.Where("active", active)),
//	    pipeline.WithPolicy(pipeline.ErrorPolicy{OnRecordError: pipeline.Collect}),
//	    pipeline.WithLogger(logger),
//	)
//	result, err := p.Run(ctx)
package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ajitpratap0/recordflow/pkg/consumer"
	"github.com/ajitpratap0/recordflow/pkg/errors"
	"github.com/ajitpratap0/recordflow/pkg/metrics"
	"github.com/ajitpratap0/recordflow/pkg/observability"
	"github.com/ajitpratap0/recordflow/pkg/producer"
	"github.com/ajitpratap0/recordflow/pkg/record"
	"github.com/ajitpratap0/recordflow/pkg/transform"
)

// Producer is the record source of a run. *producer.Producer implements it.
type Producer interface {
	Name() string
	Open(ctx context.Context) error
	// Next returns the next record or producer.ErrEnd
	Next(ctx context.Context) (record.Record, error)
	Close() error
}

var _ Producer = (*producer.Producer)(nil)

// Option configures a Pipeline
type Option func(*Pipeline)

// WithName names the pipeline in logs, metrics and spans
func WithName(name string) Option {
	return func(p *Pipeline) { p.name = name }
}

// WithStages appends stages, applied left to right
func WithStages(stages ...transform.Stage) Option {
	return func(p *Pipeline) { p.stages = append(p.stages, stages...) }
}

// WithPolicy sets the error policy, DefaultErrorPolicy when not given
func WithPolicy(policy ErrorPolicy) Option {
	return func(p *Pipeline) { p.policy = policy }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithMetrics records run counters with rec
func WithMetrics(rec *metrics.Recorder) Option {
	return func(p *Pipeline) { p.recorder = rec }
}

// Pipeline wires one producer to its consumers. A Pipeline runs once
// because producers are single-use.
type Pipeline struct {
	name     string
	producer Producer
	consumer consumer.Consumer
	stages   []transform.Stage
	policy   ErrorPolicy
	logger   *zap.Logger
	recorder *metrics.Recorder
	ran      atomic.Bool
}

// New creates a pipeline. Several consumers are combined into a fan-out
// group, so a record counts as written only when every consumer took it.
func New(prod Producer, consumers []consumer.Consumer, opts ...Option) *Pipeline {
	p := &Pipeline{
		name:     "pipeline",
		producer: prod,
		policy:   DefaultErrorPolicy(),
		logger:   zap.NewNop(),
	}
	switch len(consumers) {
	case 0:
	case 1:
		p.consumer = consumers[0]
	default:
		p.consumer = consumer.NewGroup(consumers...)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the pipeline name
func (p *Pipeline) Name() string {
	return p.name
}

// Run drives the pipeline until the producer is exhausted, a fatal error
// occurs or ctx is cancelled. The returned error is Result.Fatal; the result
// is always non-nil except when the pipeline has run before.
func (p *Pipeline) Run(ctx context.Context) (res *Result, err error) {
	if !p.ran.CompareAndSwap(false, true) {
		return nil, errors.Newf(errors.ErrorTypeState, "pipeline %s has already run", p.name)
	}
	if p.producer == nil || p.consumer == nil {
		return nil, errors.Newf(errors.ErrorTypeConfig, "pipeline %s needs a producer and at least one consumer", p.name)
	}

	r := p.newRun()
	ctx, r.span = observability.StartRun(ctx, p.name, r.result.RunID)

	defer func() {
		if v := recover(); v != nil {
			r.stop(errors.Newf(errors.ErrorTypeInternal, "pipeline defect: %v", v))
		}
		r.release()
		res, err = r.finish()
	}()

	r.logger.Info("starting pipeline",
		zap.String("producer", p.producer.Name()),
		zap.String("consumer", p.consumer.Name()),
		zap.Int("stages", len(p.stages)),
		zap.Stringer("policy", p.policy.OnRecordError),
		zap.Int("max_failures", p.policy.MaxFailures))

	r.drive(ctx)
	return
}

// run holds the mutable state of one Run call
type run struct {
	p       *Pipeline
	chain   *transform.Chain
	result  *Result
	metrics *metrics.Run
	span    *observability.RunSpan
	logger  *zap.Logger
}

func (p *Pipeline) newRun() *run {
	id := uuid.NewString()
	return &run{
		p:     p,
		chain: transform.NewChain(p.stages...),
		result: &Result{
			RunID:     id,
			Pipeline:  p.name,
			StartedAt: time.Now(),
		},
		metrics: p.recorder.Run(p.name),
		logger:  p.logger.With(zap.String("pipeline", p.name), zap.String("run_id", id)),
	}
}

// stopped reports whether the run has ended early
func (r *run) stopped() bool {
	return r.result.Fatal != nil
}

// drive is the pull loop. It returns when the producer is exhausted or the
// run stopped.
func (r *run) drive(ctx context.Context) {
	if err := r.p.producer.Open(ctx); err != nil {
		r.stop(err)
		return
	}
	if err := r.p.consumer.Open(ctx); err != nil {
		r.stop(err)
		return
	}

	for {
		if err := ctx.Err(); err != nil {
			r.stop(errors.Wrap(err, errors.ErrorTypeCancelled, "run cancelled"))
			return
		}

		rec, err := r.p.producer.Next(ctx)
		if errors.Is(err, producer.ErrEnd) {
			return
		}
		if err != nil && !errors.IsRecordLevel(err) {
			r.stop(err)
			return
		}

		r.result.Read++
		r.metrics.Read()
		if err != nil {
			r.recordFailed(err, 0)
		} else {
			r.process(ctx, rec)
		}
		if r.stopped() {
			return
		}
	}
}

// process moves one record through the stages into the consumer
func (r *run) process(ctx context.Context, rec record.Record) {
	number := rec.Number()

	out, keep, err := r.chain.Apply(ctx, rec)
	if err != nil {
		r.handle(err, number)
		return
	}
	if !keep {
		r.result.Filtered++
		r.metrics.Filtered()
		return
	}
	if out.Number() == 0 {
		out = out.WithNumber(number)
	}

	if err := r.p.consumer.Write(ctx, out); err != nil {
		r.handle(err, number)
		return
	}
	r.result.Written++
	r.metrics.Written()
}

// handle attributes err to the source number captured before the stages
func (r *run) handle(err error, number uint64) {
	err = errors.Reattribute(err, number)
	if errors.IsRecordLevel(err) {
		r.recordFailed(err, number)
		return
	}
	r.stop(err)
}

// recordFailed applies the error policy to one failed record
func (r *run) recordFailed(err error, number uint64) {
	failure := failureOf(err, number)
	r.result.Failures = append(r.result.Failures, failure)
	r.result.Skipped++
	r.metrics.Failed(string(failure.Kind))
	r.span.RecordFailure(failure.RecordNumber, string(failure.Kind), failure.Message)

	fields := []zap.Field{
		zap.Uint64("record", failure.RecordNumber),
		zap.String("kind", string(failure.Kind)),
		zap.Error(err),
	}
	switch r.p.policy.OnRecordError {
	case Abort:
		r.logger.Error("aborting on record failure", fields...)
		r.stop(err)
		return
	case Skip:
		r.logger.Warn("skipping record", fields...)
	default:
		r.logger.Debug("collected record failure", fields...)
	}

	if r.p.policy.exceeded(len(r.result.Failures)) {
		r.logger.Error("failure limit exceeded", zap.Int("max_failures", r.p.policy.MaxFailures))
		r.stop(errors.Wrap(err, failure.Kind, fmt.Sprintf("more than %d record failures", r.p.policy.MaxFailures)))
	}
}

// stop ends the run with a fatal error. The first error wins.
func (r *run) stop(err error) {
	if r.stopped() {
		r.logger.Debug("ignoring error after stop", zap.Error(err))
		return
	}
	r.result.Fatal = err
	if errors.IsType(err, errors.ErrorTypeCancelled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		r.result.Outcome = Cancelled
	} else {
		r.result.Outcome = Aborted
	}
}

// release closes consumer and producer exactly once. Close failures become
// the fatal error only when nothing failed before.
func (r *run) release() {
	var errs error
	errs = multierr.Append(errs, r.closeQuietly("consumer", r.p.consumer.Close))
	errs = multierr.Append(errs, r.closeQuietly("producer", r.p.producer.Close))
	if errs == nil {
		return
	}

	released := errors.Wrap(errs, errors.ErrorTypeResourceRelease, "cannot release pipeline resources")
	r.result.ReleaseErr = released
	if r.stopped() {
		r.logger.Error("release failed after earlier error", zap.Error(errs))
		return
	}
	r.stop(released)
}

// closeQuietly runs a close function, turning a panic into an error so that
// the remaining resources are still released
func (r *run) closeQuietly(what string, closeFn func() error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = errors.Newf(errors.ErrorTypeInternal, "%s close panicked: %v", what, v)
		}
	}()
	return closeFn()
}

func (r *run) finish() (*Result, error) {
	res := r.result
	res.EndedAt = time.Now()
	if res.Fatal == nil {
		if len(res.Failures) > 0 {
			res.Outcome = CompletedWithFailures
		} else {
			res.Outcome = Completed
		}
	}

	r.metrics.Finish(res.Outcome.String(), res.Duration())
	r.span.End(res.Outcome.String(), res.Read, res.Written, res.Skipped, res.Fatal)

	fields := []zap.Field{
		zap.Stringer("outcome", res.Outcome),
		zap.Uint64("read", res.Read),
		zap.Uint64("written", res.Written),
		zap.Uint64("skipped", res.Skipped),
		zap.Uint64("filtered", res.Filtered),
		zap.Duration("duration", res.Duration()),
		zap.Float64("throughput_rps", r.metrics.Throughput()),
	}
	if res.Fatal != nil {
		r.logger.Error("pipeline stopped", append(fields, zap.Error(res.Fatal))...)
	} else {
		r.logger.Info("pipeline completed", fields...)
	}
	return res, res.Fatal
}
