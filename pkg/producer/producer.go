// Package producer reads records from a source through a codec.
//
// A Producer moves through the states Created, Open, Producing, then
// Exhausted or Errored, and finally Closed. It owns its source exclusively
// from Open until Close and is single-use: once closed or exhausted it
// cannot be reopened.
//
// Record numbers are the 1-based physical position of each unit in the
// source. For line framing that is the line number, counting header lines,
// blank lines, comments and section headers that produce no record, so a
// failure always points at a line in the file.
//
// # Basic Usage
//
//	c, _ := codec.NewDelimited(codec.CSV())
//	p := producer.New(producer.FileSource("in.csv"), c, producer.WithSkipFirstLines(1))
//	if err := p.Open(ctx); err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	for r, err := range p.Records(ctx) {
//	    ...
//	}
package producer

import (
	"bufio"
	"context"
	"io"
	"iter"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/recordflow/pkg/charset"
	"github.com/ajitpratap0/recordflow/pkg/codec"
	"github.com/ajitpratap0/recordflow/pkg/errors"
	"github.com/ajitpratap0/recordflow/pkg/record"
)

// ErrEnd is returned by Next when the source has no more records
var ErrEnd = io.EOF

// State is the lifecycle state of a producer
type State int

const (
	StateCreated State = iota
	StateOpen
	StateProducing
	StateExhausted
	StateErrored
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateOpen:
		return "open"
	case StateProducing:
		return "producing"
	case StateExhausted:
		return "exhausted"
	case StateErrored:
		return "errored"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DefaultMaxUnitSize bounds the length of one line in bytes
const DefaultMaxUnitSize = 16 * 1024 * 1024

// Option configures a Producer
type Option func(*Producer)

// WithCharset sets the charset of the source, UTF-8 by default
func WithCharset(cs charset.Charset) Option {
	return func(p *Producer) { p.charset = cs }
}

// WithSkipFirstLines skips n header lines. They still count toward record numbers.
func WithSkipFirstLines(n int) Option {
	return func(p *Producer) { p.skipFirst = n }
}

// WithSkipBlankLines skips lines that are empty or whitespace only
func WithSkipBlankLines(skip bool) Option {
	return func(p *Producer) { p.skipBlank = skip }
}

// WithCategory sets the category of records that get none from the codec
func WithCategory(category string) Option {
	return func(p *Producer) { p.category = category }
}

// WithMaxUnitSize bounds the length of one line in bytes
func WithMaxUnitSize(n int) Option {
	return func(p *Producer) { p.maxUnit = n }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(p *Producer) { p.logger = logger }
}

// Producer yields records from one source. It is not safe for concurrent
// use, except that Close may be called at any time.
type Producer struct {
	source    Source
	codec     codec.Codec
	charset   charset.Charset
	skipFirst int
	skipBlank bool
	category  string
	maxUnit   int
	logger    *zap.Logger

	state   State
	reader  io.ReadCloser
	lines   *bufio.Scanner
	fixed   *bufio.Reader
	guard   *codec.ArityGuard
	section string
	// position is the number of physical units consumed so far
	position uint64
	fatal    error

	closeOnce sync.Once
	closeErr  error
	mu        sync.Mutex
}

// New creates a producer in state Created
func New(source Source, c codec.Codec, opts ...Option) *Producer {
	p := &Producer{
		source:  source,
		codec:   c,
		charset: charset.Default(),
		maxUnit: DefaultMaxUnitSize,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(zap.String("source", source.Name()), zap.String("codec", c.Name()))
	return p
}

// Name returns the source name
func (p *Producer) Name() string {
	return p.source.Name()
}

// Codec returns the codec records are parsed with
func (p *Producer) Codec() codec.Codec {
	return p.codec
}

// State returns the current lifecycle state
func (p *Producer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Producer) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Open acquires the source. It fails with ErrorTypeSourceUnavailable when
// the producer was opened before or the source cannot be acquired.
func (p *Producer) Open(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateCreated {
		state := p.state
		p.mu.Unlock()
		return errors.Newf(errors.ErrorTypeSourceUnavailable, "producer for %s cannot be opened in state %s", p.Name(), state)
	}
	p.mu.Unlock()

	r, err := p.source.Open(ctx)
	if err != nil {
		p.fatal = err
		p.setState(StateErrored)
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateClosed {
		// closed while opening
		p.closeErr = r.Close()
		return errors.Newf(errors.ErrorTypeSourceUnavailable, "producer for %s was closed", p.Name())
	}
	p.reader = r
	p.guard = codec.NewArityGuard(p.codec)

	framing := p.codec.Framing()
	if framing.Kind == codec.FramingFixedSize {
		p.fixed = bufio.NewReader(r)
	} else {
		p.lines = bufio.NewScanner(p.charset.NewReader(r))
		p.lines.Buffer(make([]byte, 0, 64*1024), p.maxUnit)
		p.lines.Split(scanLines)
	}
	p.state = StateOpen
	p.logger.Debug("producer opened", zap.String("charset", p.charset.Name()))
	return nil
}

// Next returns the next record, ErrEnd when the source is exhausted, or an
// error. Record-level errors carry the record number of the failing unit and
// leave the producer usable; any other error moves it to Errored.
func (p *Producer) Next(ctx context.Context) (record.Record, error) {
	switch state := p.State(); state {
	case StateOpen, StateProducing:
	case StateExhausted:
		return record.Record{}, ErrEnd
	case StateErrored:
		if p.fatal != nil {
			return record.Record{}, p.fatal
		}
		return record.Record{}, errors.New(errors.ErrorTypeState, "producer is in state errored")
	default:
		return record.Record{}, errors.Newf(errors.ErrorTypeState, "producer cannot produce in state %s", state)
	}
	if err := ctx.Err(); err != nil {
		return record.Record{}, errors.Wrap(err, errors.ErrorTypeCancelled, "produce cancelled")
	}
	p.setState(StateProducing)

	var (
		r   record.Record
		err error
	)
	if p.fixed != nil {
		r, err = p.nextSlice()
	} else {
		r, err = p.nextLine()
	}

	switch {
	case err == nil:
		return r, nil
	case err == ErrEnd:
		p.setState(StateExhausted)
		p.logger.Debug("producer exhausted", zap.Uint64("units", p.position))
		return record.Record{}, ErrEnd
	case errors.IsRecordLevel(err):
		return record.Record{}, err
	default:
		p.fatal = err
		p.setState(StateErrored)
		return record.Record{}, err
	}
}

// readLine returns the next physical line or ErrEnd
func (p *Producer) readLine() (string, error) {
	if p.lines.Scan() {
		p.position++
		line := p.lines.Text()
		if p.position == 1 {
			line = strings.TrimPrefix(line, "\uFEFF")
		}
		return line, nil
	}
	if err := p.lines.Err(); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeSourceUnavailable, "read failed").
			WithDetail("source", p.Name()).
			AtRecord(p.position + 1)
	}
	return "", ErrEnd
}

func (p *Producer) nextLine() (record.Record, error) {
	ignorer, _ := p.codec.(codec.Ignorer)
	sectioner, _ := p.codec.(codec.Sectioner)
	continuer, _ := p.codec.(codec.Continuer)

	for {
		line, err := p.readLine()
		if err != nil {
			return record.Record{}, err
		}
		number := p.position

		if number <= uint64(p.skipFirst) {
			continue
		}
		if err := p.charset.Validate(line); err != nil {
			return record.Record{}, errors.AttributeTo(err, errors.ErrorTypeDecoding, number)
		}
		if p.skipBlank && strings.TrimSpace(line) == "" {
			continue
		}
		if sectioner != nil {
			if name, ok := sectioner.Section(line); ok {
				p.section = name
				continue
			}
		}
		if ignorer != nil && ignorer.Ignore(line) {
			continue
		}

		unit := line
		for continuer != nil && continuer.Continues(unit) {
			next, err := p.readLine()
			if err == ErrEnd {
				unit = continuer.Join(unit, "")
				break
			}
			if err != nil {
				return record.Record{}, err
			}
			if err := p.charset.Validate(next); err != nil {
				return record.Record{}, errors.AttributeTo(err, errors.ErrorTypeDecoding, number)
			}
			unit = continuer.Join(unit, next)
		}

		return p.build(unit, number)
	}
}

func (p *Producer) nextSlice() (record.Record, error) {
	size := p.codec.Framing().Size
	for p.position < uint64(p.skipFirst) {
		if _, err := p.fixed.Discard(size); err != nil {
			if err == io.EOF {
				return record.Record{}, ErrEnd
			}
			return record.Record{}, errors.Wrap(err, errors.ErrorTypeSourceUnavailable, "read failed").
				WithDetail("source", p.Name())
		}
		p.position++
	}

	buf := make([]byte, size)
	n, err := io.ReadFull(p.fixed, buf)
	switch {
	case err == io.EOF:
		return record.Record{}, ErrEnd
	case err == io.ErrUnexpectedEOF:
		// short final slice, the codec decides whether it is truncated
	case err != nil:
		return record.Record{}, errors.Wrap(err, errors.ErrorTypeSourceUnavailable, "read failed").
			WithDetail("source", p.Name()).
			AtRecord(p.position + 1)
	}
	p.position++
	number := p.position

	unit, err := p.charset.Decode(buf[:n])
	if err != nil {
		return record.Record{}, errors.AttributeTo(err, errors.ErrorTypeDecoding, number)
	}
	return p.build(unit, number)
}

func (p *Producer) build(unit string, number uint64) (record.Record, error) {
	r, err := p.codec.Parse(unit)
	if err != nil {
		return record.Record{}, errors.AttributeTo(err, errors.ErrorTypeParse, number)
	}
	if ok, expected := p.guard.Check(r.Arity()); !ok {
		return record.Record{}, errors.Newf(errors.ErrorTypeParse,
			"expected %d fields, found %d", expected, r.Arity()).AtRecord(number)
	}

	category := p.category
	if p.section != "" {
		category = p.section
	}
	return r.WithCategory(category).WithNumber(number), nil
}

// Records iterates over the remaining records. Record-level errors are
// yielded and iteration continues; iteration stops after any other error.
func (p *Producer) Records(ctx context.Context) iter.Seq2[record.Record, error] {
	return func(yield func(record.Record, error) bool) {
		for {
			r, err := p.Next(ctx)
			if err == ErrEnd {
				return
			}
			if !yield(r, err) {
				return
			}
			if err != nil && !errors.IsRecordLevel(err) {
				return
			}
		}
	}
}

// Close releases the source exactly once. Further calls return the result
// of the first.
func (p *Producer) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		r := p.reader
		p.reader = nil
		p.state = StateClosed
		p.mu.Unlock()

		if r == nil {
			return
		}
		if err := r.Close(); err != nil {
			p.closeErr = errors.Wrap(err, errors.ErrorTypeResourceRelease, "cannot release source").
				WithDetail("source", p.Name())
		}
		p.logger.Debug("producer closed", zap.Uint64("units", p.position))
	})
	return p.closeErr
}
