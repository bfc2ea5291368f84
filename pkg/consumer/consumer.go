// Package consumer writes records to destinations through a codec.
//
// A consumer moves through the states Created, Open, Writing and Closed.
// It owns its destination exclusively from Open until Close. Close flushes
// buffered output, writes the configured trailer and releases the
// destination exactly once.
//
// Group fans every record out to several consumers; Router sends each
// record to the first consumer whose predicate accepts it.
package consumer

import (
	"bufio"
	"context"
	"io"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ajitpratap0/recordflow/pkg/charset"
	"github.com/ajitpratap0/recordflow/pkg/codec"
	"github.com/ajitpratap0/recordflow/pkg/errors"
	"github.com/ajitpratap0/recordflow/pkg/record"
)

// Consumer accepts records until it is closed.
type Consumer interface {
	Name() string
	Open(ctx context.Context) error
	Write(ctx context.Context, r record.Record) error
	Flush() error
	Close() error
}

// State is the lifecycle state of a consumer
type State int

const (
	StateCreated State = iota
	StateOpen
	StateWriting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateOpen:
		return "open"
	case StateWriting:
		return "writing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// LineSeparator terminates each written unit
type LineSeparator string

const (
	LF   LineSeparator = "\n"
	CRLF LineSeparator = "\r\n"
	CR   LineSeparator = "\r"
)

// ParseLineSeparator resolves lf, crlf or cr. An empty name is LF.
func ParseLineSeparator(name string) (LineSeparator, bool) {
	switch name {
	case "", "lf", "LF":
		return LF, true
	case "crlf", "CRLF":
		return CRLF, true
	case "cr", "CR":
		return CR, true
	default:
		return "", false
	}
}

// Option configures a Writer
type Option func(*Writer)

// WithCharset sets the output charset, UTF-8 by default
func WithCharset(cs charset.Charset) Option {
	return func(w *Writer) { w.charset = cs }
}

// WithLineSeparator sets the unit terminator, LF by default
func WithLineSeparator(sep LineSeparator) Option {
	return func(w *Writer) { w.separator = sep }
}

// WithTextBefore writes text once after opening, followed by a line separator
func WithTextBefore(text string) Option {
	return func(w *Writer) { w.before = text }
}

// WithTextAfter writes text once before closing, followed by a line separator
func WithTextAfter(text string) Option {
	return func(w *Writer) { w.after = text }
}

// WithBufferSize sets the output buffer size in bytes
func WithBufferSize(n int) Option {
	return func(w *Writer) { w.bufferSize = n }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(w *Writer) { w.logger = logger }
}

// Writer serializes records with a codec and writes them to a destination.
// It is not safe for concurrent use, except that Close may be called at
// any time.
type Writer struct {
	dest       Destination
	codec      codec.Codec
	charset    charset.Charset
	separator  LineSeparator
	before     string
	after      string
	bufferSize int
	logger     *zap.Logger

	state    State
	out      io.WriteCloser
	buf      *bufio.Writer
	guard    *codec.ArityGuard
	section  *string
	written  uint64
	ioFailed bool

	closeOnce sync.Once
	closeErr  error
	mu        sync.Mutex
}

var _ Consumer = (*Writer)(nil)

// New creates a consumer in state Created
func New(dest Destination, c codec.Codec, opts ...Option) *Writer {
	w := &Writer{
		dest:       dest,
		codec:      c,
		charset:    charset.Default(),
		separator:  LF,
		bufferSize: 64 * 1024,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(zap.String("destination", dest.Name()), zap.String("codec", c.Name()))
	return w
}

// Name returns the destination name
func (w *Writer) Name() string { return w.dest.Name() }

// Codec returns the codec records are serialized with
func (w *Writer) Codec() codec.Codec { return w.codec }

// Written returns the number of records written
func (w *Writer) Written() uint64 { return w.written }

// State returns the current lifecycle state
func (w *Writer) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Open acquires the destination and writes the leading text.
func (w *Writer) Open(ctx context.Context) error {
	w.mu.Lock()
	if w.state != StateCreated {
		state := w.state
		w.mu.Unlock()
		return errors.Newf(errors.ErrorTypeSourceUnavailable, "consumer for %s cannot be opened in state %s", w.Name(), state)
	}
	w.mu.Unlock()

	out, err := w.dest.Open(ctx)
	if err != nil {
		return err
	}

	w.mu.Lock()
	if w.state == StateClosed {
		w.mu.Unlock()
		return multierr.Append(
			errors.Newf(errors.ErrorTypeSourceUnavailable, "consumer for %s was closed", w.Name()),
			out.Close())
	}
	w.out = out
	w.buf = bufio.NewWriterSize(out, w.bufferSize)
	w.guard = codec.NewArityGuard(w.codec)
	w.state = StateOpen
	w.mu.Unlock()

	if w.before != "" {
		if err := w.writeText(w.before); err != nil {
			return err
		}
	}
	if doc, ok := w.codec.(codec.Document); ok {
		for _, line := range doc.Head() {
			if err := w.writeText(line); err != nil {
				return err
			}
		}
	}
	w.logger.Debug("consumer opened", zap.String("charset", w.charset.Name()))
	return nil
}

// Write serializes r and writes it. Invalid records fail with
// ErrorTypeArityMismatch or ErrorTypeSerialize and leave the output
// untouched; write failures are ErrorTypeIO.
func (w *Writer) Write(ctx context.Context, r record.Record) error {
	if state := w.State(); state != StateOpen && state != StateWriting {
		return errors.Newf(errors.ErrorTypeState, "consumer cannot write in state %s", state).AtRecord(r.Number())
	}
	if w.ioFailed {
		return errors.New(errors.ErrorTypeIO, "destination failed earlier").AtRecord(r.Number())
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeCancelled, "write cancelled")
	}

	unit, section, err := w.encode(r)
	if err != nil {
		return errors.AttributeTo(err, errors.ErrorTypeSerialize, r.Number())
	}
	if ok, expected := w.guard.Check(r.Arity()); !ok {
		return errors.Newf(errors.ErrorTypeArityMismatch,
			"destination expects %d fields, record has %d", expected, r.Arity()).AtRecord(r.Number())
	}

	w.mu.Lock()
	w.state = StateWriting
	w.mu.Unlock()

	if _, err := w.buf.Write(unit); err != nil {
		w.ioFailed = true
		return errors.Wrap(err, errors.ErrorTypeIO, "write failed").WithDetail("destination", w.Name()).AtRecord(r.Number())
	}
	if section != nil {
		w.section = section
	}
	w.written++
	return nil
}

// encode builds the bytes for r, including a section header when the
// category changes, and the new section if any. Fixed-size units must
// encode to exactly the framing size.
func (w *Writer) encode(r record.Record) ([]byte, *string, error) {
	line, err := w.codec.Serialize(r)
	if err != nil {
		return nil, nil, err
	}
	framing := w.codec.Framing()
	terminator := string(w.separator)
	if framing.Kind == codec.FramingFixedSize {
		terminator = ""
	}

	text := line + terminator
	var section *string
	if sectioner, ok := w.codec.(codec.Sectioner); ok && sectioner.Sections() {
		category, has := r.Category()
		switch {
		case has && (w.section == nil || category != *w.section):
			header, err := sectioner.SectionHeader(category)
			if err != nil {
				return nil, nil, err
			}
			text = header + terminator + text
			section = &category
		case !has && w.section != nil:
			return nil, nil, errors.Newf(errors.ErrorTypeSerialize,
				"record without category would be read back in section %q", *w.section)
		}
	}

	out, err := w.charset.Encode(text)
	if err != nil {
		return nil, nil, err
	}
	if framing.Kind == codec.FramingFixedSize && len(out) != framing.Size {
		return nil, nil, errors.Newf(errors.ErrorTypeSerialize,
			"unit encodes to %d bytes, record width is %d", len(out), framing.Size)
	}
	return out, section, nil
}

func (w *Writer) writeText(text string) error {
	out, err := w.charset.Encode(text + string(w.separator))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "surrounding text is not representable")
	}
	if _, err := w.buf.Write(out); err != nil {
		w.ioFailed = true
		return errors.Wrap(err, errors.ErrorTypeIO, "write failed").WithDetail("destination", w.Name())
	}
	return nil
}

// Flush writes buffered output to the destination
func (w *Writer) Flush() error {
	if w.buf == nil {
		return nil
	}
	if err := w.buf.Flush(); err != nil {
		w.ioFailed = true
		return errors.Wrap(err, errors.ErrorTypeIO, "flush failed").WithDetail("destination", w.Name())
	}
	return nil
}

// Close writes the trailing text, flushes and releases the destination
// exactly once. Further calls return the result of the first.
func (w *Writer) Close() error {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		out := w.out
		w.out = nil
		w.state = StateClosed
		w.mu.Unlock()

		if out == nil {
			return
		}

		var err error
		if !w.ioFailed {
			if doc, ok := w.codec.(codec.Document); ok {
				for _, line := range doc.Tail() {
					err = multierr.Append(err, w.writeText(line))
				}
			}
			if w.after != "" {
				err = multierr.Append(err, w.writeText(w.after))
			}
			err = multierr.Append(err, w.Flush())
		}
		if cerr := out.Close(); cerr != nil {
			err = multierr.Append(err, cerr)
		}
		if err != nil {
			w.closeErr = errors.Wrap(err, errors.ErrorTypeResourceRelease, "cannot release destination").
				WithDetail("destination", w.Name())
		}
		w.logger.Debug("consumer closed", zap.Uint64("written", w.written))
	})
	return w.closeErr
}
