package consumer

import (
	"context"
	"io"
	"os"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/ajitpratap0/recordflow/internal/exclusive"
	"github.com/ajitpratap0/recordflow/pkg/compression"
	"github.com/ajitpratap0/recordflow/pkg/errors"
)

// Destination accepts the bytes written by one consumer. A destination can
// be opened once; the returned writer releases it when closed.
type Destination interface {
	Name() string
	Open(ctx context.Context) (io.WriteCloser, error)
}

// FileOption configures a file destination
type FileOption func(*fileDestination)

// WithAppend appends to an existing file instead of truncating it
func WithAppend(enabled bool) FileOption {
	return func(d *fileDestination) { d.append = enabled }
}

// WithFileMode sets the permissions of a created file, 0644 by default
func WithFileMode(mode os.FileMode) FileOption {
	return func(d *fileDestination) { d.mode = mode }
}

type fileDestination struct {
	path   string
	append bool
	mode   os.FileMode
	opened atomic.Bool
}

// FileDestination writes the file at path, creating it if needed. While
// open, no other producer or consumer in the process may hold the file.
func FileDestination(path string, opts ...FileOption) Destination {
	d := &fileDestination{path: path, mode: 0o644}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *fileDestination) Name() string { return d.path }

func (d *fileDestination) Open(ctx context.Context) (io.WriteCloser, error) {
	if !d.opened.CompareAndSwap(false, true) {
		return nil, errors.Newf(errors.ErrorTypeSourceUnavailable, "destination %s was already opened", d.path)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeCancelled, "open cancelled")
	}

	release, err := exclusive.Acquire(d.path)
	if err != nil {
		return nil, err
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if d.append {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	file, err := os.OpenFile(d.path, flags, d.mode)
	if err != nil {
		release()
		return nil, errors.Wrap(err, errors.ErrorTypeSourceUnavailable, "cannot open destination").WithDetail("path", d.path)
	}
	return &heldFile{File: file, release: release}, nil
}

type heldFile struct {
	*os.File
	release func()
}

func (f *heldFile) Close() error {
	defer f.release()
	if err := f.File.Sync(); err != nil {
		return multierr.Append(err, f.File.Close())
	}
	return f.File.Close()
}

type writerDestination struct {
	name   string
	w      io.Writer
	opened atomic.Bool
}

// WriterDestination writes to w. Closing the consumer does not close w.
func WriterDestination(name string, w io.Writer) Destination {
	return &writerDestination{name: name, w: w}
}

func (d *writerDestination) Name() string { return d.name }

func (d *writerDestination) Open(ctx context.Context) (io.WriteCloser, error) {
	if !d.opened.CompareAndSwap(false, true) {
		return nil, errors.Newf(errors.ErrorTypeSourceUnavailable, "destination %s was already opened", d.name)
	}
	if d.w == nil {
		return nil, errors.Newf(errors.ErrorTypeSourceUnavailable, "destination %s has no writer", d.name)
	}
	return nopCloser{d.w}, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

type compressedDestination struct {
	inner  Destination
	config compression.Config
}

// Compressed compresses everything written to inner.
func Compressed(inner Destination, config compression.Config) Destination {
	return &compressedDestination{inner: inner, config: config}
}

func (d *compressedDestination) Name() string {
	return d.inner.Name() + " (" + string(d.config.Algorithm) + ")"
}

func (d *compressedDestination) Open(ctx context.Context) (io.WriteCloser, error) {
	raw, err := d.inner.Open(ctx)
	if err != nil {
		return nil, err
	}
	w, err := compression.NewWriter(raw, d.config)
	if err != nil {
		return nil, multierr.Append(err, raw.Close())
	}
	return &layeredWriter{Writer: w, closers: []io.Closer{w, raw}}, nil
}

// layeredWriter closes the compressor before the underlying writer so the
// stream trailer is written.
type layeredWriter struct {
	io.Writer
	closers []io.Closer
}

func (l *layeredWriter) Close() error {
	var err error
	for _, c := range l.closers {
		err = multierr.Append(err, c.Close())
	}
	return err
}
