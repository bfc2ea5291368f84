package producer

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

// Source supplies the bytes of one record source. A source can be opened
// once; the returned reader releases it when closed.
type Source interface {
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

type fileSource struct {
	path   string
	opened atomic.Bool
}

// FileSource reads the file at path. While open, no other producer or
// consumer in the process may hold the same file.
func FileSource(path string) Source {
	return &fileSource{path: path}
}

func (s *fileSource) Name() string { return s.path }

func (s *fileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if !s.opened.CompareAndSwap(false, true) {
		return nil, errors.Newf(errors.ErrorTypeSourceUnavailable, "source %s was already opened", s.path)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeCancelled, "open cancelled")
	}

	release, err := exclusive.Acquire(s.path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(s.path)
	if err != nil {
		release()
		return nil, errors.Wrap(err, errors.ErrorTypeSourceUnavailable, "cannot open source").WithDetail("path", s.path)
	}
	return &heldFile{File: file, release: release}, nil
}

// heldFile releases the exclusive hold after closing the file.
type heldFile struct {
	*os.File
	release func()
}

func (f *heldFile) Close() error {
	defer f.release()
	return f.File.Close()
}

type readerSource struct {
	name   string
	r      io.Reader
	opened atomic.Bool
}

// ReaderSource reads from r. Closing the producer does not close r.
func ReaderSource(name string, r io.Reader) Source {
	return &readerSource{name: name, r: r}
}

func (s *readerSource) Name() string { return s.name }

func (s *readerSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if !s.opened.CompareAndSwap(false, true) {
		return nil, errors.Newf(errors.ErrorTypeSourceUnavailable, "source %s was already opened", s.name)
	}
	if s.r == nil {
		return nil, errors.Newf(errors.ErrorTypeSourceUnavailable, "source %s has no reader", s.name)
	}
	return io.NopCloser(s.r), nil
}

type compressedSource struct {
	inner     Source
	algorithm compression.Algorithm
}

// Compressed decompresses inner with the given algorithm.
func Compressed(inner Source, algorithm compression.Algorithm) Source {
	return &compressedSource{inner: inner, algorithm: algorithm}
}

func (s *compressedSource) Name() string {
	return s.inner.Name() + " (" + string(s.algorithm) + ")"
}

func (s *compressedSource) Open(ctx context.Context) (io.ReadCloser, error) {
	raw, err := s.inner.Open(ctx)
	if err != nil {
		return nil, err
	}
	r, err := compression.NewReader(raw, s.algorithm)
	if err != nil {
		return nil, multierr.Append(err, raw.Close())
	}
	return &layeredReader{Reader: r, closers: []io.Closer{r, raw}}, nil
}

type layeredReader struct {
	io.Reader
	closers []io.Closer
}

func (l *layeredReader) Close() error {
	var err error
	for _, c := range l.closers {
		err = multierr.Append(err, c.Close())
	}
	return err
}
