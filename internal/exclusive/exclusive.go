// Package exclusive tracks which files are held by an open producer or
// consumer in this process.
package exclusive

import (
	"path/filepath"
	"sync"

	"github.com/ajitpratap0/recordflow/pkg/errors"
)

var held sync.Map

// Acquire marks path as held and returns the function that releases it.
// Release is safe to call more than once.
func Acquire(path string) (func(), error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSourceUnavailable, "cannot resolve path").WithDetail("path", path)
	}
	if _, loaded := held.LoadOrStore(abs, struct{}{}); loaded {
		return nil, errors.Newf(errors.ErrorTypeSourceUnavailable, "%s is held by another producer or consumer", path)
	}
	var once sync.Once
	return func() {
		once.Do(func() { held.Delete(abs) })
	}, nil
}

// Held reports whether path is currently held
func Held(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	_, ok := held.Load(abs)
	return ok
}
