package codec

import (
	"github.com/ajitpratap0/recordflow/pkg/errors"
	"github.com/ajitpratap0/recordflow/pkg/record"
)

// SingleValue maps every line to a one-field record.
type SingleValue struct {
	// SkipEmpty ignores empty lines on read
	SkipEmpty bool
}

// NewSingleValue creates the codec.
func NewSingleValue(skipEmpty bool) *SingleValue {
	return &SingleValue{SkipEmpty: skipEmpty}
}

// Name implements Codec
func (s *SingleValue) Name() string { return "single-value" }

// Framing implements Codec
func (s *SingleValue) Framing() Framing { return Lines }

// Arity implements Arity
func (s *SingleValue) Arity() int { return 1 }

// Ignore implements Ignorer
func (s *SingleValue) Ignore(raw string) bool {
	return s.SkipEmpty && raw == ""
}

// Parse implements Codec
func (s *SingleValue) Parse(raw string) (record.Record, error) {
	return record.New(raw), nil
}

// Serialize implements Codec
func (s *SingleValue) Serialize(r record.Record) (string, error) {
	if r.Arity() != 1 {
		return "", errors.Newf(errors.ErrorTypeArityMismatch, "single-value records have 1 field, record has %d", r.Arity())
	}
	value := r.FieldOr(0, "")
	if hasLineBreak(value) {
		return "", errors.New(errors.ErrorTypeSerialize, "value contains a line break")
	}
	if s.SkipEmpty && value == "" {
		return "", errors.New(errors.ErrorTypeSerialize, "empty value would be skipped on read")
	}
	return value, nil
}
