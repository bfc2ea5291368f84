// Package errors provides structured error handling for recordflow.
//
// Every failure raised by the record pipeline carries an ErrorType from the
// taxonomy below. Record-level types (parse, decoding, truncated_line,
// malformed_entry, arity_mismatch, serialize, transformation) are attributed to
// the source record number and are subject to the pipeline error policy.
// Resource types (source_unavailable, io, resource_release) are always fatal
// to a run.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeSourceUnavailable means a source or destination cannot be opened or is already in use
	ErrorTypeSourceUnavailable ErrorType = "source_unavailable"
	// ErrorTypeParse represents malformed input that a codec rejected
	ErrorTypeParse ErrorType = "parse"
	// ErrorTypeDecoding represents bytes that are invalid in the declared charset
	ErrorTypeDecoding ErrorType = "decoding"
	// ErrorTypeTruncatedLine represents a fixed-width line shorter than its last field
	ErrorTypeTruncatedLine ErrorType = "truncated_line"
	// ErrorTypeMalformedEntry represents a key/value line without a pair separator
	ErrorTypeMalformedEntry ErrorType = "malformed_entry"
	// ErrorTypeArityMismatch represents a record whose field count a codec cannot accept
	ErrorTypeArityMismatch ErrorType = "arity_mismatch"
	// ErrorTypeSerialize represents a record that cannot be encoded by a codec
	ErrorTypeSerialize ErrorType = "serialize"
	// ErrorTypeTransformation represents a mapper or filter failure
	ErrorTypeTransformation ErrorType = "transformation"
	// ErrorTypeCancelled represents a caller-initiated abort
	ErrorTypeCancelled ErrorType = "cancelled"
	// ErrorTypeResourceRelease represents a failure while closing a source or destination
	ErrorTypeResourceRelease ErrorType = "resource_release"
	// ErrorTypeIndexOutOfRange represents a field index outside a record
	ErrorTypeIndexOutOfRange ErrorType = "index_out_of_range"
	// ErrorTypeIO represents failed reads or writes on an open resource
	ErrorTypeIO ErrorType = "io"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeState represents an operation called in the wrong lifecycle state
	ErrorTypeState ErrorType = "state"
	// ErrorTypeInternal represents internal defects, such as recovered panics
	ErrorTypeInternal ErrorType = "internal"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	// RecordNumber is the 1-based source position the error is attributed to, 0 if none
	RecordNumber uint64
	Details      map[string]interface{}
	Stack        []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	prefix := string(e.Type)
	if e.RecordNumber > 0 {
		prefix = fmt.Sprintf("%s at record %d", e.Type, e.RecordNumber)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// AtRecord attributes the error to a source record number
func (e *Error) AtRecord(number uint64) *Error {
	e.RecordNumber = number
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack and record attribution
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:         errType,
			Message:      message,
			Cause:        err,
			RecordNumber: existingErr.RecordNumber,
			Stack:        existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// AttributeTo attributes err to a record number. A structured error without
// a record number is updated in place; other errors are wrapped with the
// fallback type.
func AttributeTo(err error, fallback ErrorType, number uint64) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.RecordNumber == 0 {
			e.RecordNumber = number
		}
		return err
	}
	return Wrap(err, fallback, "record failed").AtRecord(number)
}

// Reattribute moves err to a record number, replacing any earlier
// attribution of the outermost structured error. Plain errors and a zero
// number leave err unchanged.
func Reattribute(err error, number uint64) error {
	var e *Error
	if number > 0 && errors.As(err, &e) {
		e.RecordNumber = number
	}
	return err
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// TypeOf returns the type of the outermost structured error in the chain,
// or ErrorTypeInternal for plain errors.
func TypeOf(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ErrorTypeInternal
	}
	return e.Type
}

// RecordNumberOf returns the record number the error is attributed to, 0 if none
func RecordNumberOf(err error) uint64 {
	var e *Error
	if !errors.As(err, &e) {
		return 0
	}
	return e.RecordNumber
}

// IsRecordLevel reports whether err describes a single bad record, as opposed
// to a failure of the run's resources. Record-level errors go through the
// pipeline error policy; everything else is fatal.
func IsRecordLevel(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeParse, ErrorTypeDecoding, ErrorTypeTruncatedLine, ErrorTypeMalformedEntry,
		ErrorTypeArityMismatch, ErrorTypeSerialize, ErrorTypeTransformation, ErrorTypeIndexOutOfRange:
		return true
	default:
		return false
	}
}

// Is and As re-export the standard library helpers so callers only need to
// import one errors package.
var (
	Is = errors.Is
	As = errors.As
)

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
