// Package record provides the format-agnostic record model used by every
// producer, codec, transformation stage and consumer in recordflow.
//
// A Record is an immutable, ordered sequence of string fields with an optional
// category label and a 1-based record number. The record number reflects the
// position of the record in its source and is assigned by the producer; it is
// not part of the record's identity, so two records with equal fields and
// category are equal regardless of where they came from.
//
// Records are plain values. They hold no reference to their source and may be
// shared freely between pipeline stages and consumers.
//
// # Basic Usage
//
//	r := record.New("a", "b", "1")
//	v, err := r.Field(2)          // "1", nil
//	r2, err := r.WithField(0, "z") // new record, r unchanged
//	kv := record.NewKeyValue("host", "localhost")
package record

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/ajitpratap0/recordflow/pkg/errors"
)

// Record is an immutable ordered sequence of field values.
// The zero value is an empty record without category or number.
type Record struct {
	fields      []string
	category    string
	hasCategory bool
	number      uint64
}

// New creates a record from the given field values. The values are copied.
func New(fields ...string) Record {
	return Record{fields: clone(fields)}
}

// NewWith creates a record with a category and a record number.
// An empty category means no category.
func NewWith(category string, number uint64, fields []string) Record {
	return Record{
		fields:      clone(fields),
		category:    category,
		hasCategory: category != "",
		number:      number,
	}
}

// Arity returns the number of fields
func (r Record) Arity() int {
	return len(r.fields)
}

// Field returns the value at index i.
// It fails with ErrorTypeIndexOutOfRange when i is not a valid field index.
func (r Record) Field(i int) (string, error) {
	if err := r.checkIndex(i, len(r.fields)); err != nil {
		return "", err
	}
	return r.fields[i], nil
}

// FieldOr returns the value at index i, or def when the index is out of range.
func (r Record) FieldOr(i int, def string) string {
	if i < 0 || i >= len(r.fields) {
		return def
	}
	return r.fields[i]
}

// Fields returns a copy of all field values in order
func (r Record) Fields() []string {
	return clone(r.fields)
}

// Number returns the 1-based source position, 0 if unassigned
func (r Record) Number() uint64 {
	return r.number
}

// Category returns the category label and whether one is set
func (r Record) Category() (string, bool) {
	return r.category, r.hasCategory
}

// HasCategory reports whether the record carries a category
func (r Record) HasCategory() bool {
	return r.hasCategory
}

// WithField returns a copy of the record with field i replaced by value.
func (r Record) WithField(i int, value string) (Record, error) {
	if err := r.checkIndex(i, len(r.fields)); err != nil {
		return Record{}, err
	}
	out := r.derive(clone(r.fields))
	out.fields[i] = value
	return out, nil
}

// AppendField returns a copy of the record with value added as the last field.
func (r Record) AppendField(value string) Record {
	fields := make([]string, len(r.fields), len(r.fields)+1)
	copy(fields, r.fields)
	return r.derive(append(fields, value))
}

// InsertField returns a copy of the record with value inserted at index i.
// i may equal Arity, which appends.
func (r Record) InsertField(i int, value string) (Record, error) {
	if err := r.checkIndex(i, len(r.fields)+1); err != nil {
		return Record{}, err
	}
	fields := make([]string, 0, len(r.fields)+1)
	fields = append(fields, r.fields[:i]...)
	fields = append(fields, value)
	fields = append(fields, r.fields[i:]...)
	return r.derive(fields), nil
}

// RemoveField returns a copy of the record without field i.
func (r Record) RemoveField(i int) (Record, error) {
	if err := r.checkIndex(i, len(r.fields)); err != nil {
		return Record{}, err
	}
	fields := make([]string, 0, len(r.fields)-1)
	fields = append(fields, r.fields[:i]...)
	fields = append(fields, r.fields[i+1:]...)
	return r.derive(fields), nil
}

// WithFields returns a copy of the record with all fields replaced.
// Category and number are kept.
func (r Record) WithFields(fields []string) Record {
	return r.derive(clone(fields))
}

// WithCategory returns a copy of the record with the given category.
// An empty category removes it.
func (r Record) WithCategory(category string) Record {
	out := r
	out.category = category
	out.hasCategory = category != ""
	return out
}

// WithoutCategory returns a copy of the record without category
func (r Record) WithoutCategory() Record {
	return r.WithCategory("")
}

// WithNumber returns a copy of the record with the given record number
func (r Record) WithNumber(number uint64) Record {
	out := r
	out.number = number
	return out
}

// Equal reports structural equality: same field sequence and same category.
// The record number is not compared.
func (r Record) Equal(other Record) bool {
	if r.hasCategory != other.hasCategory || r.category != other.category {
		return false
	}
	if len(r.fields) != len(other.fields) {
		return false
	}
	for i := range r.fields {
		if r.fields[i] != other.fields[i] {
			return false
		}
	}
	return true
}

// Hash returns a structural hash consistent with Equal.
func (r Record) Hash() uint64 {
	d := xxhash.New()
	if r.hasCategory {
		_, _ = d.WriteString("c")
		_, _ = d.WriteString(r.category)
	}
	_, _ = d.WriteString("\x00")
	for _, f := range r.fields {
		// Length prefix keeps ["ab"] and ["a","b"] apart.
		_, _ = d.WriteString(strconv.Itoa(len(f)))
		_, _ = d.WriteString(":")
		_, _ = d.WriteString(f)
	}
	return d.Sum64()
}

// String returns a compact representation for logs and test failures
func (r Record) String() string {
	var b strings.Builder
	if r.number > 0 {
		fmt.Fprintf(&b, "#%d ", r.number)
	}
	if r.hasCategory {
		fmt.Fprintf(&b, "[%s] ", r.category)
	}
	fmt.Fprintf(&b, "%q", r.fields)
	return b.String()
}

func (r Record) derive(fields []string) Record {
	out := r
	out.fields = fields
	return out
}

func (r Record) checkIndex(i, limit int) error {
	if i < 0 || i >= limit {
		return errors.Newf(errors.ErrorTypeIndexOutOfRange, "field index %d out of range for arity %d", i, len(r.fields)).
			AtRecord(r.number)
	}
	return nil
}

func clone(fields []string) []string {
	if len(fields) == 0 {
		return nil
	}
	out := make([]string, len(fields))
	copy(out, fields)
	return out
}
