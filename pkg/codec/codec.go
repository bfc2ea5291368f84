// Package codec converts between raw text units and records.
//
// A Codec is an immutable value: it holds only configuration, so one codec
// may be shared by any number of producers and consumers. Every codec obeys
// the round-trip law: for every record r the codec accepts,
// Parse(Serialize(r)) is equal to r. Serialize refuses records it could not
// reproduce rather than writing lossy output. Document codecs that only
// write, such as tables, are exempt and cannot serve as a source.
//
// # Available Codecs
//
//   - Delimited: separator-split fields with optional quoting (CSV, TSV, ...)
//   - FixedWidth: fields cut at fixed rune offsets
//   - KeyValue: key/value entries with comments, sections and escapes
//   - SingleValue: one field per line
//   - JSONLines: one JSON object or array of strings per line
//   - MarkdownList: one list item per line
//   - MarkdownTable, HTMLTable: write-only tables with header rows
package codec

import (
	"github.com/ajitpratap0/recordflow/pkg/record"
)

// FramingKind identifies how a source is split into raw units.
type FramingKind int

const (
	// FramingLine splits on LF, CRLF or CR
	FramingLine FramingKind = iota
	// FramingFixedSize splits into slices of a fixed number of bytes
	FramingFixedSize
)

// Framing describes the unit boundaries a codec expects.
type Framing struct {
	Kind FramingKind
	// Size is the slice length in bytes for FramingFixedSize
	Size int
}

// Lines is the line framing shared by most codecs
var Lines = Framing{Kind: FramingLine}

// Codec parses one raw unit into a record and serializes a record back into
// one raw unit. Parse never partially succeeds.
type Codec interface {
	// Name returns the codec name used in configuration and logs
	Name() string
	// Parse converts one raw unit into a record without number or category
	Parse(raw string) (record.Record, error)
	// Serialize converts a record into one raw unit without line separator
	Serialize(r record.Record) (string, error)
	// Framing returns how units are delimited in a source
	Framing() Framing
}

// Ignorer is implemented by codecs whose sources contain units that carry no
// record, such as comment or blank lines.
type Ignorer interface {
	Ignore(raw string) bool
}

// Sectioner is implemented by codecs with section headers that set the
// category of the records that follow them.
type Sectioner interface {
	// Section reports whether raw is a section header and returns its name
	Section(raw string) (string, bool)
	// SectionHeader returns the unit that opens a section for category
	SectionHeader(category string) (string, error)
	// Sections reports whether section headers are read and written
	Sections() bool
}

// Continuer is implemented by codecs whose logical units may span several
// lines.
type Continuer interface {
	// Continues reports whether the unit is continued on the next line
	Continues(raw string) bool
	// Join appends a continuation line to the unit read so far
	Join(unit, next string) string
}

// Document is implemented by write-only codecs whose units sit between
// fixed leading and trailing lines, such as a table header and footer.
type Document interface {
	// Head returns the lines written after opening, before any record
	Head() []string
	// Tail returns the lines written before closing
	Tail() []string
	WriteOnly() bool
}

// Readable reports whether c can parse what it writes
func Readable(c Codec) bool {
	d, ok := c.(Document)
	return !ok || !d.WriteOnly()
}

const (
	// AnyArity means records of every arity are accepted
	AnyArity = -1
	// FirstArity means the first record fixes the arity for the rest of a run
	FirstArity = 0
)

// Arity is implemented by codecs that constrain the number of fields.
type Arity interface {
	// Arity returns a positive field count, AnyArity or FirstArity
	Arity() int
}

// ArityOf returns the arity constraint of c, AnyArity when c has none.
func ArityOf(c Codec) int {
	if a, ok := c.(Arity); ok {
		return a.Arity()
	}
	return AnyArity
}

// ArityGuard tracks the arity constraint of one codec over one run. It is
// not safe for concurrent use.
type ArityGuard struct {
	expected int
}

// NewArityGuard creates a guard for the arity constraint of c.
func NewArityGuard(c Codec) *ArityGuard {
	return &ArityGuard{expected: ArityOf(c)}
}

// Check reports whether n fields are acceptable, and returns the expected
// count. Under FirstArity the first call fixes the expected count.
func (g *ArityGuard) Check(n int) (bool, int) {
	switch {
	case g.expected == AnyArity:
		return true, n
	case g.expected == FirstArity:
		g.expected = n
		return true, n
	default:
		return n == g.expected, g.expected
	}
}
