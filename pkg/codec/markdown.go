package codec

import (
	"strconv"
	"strings"

	"github.com/ajitpratap0/recordflow/pkg/errors"
	"github.com/ajitpratap0/recordflow/pkg/record"
)

// Bullet selects the list item marker of a MarkdownList.
type Bullet int

const (
	// BulletDash writes "- item"
	BulletDash Bullet = iota
	// BulletStar writes "* item"
	BulletStar
	// BulletNumber writes "N. item" with the record number as N
	BulletNumber
)

// ParseBullet resolves dash, star or number. An empty name is BulletDash.
func ParseBullet(name string) (Bullet, bool) {
	switch strings.ToLower(name) {
	case "", "dash", "-":
		return BulletDash, true
	case "star", "*":
		return BulletStar, true
	case "number", "numbered":
		return BulletNumber, true
	default:
		return BulletDash, false
	}
}

// MarkdownList maps Markdown list items to one-field records. Any of the
// "-", "*", "+", "N." or "N)" markers is read; blank lines are ignored.
type MarkdownList struct {
	bullet Bullet
}

// NewMarkdownList creates the codec. Numbered items take the record number,
// so a renumbering stage gives a consecutive list after filtering.
func NewMarkdownList(bullet Bullet) *MarkdownList {
	return &MarkdownList{bullet: bullet}
}

// Name implements Codec
func (m *MarkdownList) Name() string { return "markdown-list" }

// Framing implements Codec
func (m *MarkdownList) Framing() Framing { return Lines }

// Arity implements Arity
func (m *MarkdownList) Arity() int { return 1 }

// Ignore implements Ignorer
func (m *MarkdownList) Ignore(raw string) bool {
	return strings.TrimSpace(raw) == ""
}

// Parse implements Codec
func (m *MarkdownList) Parse(raw string) (record.Record, error) {
	item := strings.TrimLeft(raw, " \t")
	n := listMarker(item)
	if n == 0 {
		return record.Record{}, errors.New(errors.ErrorTypeMalformedEntry, "line is not a list item")
	}
	rest := item[n:]
	switch {
	case rest == "":
		return record.New(""), nil
	case rest[0] == ' ' || rest[0] == '\t':
		return record.New(rest[1:]), nil
	default:
		return record.Record{}, errors.New(errors.ErrorTypeMalformedEntry, "list marker is not followed by a space")
	}
}

// listMarker returns the length of the item marker at the start of s, 0 if
// there is none
func listMarker(s string) int {
	if s == "" {
		return 0
	}
	switch s[0] {
	case '-', '*', '+':
		return 1
	}
	digits := 0
	for digits < len(s) && digits < 9 && s[digits] >= '0' && s[digits] <= '9' {
		digits++
	}
	if digits > 0 && digits < len(s) && (s[digits] == '.' || s[digits] == ')') {
		return digits + 1
	}
	return 0
}

// Serialize implements Codec
func (m *MarkdownList) Serialize(r record.Record) (string, error) {
	if r.Arity() != 1 {
		return "", errors.Newf(errors.ErrorTypeArityMismatch, "list items have 1 field, record has %d", r.Arity())
	}
	value := r.FieldOr(0, "")
	if hasLineBreak(value) {
		return "", errors.New(errors.ErrorTypeSerialize, "list item contains a line break")
	}

	switch m.bullet {
	case BulletStar:
		return "* " + value, nil
	case BulletNumber:
		if r.Number() == 0 {
			return "", errors.New(errors.ErrorTypeSerialize, "numbered list item needs a record number")
		}
		return strconv.FormatUint(r.Number(), 10) + ". " + value, nil
	default:
		return "- " + value, nil
	}
}

// TableColumn names one column of a table codec.
type TableColumn struct {
	Name string
	// MinWidth pads Markdown cells, 3 at least
	MinWidth int
	Align    Alignment
}

const minMarkdownWidth = 3

// MarkdownTable writes records as rows of a Markdown pipe table. The header
// and delimiter rows come from the columns. It cannot read tables back.
type MarkdownTable struct {
	columns []TableColumn
}

// NewMarkdownTable validates columns and creates the codec.
func NewMarkdownTable(columns ...TableColumn) (*MarkdownTable, error) {
	if len(columns) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "markdown table needs at least one column")
	}
	cols := make([]TableColumn, len(columns))
	for i, c := range columns {
		if hasLineBreak(c.Name) {
			return nil, errors.Newf(errors.ErrorTypeConfig, "column %d name contains a line break", i)
		}
		c.MinWidth = max(c.MinWidth, minMarkdownWidth)
		cols[i] = c
	}
	return &MarkdownTable{columns: cols}, nil
}

// Name implements Codec
func (m *MarkdownTable) Name() string { return "markdown-table" }

// Framing implements Codec
func (m *MarkdownTable) Framing() Framing { return Lines }

// WriteOnly implements Document
func (m *MarkdownTable) WriteOnly() bool { return true }

// Parse implements Codec
func (m *MarkdownTable) Parse(string) (record.Record, error) {
	return record.Record{}, errors.New(errors.ErrorTypeConfig, "markdown tables cannot be read")
}

// Head implements Document: the header and delimiter rows.
func (m *MarkdownTable) Head() []string {
	names := make([]string, len(m.columns))
	for i, c := range m.columns {
		names[i] = c.Name
	}

	var delim strings.Builder
	delim.WriteByte('|')
	for _, c := range m.columns {
		dashes := strings.Repeat("-", c.MinWidth)
		switch c.Align {
		case AlignRight:
			dashes = dashes[1:] + ":"
		case AlignCenter:
			dashes = ":" + dashes[2:] + ":"
		default:
			dashes = ":" + dashes[1:]
		}
		delim.WriteString(" " + dashes + " |")
	}
	return []string{m.row(names), delim.String()}
}

// Tail implements Document
func (m *MarkdownTable) Tail() []string { return nil }

// Serialize implements Codec. Records shorter than the table get empty
// cells.
func (m *MarkdownTable) Serialize(r record.Record) (string, error) {
	if r.Arity() > len(m.columns) {
		return "", errors.Newf(errors.ErrorTypeArityMismatch, "table has %d columns, record has %d fields", len(m.columns), r.Arity())
	}
	cells := make([]string, len(m.columns))
	for i := range cells {
		v := r.FieldOr(i, "")
		if hasLineBreak(v) {
			return "", errors.Newf(errors.ErrorTypeSerialize, "field %d contains a line break", i)
		}
		cells[i] = v
	}
	return m.row(cells), nil
}

func (m *MarkdownTable) row(cells []string) string {
	var b strings.Builder
	b.WriteByte('|')
	for i, c := range m.columns {
		text := strings.ReplaceAll(cells[i], "|", `\|`)
		b.WriteString(" " + c.Align.pad(text, c.MinWidth, ' ') + " |")
	}
	return b.String()
}
