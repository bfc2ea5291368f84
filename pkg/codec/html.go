package codec

import (
	"strings"

	"github.com/ajitpratap0/recordflow/pkg/errors"
	"github.com/ajitpratap0/recordflow/pkg/record"
)

var (
	htmlText   = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	htmlBreaks = strings.NewReplacer("\r\n", "<br>", "\r", "<br>", "\n", "<br>")
)

// HTMLTable writes records as rows of an HTML table, one row per line. It
// cannot read tables back.
type HTMLTable struct {
	columns []TableColumn
	indent  string
}

// NewHTMLTable creates the codec. indent is written before every line of
// the table.
func NewHTMLTable(indent string, columns ...TableColumn) (*HTMLTable, error) {
	if len(columns) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "html table needs at least one column")
	}
	if strings.TrimLeft(indent, " \t") != "" {
		return nil, errors.Newf(errors.ErrorTypeConfig, "indent %q must be blanks", indent)
	}
	return &HTMLTable{columns: append([]TableColumn(nil), columns...), indent: indent}, nil
}

// Name implements Codec
func (h *HTMLTable) Name() string { return "html-table" }

// Framing implements Codec
func (h *HTMLTable) Framing() Framing { return Lines }

// WriteOnly implements Document
func (h *HTMLTable) WriteOnly() bool { return true }

// Parse implements Codec
func (h *HTMLTable) Parse(string) (record.Record, error) {
	return record.Record{}, errors.New(errors.ErrorTypeConfig, "html tables cannot be read")
}

// Head implements Document: the table start and the header row.
func (h *HTMLTable) Head() []string {
	names := make([]string, len(h.columns))
	for i, c := range h.columns {
		names[i] = c.Name
	}
	return []string{h.indent + "<table>", h.row("th", names)}
}

// Tail implements Document
func (h *HTMLTable) Tail() []string {
	return []string{h.indent + "</table>"}
}

// Serialize implements Codec. Records shorter than the table get empty
// cells; line breaks become <br>.
func (h *HTMLTable) Serialize(r record.Record) (string, error) {
	if r.Arity() > len(h.columns) {
		return "", errors.Newf(errors.ErrorTypeArityMismatch, "table has %d columns, record has %d fields", len(h.columns), r.Arity())
	}
	cells := make([]string, len(h.columns))
	for i := range cells {
		cells[i] = r.FieldOr(i, "")
	}
	return h.row("td", cells), nil
}

func (h *HTMLTable) row(tag string, cells []string) string {
	var b strings.Builder
	b.WriteString(h.indent + "<tr>")
	for _, c := range cells {
		text := "&nbsp;"
		if c != "" {
			text = htmlBreaks.Replace(htmlText.Replace(c))
		}
		b.WriteString("<" + tag + ">" + text + "</" + tag + ">")
	}
	b.WriteString("</tr>")
	return b.String()
}
