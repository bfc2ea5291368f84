package codec

import (
	"bytes"
	"strings"

	"github.com/ajitpratap0/recordflow/pkg/errors"
	"github.com/ajitpratap0/recordflow/pkg/pool"
	"github.com/ajitpratap0/recordflow/pkg/record"
)

// EscapePolicy selects how quote characters are embedded in quoted fields.
type EscapePolicy int

const (
	// EscapeDoubleQuote embeds a quote as two quotes
	EscapeDoubleQuote EscapePolicy = iota
	// EscapeBackslash embeds \" and \\, and encodes line breaks as \n and \r
	EscapeBackslash
	// EscapeNone allows separators inside quotes but no embedded quotes
	EscapeNone
)

// DelimitedOptions configures a Delimited codec.
type DelimitedOptions struct {
	// Separator splits fields, ',' when zero
	Separator rune
	// Quote encloses fields, no quoting when zero
	Quote  rune
	Escape EscapePolicy
	// Trim applies to unquoted fields, TrimNone by default
	Trim TrimPolicy
	// Arity fixes the field count. Zero lets the first record decide.
	Arity int
	// VariableArity accepts any field count
	VariableArity bool
}

// CSV returns the options of RFC 4180 style comma separated values.
func CSV() DelimitedOptions {
	return DelimitedOptions{Separator: ',', Quote: '"', Escape: EscapeDoubleQuote}
}

// TSV returns tab separated options without quoting.
func TSV() DelimitedOptions {
	return DelimitedOptions{Separator: '\t'}
}

// Delimited splits lines on a separator character.
type Delimited struct {
	opts DelimitedOptions
}

// NewDelimited validates opts and creates the codec.
func NewDelimited(opts DelimitedOptions) (*Delimited, error) {
	if opts.Separator == 0 {
		opts.Separator = ','
	}
	opts.Trim = opts.Trim.orDefault(TrimNone)

	switch {
	case opts.Separator == '\n' || opts.Separator == '\r':
		return nil, errors.New(errors.ErrorTypeConfig, "separator must not be a line break")
	case opts.Quote != 0 && opts.Quote == opts.Separator:
		return nil, errors.New(errors.ErrorTypeConfig, "quote and separator must differ")
	case opts.Quote == '\n' || opts.Quote == '\r':
		return nil, errors.New(errors.ErrorTypeConfig, "quote must not be a line break")
	case opts.Escape == EscapeBackslash && (opts.Separator == '\\' || opts.Quote == '\\'):
		return nil, errors.New(errors.ErrorTypeConfig, "backslash escaping conflicts with separator or quote")
	case opts.Arity < 0:
		return nil, errors.Newf(errors.ErrorTypeConfig, "invalid arity %d", opts.Arity)
	case opts.Arity > 0 && opts.VariableArity:
		return nil, errors.New(errors.ErrorTypeConfig, "fixed arity and variable arity are exclusive")
	}
	return &Delimited{opts: opts}, nil
}

// Name implements Codec
func (d *Delimited) Name() string { return "delimited" }

// Framing implements Codec
func (d *Delimited) Framing() Framing { return Lines }

// Options returns the validated options
func (d *Delimited) Options() DelimitedOptions { return d.opts }

// Arity implements Arity
func (d *Delimited) Arity() int {
	switch {
	case d.opts.VariableArity:
		return AnyArity
	case d.opts.Arity > 0:
		return d.opts.Arity
	default:
		return FirstArity
	}
}

// Parse implements Codec
func (d *Delimited) Parse(raw string) (record.Record, error) {
	fields, err := d.split(raw)
	if err != nil {
		return record.Record{}, err
	}
	if d.opts.Arity > 0 && len(fields) != d.opts.Arity {
		return record.Record{}, errors.Newf(errors.ErrorTypeParse,
			"expected %d fields, found %d", d.opts.Arity, len(fields))
	}
	return record.New(fields...), nil
}

func (d *Delimited) split(raw string) ([]string, error) {
	runes := []rune(raw)
	sep, quote := d.opts.Separator, d.opts.Quote
	fields := make([]string, 0, 8)
	var b strings.Builder

	i := 0
	for {
		// start of a field
		if quote != 0 && i < len(runes) && runes[i] == quote {
			next, err := d.quoted(runes, i+1, &b)
			if err != nil {
				return nil, err
			}
			fields = append(fields, b.String())
			b.Reset()
			if next == len(runes) {
				return fields, nil
			}
			if runes[next] != sep {
				return nil, errors.Newf(errors.ErrorTypeParse, "unexpected %q after closing quote at column %d", runes[next], next+1)
			}
			i = next + 1
			continue
		}

		start := i
		for i < len(runes) && runes[i] != sep {
			if quote != 0 && runes[i] == quote {
				return nil, errors.Newf(errors.ErrorTypeParse, "bare quote in unquoted field at column %d", i+1)
			}
			i++
		}
		fields = append(fields, d.opts.Trim.apply(string(runes[start:i]), isSpace))
		if i == len(runes) {
			return fields, nil
		}
		i++ // separator
	}
}

// quoted reads a quoted field body starting after the opening quote and
// returns the index after the closing quote.
func (d *Delimited) quoted(runes []rune, i int, b *strings.Builder) (int, error) {
	quote := d.opts.Quote
	for i < len(runes) {
		r := runes[i]
		switch {
		case d.opts.Escape == EscapeBackslash && r == '\\':
			if i+1 == len(runes) {
				return 0, errors.New(errors.ErrorTypeParse, "unterminated escape sequence")
			}
			switch runes[i+1] {
			case quote, '\\':
				b.WriteRune(runes[i+1])
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			default:
				return 0, errors.Newf(errors.ErrorTypeParse, "invalid escape sequence \\%c at column %d", runes[i+1], i+1)
			}
			i += 2
		case r == quote:
			if d.opts.Escape == EscapeDoubleQuote && i+1 < len(runes) && runes[i+1] == quote {
				b.WriteRune(quote)
				i += 2
				continue
			}
			return i + 1, nil
		default:
			b.WriteRune(r)
			i++
		}
	}
	return 0, errors.New(errors.ErrorTypeParse, "unterminated quoted field")
}

// Serialize implements Codec
func (d *Delimited) Serialize(r record.Record) (string, error) {
	n := r.Arity()
	if n == 0 {
		return "", errors.New(errors.ErrorTypeArityMismatch, "delimited records need at least one field")
	}
	if d.opts.Arity > 0 && n != d.opts.Arity {
		return "", errors.Newf(errors.ErrorTypeArityMismatch, "expected %d fields, record has %d", d.opts.Arity, n)
	}

	b := pool.Buffers.Get()
	defer pool.Buffers.Put(b)
	for i, field := range r.Fields() {
		if i > 0 {
			b.WriteRune(d.opts.Separator)
		}
		if err := d.writeField(b, i, field); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

func (d *Delimited) writeField(b *bytes.Buffer, index int, field string) error {
	if !d.needsQuote(field) {
		b.WriteString(field)
		return nil
	}

	quote := d.opts.Quote
	if quote == 0 {
		return errors.Newf(errors.ErrorTypeSerialize, "field %d needs quoting but no quote character is configured", index)
	}
	if d.opts.Escape != EscapeBackslash && hasLineBreak(field) {
		return errors.Newf(errors.ErrorTypeSerialize, "field %d contains a line break", index)
	}
	if d.opts.Escape == EscapeNone && strings.ContainsRune(field, quote) {
		return errors.Newf(errors.ErrorTypeSerialize, "field %d contains a quote and escaping is disabled", index)
	}

	b.WriteRune(quote)
	for _, r := range field {
		switch {
		case r == quote && d.opts.Escape == EscapeDoubleQuote:
			b.WriteRune(quote)
			b.WriteRune(quote)
		case d.opts.Escape == EscapeBackslash && (r == quote || r == '\\'):
			b.WriteByte('\\')
			b.WriteRune(r)
		case d.opts.Escape == EscapeBackslash && r == '\n':
			b.WriteString(`\n`)
		case d.opts.Escape == EscapeBackslash && r == '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteRune(quote)
	return nil
}

func (d *Delimited) needsQuote(field string) bool {
	if strings.ContainsRune(field, d.opts.Separator) || hasLineBreak(field) {
		return true
	}
	if d.opts.Quote != 0 && strings.ContainsRune(field, d.opts.Quote) {
		return true
	}
	if d.opts.Escape == EscapeBackslash && d.opts.Quote != 0 && strings.ContainsRune(field, '\\') {
		return true
	}
	return d.opts.Trim.trimsAway(field, isSpace)
}
