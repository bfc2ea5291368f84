package codec

import (
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/ajitpratap0/recordflow/pkg/errors"
	"github.com/ajitpratap0/recordflow/pkg/record"
)

// KeyValueOptions configures a KeyValue codec.
type KeyValueOptions struct {
	// PairSeparator splits key from value, "=" when empty. Ignored with Escapes.
	PairSeparator string
	// CommentPrefixes mark ignored lines, "#" and "!" when nil
	CommentPrefixes []string
	// SectionsAsCategory turns [section] lines into the category of the
	// entries that follow
	SectionsAsCategory bool
	// Escapes enables properties syntax: '=', ':' or whitespace separate
	// key and value, backslash escapes and line continuation.
	Escapes bool
}

// KeyValue reads key/value entries such as properties and ini files.
// Records always have arity 2.
type KeyValue struct {
	opts KeyValueOptions
}

// NewKeyValue validates opts and creates the codec.
func NewKeyValue(opts KeyValueOptions) (*KeyValue, error) {
	if opts.PairSeparator == "" {
		opts.PairSeparator = "="
	}
	if opts.CommentPrefixes == nil {
		opts.CommentPrefixes = []string{"#", "!"}
	}
	if hasLineBreak(opts.PairSeparator) {
		return nil, errors.New(errors.ErrorTypeConfig, "pair separator must not contain a line break")
	}
	for _, p := range opts.CommentPrefixes {
		if p == "" {
			return nil, errors.New(errors.ErrorTypeConfig, "empty comment prefix")
		}
	}
	return &KeyValue{opts: opts}, nil
}

// Name implements Codec
func (k *KeyValue) Name() string { return "key-value" }

// Framing implements Codec
func (k *KeyValue) Framing() Framing { return Lines }

// Arity implements Arity
func (k *KeyValue) Arity() int { return 2 }

// Ignore implements Ignorer: blank lines and comment lines.
func (k *KeyValue) Ignore(raw string) bool {
	trimmed := strings.TrimLeft(raw, " \t\f")
	if trimmed == "" {
		return true
	}
	return k.isComment(trimmed)
}

func (k *KeyValue) isComment(s string) bool {
	for _, p := range k.opts.CommentPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// Section implements Sectioner
func (k *KeyValue) Section(raw string) (string, bool) {
	if !k.opts.SectionsAsCategory {
		return "", false
	}
	s := strings.TrimSpace(raw)
	if len(s) >= 2 && s[0] == '[' && s[len(s)-1] == ']' {
		return strings.TrimSpace(s[1 : len(s)-1]), true
	}
	return "", false
}

// Sections implements Sectioner
func (k *KeyValue) Sections() bool { return k.opts.SectionsAsCategory }

// SectionHeader implements Sectioner
func (k *KeyValue) SectionHeader(category string) (string, error) {
	if !k.opts.SectionsAsCategory {
		return "", errors.New(errors.ErrorTypeSerialize, "section headers are disabled")
	}
	if strings.ContainsAny(category, "[]\r\n") || strings.TrimSpace(category) != category {
		return "", errors.Newf(errors.ErrorTypeSerialize, "category %q cannot be written as a section header", category)
	}
	return "[" + category + "]", nil
}

// Continues implements Continuer: an odd number of trailing backslashes
// continues the entry.
func (k *KeyValue) Continues(raw string) bool {
	if !k.opts.Escapes {
		return false
	}
	n := len(raw) - len(strings.TrimRight(raw, `\`))
	return n%2 == 1
}

// Join implements Continuer
func (k *KeyValue) Join(unit, next string) string {
	return unit[:len(unit)-1] + strings.TrimLeft(next, " \t\f")
}

// Parse implements Codec
func (k *KeyValue) Parse(raw string) (record.Record, error) {
	if !k.opts.Escapes {
		key, value, ok := strings.Cut(raw, k.opts.PairSeparator)
		if !ok {
			return record.Record{}, errors.Newf(errors.ErrorTypeMalformedEntry,
				"entry has no %q separator", k.opts.PairSeparator)
		}
		return record.NewKeyValue(key, value), nil
	}

	rawKey, rawValue, ok := splitProperty(raw)
	if !ok {
		return record.Record{}, errors.New(errors.ErrorTypeMalformedEntry, "entry has no key/value separator")
	}
	key, err := unescape(rawKey)
	if err != nil {
		return record.Record{}, err
	}
	value, err := unescape(rawValue)
	if err != nil {
		return record.Record{}, err
	}
	return record.NewKeyValue(key, value), nil
}

func isPropertySpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\f'
}

// splitProperty splits a logical properties line. The key ends at the first
// unescaped '=', ':' or whitespace; the value starts after surrounding
// whitespace and at most one '=' or ':'.
func splitProperty(line string) (string, string, bool) {
	i := 0
	for i < len(line) && isPropertySpace(line[i]) {
		i++
	}
	keyStart := i
	escaped := false
	for ; i < len(line); i++ {
		c := line[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if c == '=' || c == ':' || isPropertySpace(c) {
			break
		}
	}
	if i == len(line) {
		return "", "", false
	}
	key := line[keyStart:i]

	for i < len(line) && isPropertySpace(line[i]) {
		i++
	}
	if i < len(line) && (line[i] == '=' || line[i] == ':') {
		i++
		for i < len(line) && isPropertySpace(line[i]) {
			i++
		}
	}
	return key, line[i:], true
}

func unescape(s string) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 == len(s) {
			return "", errors.New(errors.ErrorTypeParse, "dangling escape at end of entry")
		}
		i++
		switch s[i] {
		case 't':
			b.WriteByte('\t')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 'f':
			b.WriteByte('\f')
		case 'u':
			r, n, err := unescapeUnicode(s[i+1:])
			if err != nil {
				return "", err
			}
			b.WriteRune(r)
			i += n
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String(), nil
}

// unescapeUnicode decodes the hex digits after \u, joining surrogate pairs,
// and returns the number of bytes consumed.
func unescapeUnicode(s string) (rune, int, error) {
	hi, err := hex4(s)
	if err != nil {
		return 0, 0, err
	}
	if !utf16.IsSurrogate(hi) {
		return hi, 4, nil
	}
	if len(s) >= 10 && s[4] == '\\' && s[5] == 'u' {
		lo, err := hex4(s[6:])
		if err != nil {
			return 0, 0, err
		}
		if r := utf16.DecodeRune(hi, lo); r != 0xFFFD {
			return r, 10, nil
		}
	}
	return 0, 0, errors.Newf(errors.ErrorTypeParse, "unpaired surrogate \\u%s", s[:4])
}

func hex4(s string) (rune, error) {
	if len(s) < 4 {
		return 0, errors.New(errors.ErrorTypeParse, "truncated \\u escape")
	}
	v, err := strconv.ParseUint(s[:4], 16, 16)
	if err != nil {
		return 0, errors.Newf(errors.ErrorTypeParse, "invalid \\u escape %q", s[:4])
	}
	return rune(v), nil
}

// Serialize implements Codec. The record category is not written here;
// consumers emit SectionHeader when it changes.
func (k *KeyValue) Serialize(r record.Record) (string, error) {
	if !r.IsKeyValue() {
		return "", errors.Newf(errors.ErrorTypeArityMismatch, "key/value records have 2 fields, record has %d", r.Arity())
	}
	key, value := r.Key(), r.Value()

	if k.opts.Escapes {
		escaped := escape(key, true)
		if k.isComment(escaped) {
			escaped = escapeLead(escaped)
		}
		line := escaped + "=" + escape(value, false)
		if k.Ignore(line) {
			return "", errors.Newf(errors.ErrorTypeSerialize, "key %q would be read back as a comment", key)
		}
		return line, nil
	}

	switch {
	case hasLineBreak(key) || hasLineBreak(value):
		return "", errors.New(errors.ErrorTypeSerialize, "key/value entry contains a line break")
	case strings.Contains(key, k.opts.PairSeparator):
		return "", errors.Newf(errors.ErrorTypeSerialize, "key %q contains the pair separator", key)
	}
	line := key + k.opts.PairSeparator + value
	if k.Ignore(line) {
		return "", errors.Newf(errors.ErrorTypeSerialize, "key %q would be read back as a comment", key)
	}
	if _, ok := k.Section(line); ok {
		return "", errors.Newf(errors.ErrorTypeSerialize, "entry %q would be read back as a section header", line)
	}
	return line, nil
}

// escapeLead escapes the first rune of an escaped key so the line no longer
// starts with a comment prefix. Letters that name an escape sequence are
// written as \uXXXX.
func escapeLead(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if strings.ContainsRune("tnrfu", r) {
		return `\u` + strings.ToUpper(strconv.FormatInt(int64(r)|0x10000, 16)[1:]) + s[n:]
	}
	return `\` + s
}

func escape(s string, isKey bool) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\t':
			b.WriteString(`\t`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\f':
			b.WriteString(`\f`)
		case '=', ':':
			if isKey {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		case ' ':
			if isKey || i == 0 {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		case '#', '!', '[':
			if isKey && i == 0 {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		default:
			if r < 0x20 || r == 0x7f {
				b.WriteString(`\u`)
				b.WriteString(strings.ToUpper(strconv.FormatInt(int64(r)|0x10000, 16)[1:]))
				continue
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}
