// Package charset binds producers and consumers to one declared character
// encoding. Decoding never substitutes silently: bytes that are not valid in
// the declared charset surface as ErrorTypeDecoding, and characters the
// charset cannot represent surface as ErrorTypeSerialize on output.
package charset

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ajitpratap0/recordflow/pkg/errors"
)

// UTF8 is the default charset name
const UTF8 = "UTF-8"

// Charset decodes raw units read from a source and encodes serialized units
// before they are written. Implementations are stateless and safe to share.
type Charset struct {
	name string
	enc  encoding.Encoding
	utf8 bool
}

// Default returns the UTF-8 charset
func Default() Charset {
	return Charset{name: UTF8, enc: unicode.UTF8, utf8: true}
}

// Lookup resolves a charset by its IANA name or alias (e.g. "UTF-8",
// "ISO-8859-1", "windows-1252", "UTF-16LE"). An empty name yields UTF-8.
func Lookup(name string) (Charset, error) {
	if name == "" || strings.EqualFold(name, UTF8) || strings.EqualFold(name, "utf8") {
		return Default(), nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return Charset{}, errors.Wrap(err, errors.ErrorTypeConfig, "unknown charset").WithDetail("charset", name)
	}
	if enc == nil {
		return Charset{}, errors.Newf(errors.ErrorTypeConfig, "charset %q is not supported", name)
	}
	canonical, err := ianaindex.IANA.Name(enc)
	if err != nil {
		canonical = name
	}
	return Charset{name: canonical, enc: enc}, nil
}

// Name returns the canonical charset name
func (c Charset) Name() string {
	if c.name == "" {
		return UTF8
	}
	return c.name
}

// IsUTF8 reports whether the charset is UTF-8, in which case raw bytes are
// passed through after validation.
func (c Charset) IsUTF8() bool {
	return c.utf8 || c.enc == nil
}

// Decode converts raw bytes into a string.
func (c Charset) Decode(raw []byte) (string, error) {
	if c.IsUTF8() {
		if !utf8.Valid(raw) {
			return "", errors.Newf(errors.ErrorTypeDecoding, "invalid %s byte sequence", UTF8)
		}
		return string(raw), nil
	}

	out, err := c.enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeDecoding, "cannot decode as "+c.Name())
	}
	if bytes.Contains(out, replacement) && !reproduces(c.enc, out, raw) {
		return "", errors.Newf(errors.ErrorTypeDecoding, "invalid %s byte sequence", c.Name())
	}
	return string(out), nil
}

// Encode converts a string into bytes of the charset.
func (c Charset) Encode(s string) ([]byte, error) {
	if c.IsUTF8() {
		return []byte(s), nil
	}
	out, err := c.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSerialize, "cannot encode as "+c.Name())
	}
	return out, nil
}

// NewReader returns r decoded into UTF-8. Units split from it must be
// checked with Validate: UTF-8 input is returned as is, and characters
// another charset's decoder substituted are marked with an invalid byte.
func (c Charset) NewReader(r io.Reader) io.Reader {
	if c.IsUTF8() {
		return r
	}
	return transform.NewReader(r, strictDecoder{dec: c.enc.NewDecoder(), enc: c.enc})
}

// Validate checks one unit read through NewReader.
func (c Charset) Validate(unit string) error {
	if !utf8.ValidString(unit) {
		return errors.Newf(errors.ErrorTypeDecoding, "invalid %s byte sequence", c.Name())
	}
	return nil
}

// replacement is U+FFFD in UTF-8, which x/text decoders write for input
// they cannot decode
var replacement = []byte(string(utf8.RuneError))

// substituted marks a replacement the decoder made up. It never occurs in
// decoder output, which is valid UTF-8.
const substituted = 0xff

// reproduces reports whether decoded encodes back to raw, so every U+FFFD
// in it was present in the input. A byte order mark on either side is
// tolerated.
func reproduces(enc encoding.Encoding, decoded, raw []byte) bool {
	again, err := enc.NewEncoder().Bytes(decoded)
	if err != nil {
		return false
	}
	return bytes.HasSuffix(again, raw) || bytes.HasSuffix(raw, again)
}

// strictDecoder wraps a decoder and marks the replacements in each chunk
// that does not encode back to its input. A chunk holding both a real
// U+FFFD and an undecodable sequence has both marked.
type strictDecoder struct {
	dec *encoding.Decoder
	enc encoding.Encoding
}

func (s strictDecoder) Reset() { s.dec.Reset() }

func (s strictDecoder) Transform(dst, src []byte, atEOF bool) (int, int, error) {
	nDst, nSrc, err := s.dec.Transform(dst, src, atEOF)
	out := dst[:nDst]
	if bytes.Contains(out, replacement) && !reproduces(s.enc, out, src[:nSrc]) {
		nDst = markSubstitutions(out)
	}
	return nDst, nSrc, err
}

// markSubstitutions rewrites every U+FFFD in b to the substituted byte in
// place and returns the new length.
func markSubstitutions(b []byte) int {
	w := 0
	for r := 0; r < len(b); {
		if bytes.HasPrefix(b[r:], replacement) {
			b[w] = substituted
			w++
			r += len(replacement)
			continue
		}
		b[w] = b[r]
		w++
		r++
	}
	return w
}
