package codec

import (
	"strings"
	"unicode"
)

// TrimPolicy selects which side of a value is trimmed on parse.
type TrimPolicy int

const (
	// TrimDefault uses the codec default: TrimNone for Delimited, TrimBoth for FixedWidth
	TrimDefault TrimPolicy = iota
	// TrimNone keeps values as read
	TrimNone
	// TrimLeading strips at the start of a value
	TrimLeading
	// TrimTrailing strips at the end of a value
	TrimTrailing
	// TrimBoth strips at both ends of a value
	TrimBoth
)

func (p TrimPolicy) orDefault(def TrimPolicy) TrimPolicy {
	if p == TrimDefault {
		return def
	}
	return p
}

func (p TrimPolicy) leading() bool {
	return p == TrimLeading || p == TrimBoth
}

func (p TrimPolicy) trailing() bool {
	return p == TrimTrailing || p == TrimBoth
}

// apply trims runes matching strip per policy.
func (p TrimPolicy) apply(s string, strip func(rune) bool) string {
	if p.leading() {
		s = strings.TrimLeftFunc(s, strip)
	}
	if p.trailing() {
		s = strings.TrimRightFunc(s, strip)
	}
	return s
}

// trimsAway reports whether applying the policy would change s.
func (p TrimPolicy) trimsAway(s string, strip func(rune) bool) bool {
	return p.apply(s, strip) != s
}

// ParseTrimPolicy resolves a policy name: none, leading, trailing, both.
// An empty name is TrimDefault.
func ParseTrimPolicy(name string) (TrimPolicy, bool) {
	switch strings.ToLower(name) {
	case "":
		return TrimDefault, true
	case "none":
		return TrimNone, true
	case "leading", "left":
		return TrimLeading, true
	case "trailing", "right":
		return TrimTrailing, true
	case "both":
		return TrimBoth, true
	default:
		return TrimDefault, false
	}
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r)
}

func hasLineBreak(s string) bool {
	return strings.ContainsAny(s, "\r\n")
}
