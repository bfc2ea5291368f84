package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/recordflow/pkg/errors"
	"github.com/ajitpratap0/recordflow/pkg/record"
)

func mustKeyValue(t *testing.T, opts KeyValueOptions) *KeyValue {
	t.Helper()
	k, err := NewKeyValue(opts)
	require.NoError(t, err)
	return k
}

func TestKeyValueParse(t *testing.T) {
	k := mustKeyValue(t, KeyValueOptions{})

	r, err := k.Parse("host=localhost")
	require.NoError(t, err)
	assert.Equal(t, "host", r.Key())
	assert.Equal(t, "localhost", r.Value())
	assert.Equal(t, 2, r.Arity())

	r, err = k.Parse("a=b=c")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b=c"}, r.Fields())

	r, err = k.Parse("empty=")
	require.NoError(t, err)
	assert.Equal(t, []string{"empty", ""}, r.Fields())

	_, err = k.Parse("no separator here")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeMalformedEntry))
}

func TestKeyValueCustomSeparator(t *testing.T) {
	k := mustKeyValue(t, KeyValueOptions{PairSeparator: " -> ", CommentPrefixes: []string{"//"}})

	r, err := k.Parse("a -> b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, r.Fields())

	assert.True(t, k.Ignore("// comment"))
	assert.False(t, k.Ignore("# not a comment -> x"))
	assertRoundTrip(t, k, record.NewKeyValue("x", "y -> z"))
}

func TestKeyValueIgnore(t *testing.T) {
	k := mustKeyValue(t, KeyValueOptions{})

	for _, raw := range []string{"", "   ", "# comment", "  ! other", "\t#x=y"} {
		assert.True(t, k.Ignore(raw), raw)
	}
	for _, raw := range []string{"key=#", "a=b", "[section]"} {
		assert.False(t, k.Ignore(raw), raw)
	}
}

func TestKeyValueSections(t *testing.T) {
	k := mustKeyValue(t, KeyValueOptions{SectionsAsCategory: true})

	name, ok := k.Section("[database]")
	assert.True(t, ok)
	assert.Equal(t, "database", name)

	name, ok = k.Section("  [ spaced ]  ")
	assert.True(t, ok)
	assert.Equal(t, "spaced", name)

	_, ok = k.Section("key=[x]")
	assert.False(t, ok)

	plain := mustKeyValue(t, KeyValueOptions{})
	_, ok = plain.Section("[database]")
	assert.False(t, ok)
	assert.False(t, plain.Sections())
	assert.True(t, k.Sections())
	_, err := plain.SectionHeader("db")
	assert.True(t, errors.IsType(err, errors.ErrorTypeSerialize))

	header, err := k.SectionHeader("db")
	require.NoError(t, err)
	assert.Equal(t, "[db]", header)

	_, err = k.SectionHeader("a]b")
	assert.True(t, errors.IsType(err, errors.ErrorTypeSerialize))

	_, err = k.Serialize(record.NewKeyValue("[x", "]"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeSerialize))
}

func TestKeyValueSerializePlain(t *testing.T) {
	k := mustKeyValue(t, KeyValueOptions{})

	raw, err := k.Serialize(record.NewKeyValue("host", "localhost"))
	require.NoError(t, err)
	assert.Equal(t, "host=localhost", raw)

	tests := []struct {
		name string
		r    record.Record
		kind errors.ErrorType
	}{
		{"separator in key", record.NewKeyValue("a=b", "c"), errors.ErrorTypeSerialize},
		{"line break", record.NewKeyValue("a", "b\nc"), errors.ErrorTypeSerialize},
		{"comment key", record.NewKeyValue("#a", "b"), errors.ErrorTypeSerialize},
		{"wrong arity", record.New("a", "b", "c"), errors.ErrorTypeArityMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := k.Serialize(tt.r)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, tt.kind))
		})
	}

	assertRoundTrip(t, k,
		record.NewKeyValue("a", "b=c"),
		record.NewKeyValue("", ""),
		record.NewKeyValue(" k ", " v "),
	)
}

func TestKeyValueEscapes(t *testing.T) {
	k := mustKeyValue(t, KeyValueOptions{Escapes: true})

	tests := []struct {
		raw   string
		key   string
		value string
	}{
		{`key\ one = value\tx`, "key one", "value\tx"},
		{"a:b", "a", "b"},
		{"a b", "a", "b"},
		{"  indented  =  spaced", "indented", "spaced"},
		{`k=\u00e9`, "k", "é"},
		{`k=\uD83D\uDE00`, "k", "😀"},
		{`k\=x=y`, "k=x", "y"},
		{"k=", "k", ""},
		{`path=c:\\dir`, "path", `c:\dir`},
	}
	for _, tt := range tests {
		r, err := k.Parse(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.key, r.Key(), tt.raw)
		assert.Equal(t, tt.value, r.Value(), tt.raw)
	}

	for _, raw := range []string{`k=\uZZZZ`, `k=\u12`, `k=\uD83D`} {
		_, err := k.Parse(raw)
		require.Error(t, err, raw)
		assert.True(t, errors.IsType(err, errors.ErrorTypeParse), raw)
	}

	_, err := k.Parse("lonely")
	assert.True(t, errors.IsType(err, errors.ErrorTypeMalformedEntry))
}

func TestKeyValueContinuation(t *testing.T) {
	k := mustKeyValue(t, KeyValueOptions{Escapes: true})

	assert.True(t, k.Continues(`a=b\`))
	assert.False(t, k.Continues(`a=b\\`))
	assert.True(t, k.Continues(`a=b\\\`))
	assert.False(t, k.Continues("a=b"))
	assert.False(t, mustKeyValue(t, KeyValueOptions{}).Continues(`a=b\`))

	unit := k.Join(`fruits=apple, \`, "    banana")
	assert.Equal(t, "fruits=apple, banana", unit)
}

func TestKeyValueEscapesRoundTrip(t *testing.T) {
	k := mustKeyValue(t, KeyValueOptions{Escapes: true, SectionsAsCategory: true})

	assertRoundTrip(t, k,
		record.NewKeyValue(" lead", "x"),
		record.NewKeyValue("a=b", ":v"),
		record.NewKeyValue("#k", " v "),
		record.NewKeyValue("[s]", "x"),
		record.NewKeyValue("k", "line1\nline2"),
		record.NewKeyValue("", ""),
		record.NewKeyValue("tab\tkey", `\`),
		record.NewKeyValue("ctl\x01", "é"),
	)

	raw, err := k.Serialize(record.NewKeyValue("a b", "c"))
	require.NoError(t, err)
	assert.Equal(t, `a\ b=c`, raw)
}

func TestKeyValueEscapesCustomCommentPrefix(t *testing.T) {
	k := mustKeyValue(t, KeyValueOptions{Escapes: true, CommentPrefixes: []string{";", "//", "u"}})

	raw, err := k.Serialize(record.NewKeyValue(";key", "v"))
	require.NoError(t, err)
	assert.Equal(t, `\;key=v`, raw)
	assert.False(t, k.Ignore(raw))

	raw, err = k.Serialize(record.NewKeyValue("user", "v"))
	require.NoError(t, err)
	assert.Equal(t, `\u0075ser=v`, raw)

	assertRoundTrip(t, k,
		record.NewKeyValue(";key", "v"),
		record.NewKeyValue("//path", "v"),
		record.NewKeyValue("user", ";x"),
		record.NewKeyValue("plain", "v"),
	)
}

func TestKeyValueValidation(t *testing.T) {
	_, err := NewKeyValue(KeyValueOptions{PairSeparator: "\n"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = NewKeyValue(KeyValueOptions{CommentPrefixes: []string{""}})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	k := mustKeyValue(t, KeyValueOptions{CommentPrefixes: []string{}})
	assert.False(t, k.Ignore("# no comments configured"))
}
