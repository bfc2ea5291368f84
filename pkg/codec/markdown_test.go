package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/recordflow/pkg/errors"
	"github.com/ajitpratap0/recordflow/pkg/record"
)

func TestMarkdownListParse(t *testing.T) {
	m := NewMarkdownList(BulletDash)

	tests := []struct {
		raw  string
		want string
	}{
		{"- milk", "milk"},
		{"* eggs", "eggs"},
		{"+ bread", "bread"},
		{"  - nested", "nested"},
		{"12. twelfth", "twelfth"},
		{"3) third", "third"},
		{"-", ""},
		{"-  two spaces", " two spaces"},
	}
	for _, tt := range tests {
		r, err := m.Parse(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, []string{tt.want}, r.Fields(), tt.raw)
	}

	for _, raw := range []string{"plain text", "-dash", "1.5 kg", "# heading"} {
		_, err := m.Parse(raw)
		assert.True(t, errors.IsType(err, errors.ErrorTypeMalformedEntry), raw)
	}

	assert.True(t, m.Ignore("   "))
	assert.False(t, m.Ignore("- x"))
}

func TestMarkdownListSerialize(t *testing.T) {
	raw, err := NewMarkdownList(BulletDash).Serialize(record.New("milk"))
	require.NoError(t, err)
	assert.Equal(t, "- milk", raw)

	raw, err = NewMarkdownList(BulletStar).Serialize(record.New("eggs"))
	require.NoError(t, err)
	assert.Equal(t, "* eggs", raw)

	numbered := NewMarkdownList(BulletNumber)
	raw, err = numbered.Serialize(record.New("bread").WithNumber(3))
	require.NoError(t, err)
	assert.Equal(t, "3. bread", raw)

	_, err = numbered.Serialize(record.New("bread"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeSerialize))

	_, err = NewMarkdownList(BulletDash).Serialize(record.New("a", "b"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeArityMismatch))

	_, err = NewMarkdownList(BulletDash).Serialize(record.New("a\nb"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeSerialize))
}

func TestMarkdownListRoundTrip(t *testing.T) {
	for _, b := range []Bullet{BulletDash, BulletStar, BulletNumber} {
		assertRoundTrip(t, NewMarkdownList(b),
			record.New("milk").WithNumber(1),
			record.New(" leading").WithNumber(2),
			record.New("- nested marker").WithNumber(3),
			record.New("").WithNumber(4),
			record.New("10. numbered text").WithNumber(10),
		)
	}
}

func TestParseBullet(t *testing.T) {
	b, ok := ParseBullet("")
	assert.True(t, ok)
	assert.Equal(t, BulletDash, b)

	b, ok = ParseBullet("number")
	assert.True(t, ok)
	assert.Equal(t, BulletNumber, b)

	_, ok = ParseBullet("arrow")
	assert.False(t, ok)
}

func TestMarkdownTable(t *testing.T) {
	m, err := NewMarkdownTable(
		TableColumn{Name: "id", Align: AlignRight},
		TableColumn{Name: "name", MinWidth: 6},
		TableColumn{Name: "note", Align: AlignCenter, MinWidth: 5},
	)
	require.NoError(t, err)
	assert.False(t, Readable(m))

	assert.Equal(t, []string{
		"|  id | name   | note  |",
		"| --: | :----- | :---: |",
	}, m.Head())
	assert.Empty(t, m.Tail())

	raw, err := m.Serialize(record.New("7", "a|b", "ok"))
	require.NoError(t, err)
	assert.Equal(t, `|   7 | a\|b   |  ok   |`, raw)

	raw, err = m.Serialize(record.New("8"))
	require.NoError(t, err)
	assert.Equal(t, "|   8 |        |       |", raw)

	_, err = m.Serialize(record.New("1", "2", "3", "4"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeArityMismatch))

	_, err = m.Serialize(record.New("1", "two\nlines"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeSerialize))

	_, err = m.Parse("| 1 |")
	assert.Error(t, err)

	_, err = NewMarkdownTable()
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
