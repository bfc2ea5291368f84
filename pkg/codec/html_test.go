package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/recordflow/pkg/errors"
	"github.com/ajitpratap0/recordflow/pkg/record"
)

func TestHTMLTable(t *testing.T) {
	h, err := NewHTMLTable("  ", TableColumn{Name: "name"}, TableColumn{Name: "a<b"})
	require.NoError(t, err)
	assert.False(t, Readable(h))

	assert.Equal(t, []string{
		"  <table>",
		"  <tr><th>name</th><th>a&lt;b</th></tr>",
	}, h.Head())
	assert.Equal(t, []string{"  </table>"}, h.Tail())

	raw, err := h.Serialize(record.New("Tom & Jerry", "line1\nline2"))
	require.NoError(t, err)
	assert.Equal(t, "  <tr><td>Tom &amp; Jerry</td><td>line1<br>line2</td></tr>", raw)

	raw, err = h.Serialize(record.New(""))
	require.NoError(t, err)
	assert.Equal(t, "  <tr><td>&nbsp;</td><td>&nbsp;</td></tr>", raw)

	_, err = h.Serialize(record.New("1", "2", "3"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeArityMismatch))

	_, err = h.Parse("<tr><td>x</td></tr>")
	assert.Error(t, err)
}

func TestHTMLTableValidation(t *testing.T) {
	_, err := NewHTMLTable("")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = NewHTMLTable("<div>", TableColumn{Name: "a"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	assert.True(t, Readable(NewMarkdownList(BulletDash)))
}
