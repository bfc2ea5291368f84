package compression

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/recordflow/pkg/errors"
)

func TestStreamRoundTrip(t *testing.T) {
	original := bytes.Repeat([]byte("a,b,1\nc,d,2\n"), 200)

	for _, algorithm := range Algorithms() {
		for _, level := range []Level{Fastest, Default, Best} {
			t.Run(string(algorithm)+"/"+level.String(), func(t *testing.T) {
				var buf bytes.Buffer
				w, err := NewWriter(&buf, Config{Algorithm: algorithm, Level: level})
				require.NoError(t, err)

				_, err = w.Write(original)
				require.NoError(t, err)
				require.NoError(t, w.Close())

				if algorithm != None {
					assert.Less(t, buf.Len(), len(original))
				}

				r, err := NewReader(&buf, algorithm)
				require.NoError(t, err)
				got, err := io.ReadAll(r)
				require.NoError(t, err)
				require.NoError(t, r.Close())
				assert.Equal(t, original, got)
			})
		}
	}
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, Zstd, a)

	a, err = ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, None, a)

	_, err = ParseAlgorithm("brotli")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestFromExtension(t *testing.T) {
	tests := map[string]Algorithm{
		"data.csv.gz":  Gzip,
		"data.csv.ZST": Zstd,
		"data.lz4":     LZ4,
		"data.csv":     None,
		"noext":        None,
	}
	for path, expected := range tests {
		assert.Equal(t, expected, FromExtension(path), path)
	}
}

func TestInvalidGzipStream(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte("not gzip")), Gzip)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSourceUnavailable))
}

func TestWriterDoesNotCloseDestination(t *testing.T) {
	dst := &closeTracker{}
	w, err := NewWriter(dst, Config{Algorithm: Gzip})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.False(t, dst.closed)
}

type closeTracker struct {
	bytes.Buffer
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}
