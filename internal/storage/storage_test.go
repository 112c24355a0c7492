package storage

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFileKey(t *testing.T) {
	key := GenerateFileKey("u-1", "Quarterly Report.pdf")

	assert.True(t, strings.HasPrefix(key, "uploads/u-1/"))
	assert.True(t, strings.HasSuffix(key, ".pdf"))

	other := GenerateFileKey("u-1", "Quarterly Report.pdf")
	assert.NotEqual(t, key, other, "keys are unique per upload")
}

func TestGenerateFileKeyNoExtension(t *testing.T) {
	key := GenerateFileKey("u-1", "README")
	assert.True(t, strings.HasPrefix(key, "uploads/u-1/"))
	assert.NotContains(t, key[len("uploads/u-1/"):], ".")
}

func TestProgressReaderReportsFractions(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 100)
	var fractions []float64
	r := newProgressReader(bytes.NewReader(data), int64(len(data)), func(f float64) {
		fractions = append(fractions, f)
	})

	buf := make([]byte, 40)
	_, err := r.Read(buf)
	require.NoError(t, err)
	require.NotEmpty(t, fractions)
	assert.InDelta(t, 0.4, fractions[len(fractions)-1], 0.001)

	_, err = io.Copy(io.Discard, r)
	require.NoError(t, err)
	assert.Equal(t, 1.0, fractions[len(fractions)-1])
}

func TestProgressReaderCapsAtOne(t *testing.T) {
	// More bytes than the declared total never reports past 1.
	data := bytes.Repeat([]byte("x"), 60)
	var last float64
	r := newProgressReader(bytes.NewReader(data), 50, func(f float64) { last = f })

	_, err := io.Copy(io.Discard, r)
	require.NoError(t, err)
	assert.Equal(t, 1.0, last)
}

func TestProgressReaderNilCallback(t *testing.T) {
	r := newProgressReader(strings.NewReader("abc"), 3, nil)
	_, err := io.Copy(io.Discard, r)
	assert.NoError(t, err)
}
