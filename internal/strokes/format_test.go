package strokes

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/remfs/internal/model"
)

// buildV5 constructs a minimal, well-formed v5 stream with a single layer,
// a single stroke, and n segments.
func buildV5(t *testing.T, n int) []byte {
	t.Helper()
	var buf bytes.Buffer

	header := make([]byte, headerLen)
	copy(header, fmt.Sprintf("%s5", headerPrefix))
	for i := len(headerPrefix) + 1; i < headerLen; i++ {
		if header[i] == 0 {
			header[i] = ' '
		}
	}
	buf.Write(header)

	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(1))) // numLayers
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(1))) // numStrokes

	fields := []interface{}{
		uint32(SharpPencil), uint32(Black), float32(0), float32(2.0), float32(0), uint32(n),
	}
	for _, f := range fields {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, f))
	}
	for i := 0; i < n; i++ {
		seg := []interface{}{float32(i), float32(i), float32(0), float32(0), float32(1.5), float32(0.8)}
		for _, f := range seg {
			require.NoError(t, binary.Write(&buf, binary.LittleEndian, f))
		}
	}
	return buf.Bytes()
}

func TestParse_ValidV5Stream(t *testing.T) {
	data := buildV5(t, 3)
	doc, err := Parse(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 5, doc.Version)
	require.Len(t, doc.Strokes, 1)
	assert.Equal(t, 0, doc.Strokes[0].Layer)
	assert.Len(t, doc.Strokes[0].Segments, 3)
}

func TestParse_ShortHeaderIsBadStrokes(t *testing.T) {
	_, err := Parse(bytes.NewReader([]byte("too short")))
	require.Error(t, err)
	assert.False(t, model.IsBadStore(err))
	merr, ok := err.(*model.Error)
	require.True(t, ok)
	assert.Equal(t, model.KindBadStrokes, merr.Kind)
}

func TestParse_BadMagicIsBadStrokes(t *testing.T) {
	bad := make([]byte, headerLen)
	copy(bad, strings.Repeat("x", headerLen))
	_, err := Parse(bytes.NewReader(bad))
	require.Error(t, err)
	merr, ok := err.(*model.Error)
	require.True(t, ok)
	assert.Equal(t, model.KindBadStrokes, merr.Kind)
}

func TestParse_UnsupportedVersionIsBadStrokes(t *testing.T) {
	header := make([]byte, headerLen)
	copy(header, fmt.Sprintf("%s9", headerPrefix))
	for i := len(headerPrefix) + 1; i < headerLen; i++ {
		if header[i] == 0 {
			header[i] = ' '
		}
	}
	_, err := Parse(bytes.NewReader(header))
	require.Error(t, err)
}

func TestParse_ShortReadAtSegmentKeepsPriorStrokes(t *testing.T) {
	full := buildV5(t, 2)
	// Truncate mid-way through the second segment: the first segment and
	// the stroke itself should still come back.
	truncated := full[:len(full)-10]
	doc, err := Parse(bytes.NewReader(truncated))
	require.NoError(t, err)
	require.Len(t, doc.Strokes, 1)
	assert.Len(t, doc.Strokes[0].Segments, 1)
}
