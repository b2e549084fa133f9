package bytecode

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	req := Request{Name: "pkg.mod", Source: []byte("x = 1\n"), OptimizeLevel: 2}

	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, req))

	var nameLen, optimize, sourceLen uint32
	nameLen, err := readU32(&buf)
	require.NoError(t, err)
	optimize, err = readU32(&buf)
	require.NoError(t, err)
	sourceLen, err = readU32(&buf)
	require.NoError(t, err)

	require.EqualValues(t, len(req.Name), nameLen)
	require.EqualValues(t, req.OptimizeLevel, optimize)
	require.EqualValues(t, len(req.Source), sourceLen)
}

func TestResponseFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeU32(&buf, 1))
	require.NoError(t, writeU32(&buf, 5))
	buf.WriteString("hello")

	ok, payload, err := readFrame(&buf)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hello", string(payload))
}

func TestResponseFrameError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeU32(&buf, 0))
	msg := "invalid syntax"
	require.NoError(t, writeU32(&buf, uint32(len(msg))))
	buf.WriteString(msg)

	ok, payload, err := readFrame(&buf)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, msg, string(payload))
}
