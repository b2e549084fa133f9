package blob

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestWriteLayout(t *testing.T) {
	// S2 — blob layout.
	entries := []Entry{
		{Name: "a", Data: []byte{0x01, 0x02}},
		{Name: "bb", Data: []byte{0x03}},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, entries))

	expected := []byte{
		0x02, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00,
		0x02, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00,
		'a', 'b', 'b',
		0x01, 0x02, 0x03,
	}

	require.Equal(t, expected, buf.Bytes())
}

func TestRoundTrip(t *testing.T) {
	entries := []Entry{
		{Name: "alpha", Data: []byte("one")},
		{Name: "beta", Data: []byte{}},
		{Name: "gamma", Data: []byte("three-bytes")},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, entries))

	got, err := Read(&buf)
	require.NoError(t, err)

	if diff := cmp.Diff(entries, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteAcceptsEmptyEntries(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil))

	got, err := Read(&buf)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestDeterministicAcrossRuns(t *testing.T) {
	entries := []Entry{
		{Name: "a", Data: []byte("x")},
		{Name: "b", Data: []byte("y")},
	}

	var buf1, buf2 bytes.Buffer
	require.NoError(t, Write(&buf1, entries))
	require.NoError(t, Write(&buf2, entries))
	require.True(t, bytes.Equal(buf1.Bytes(), buf2.Bytes()))
}
