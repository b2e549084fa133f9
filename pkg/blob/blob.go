// Package blob implements the index-first binary container the runtime
// loader memory-maps: a little-endian count, an array of (name_len,
// data_len) pairs, then every name, then every datum, each section
// written contiguously with no separators or padding.
package blob

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// maxEntrySize is the largest name or data length this format can
// express: entries at or above 4 GiB are rejected rather than silently
// truncated when written into a u32 field.
const maxEntrySize = math.MaxUint32

// Entry is one (name, data) pair to be serialized. Order among a slice of
// Entry is preserved exactly by Write and Read.
type Entry struct {
	Name string
	Data []byte
}

// FormatError reports a blob entry whose name or data exceeds the u32
// length field the wire format allocates for it.
type FormatError struct {
	Name string
	Size int
	Kind string // "name" or "data"
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("entry %q: %s too large to encode (%d bytes, max %d)", e.Name, e.Kind, e.Size, maxEntrySize)
}

func (e *FormatError) RepackError() {}

// Write serializes entries to w in the index-first layout. It validates
// every entry before writing any bytes, so a single oversized entry never
// leaves a partially written file.
func Write(w io.Writer, entries []Entry) error {
	for _, e := range entries {
		if len(e.Name) > maxEntrySize {
			return &FormatError{Name: e.Name, Size: len(e.Name), Kind: "name"}
		}
		if len(e.Data) > maxEntrySize {
			return &FormatError{Name: e.Name, Size: len(e.Data), Kind: "data"}
		}
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(entries))); err != nil {
		return err
	}

	for _, e := range entries {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(e.Name))); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(e.Data))); err != nil {
			return err
		}
	}

	for _, e := range entries {
		if _, err := io.WriteString(w, e.Name); err != nil {
			return err
		}
	}

	for _, e := range entries {
		if _, err := w.Write(e.Data); err != nil {
			return err
		}
	}

	return nil
}

// Read decodes the layout Write produces, preserving entry order.
func Read(r io.Reader) ([]Entry, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("reading entry count: %w", err)
	}

	type lengths struct {
		nameLen, dataLen uint32
	}
	index := make([]lengths, count)
	for i := range index {
		if err := binary.Read(r, binary.LittleEndian, &index[i].nameLen); err != nil {
			return nil, fmt.Errorf("reading name length of entry %d: %w", i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &index[i].dataLen); err != nil {
			return nil, fmt.Errorf("reading data length of entry %d: %w", i, err)
		}
	}

	entries := make([]Entry, count)
	for i, l := range index {
		name := make([]byte, l.nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, fmt.Errorf("reading name of entry %d: %w", i, err)
		}
		entries[i].Name = string(name)
	}

	for i, l := range index {
		data := make([]byte, l.dataLen)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("reading data of entry %d: %w", i, err)
		}
		entries[i].Data = data
	}

	return entries, nil
}
