// Package sstable implements the immutable, sorted on-disk table that the
// engine spills a MemTable generation into. A table is a flat, self
// contained binary file: a four-byte entry count followed by that many
// length-prefixed key/value pairs, in ascending key order. There is no
// trailer, checksum, block index, or bloom filter.
package sstable

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/google/uuid"

	"lsmdb/pkg/dberrors"
	"lsmdb/pkg/types"
)

// Entry is a single key/value pair as laid out on disk.
type Entry struct {
	Key   types.Key
	Value types.Value
}

// Write serializes entries to path, truncating any existing file at that
// path. entries must already be in ascending key order; Write does not sort
// them. The file is staged at a temporary sibling path and renamed into
// place only after its contents have been forced to stable storage, so a
// failed write never leaves a partially-written file visible at path.
func Write(path string, entries []Entry) error {
	dir := filepath.Dir(path)
	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%s", filepath.Base(path), uuid.New().String()))

	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("sstable: create %s: %w", tmpPath, err)
	}

	if werr := writeEntries(file, entries); werr != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sstable: write %s: %w", path, werr)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sstable: sync %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("sstable: close %s: %w", path, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("sstable: rename %s: %w", path, err)
	}

	return nil
}

func writeEntries(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)

	if err := binary.Write(bw, binary.LittleEndian, uint32(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if err := writeField(bw, e.Key); err != nil {
			return err
		}
		if err := writeField(bw, e.Value); err != nil {
			return err
		}
	}

	return bw.Flush()
}

func writeField(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// Read reconstructs the full ordered entry list stored at path. It fails
// with a wrapped dberrors.ErrCorruptSSTable on a truncated file, a
// length-field mismatch, or invalid UTF-8 in a key or value, and with the
// underlying I/O error on a missing file or other OS failure.
func Read(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sstable: open %s: %w", path, err)
	}
	defer file.Close()

	r := bufio.NewReader(file)

	var numEntries uint32
	if err := binary.Read(r, binary.LittleEndian, &numEntries); err != nil {
		return nil, fmt.Errorf("sstable: read header of %s: %w", path, corrupt(err))
	}

	entries := make([]Entry, 0, numEntries)
	for i := uint32(0); i < numEntries; i++ {
		key, err := readField(r)
		if err != nil {
			return nil, fmt.Errorf("sstable: read key %d of %s: %w", i, path, corrupt(err))
		}
		value, err := readField(r)
		if err != nil {
			return nil, fmt.Errorf("sstable: read value %d of %s: %w", i, path, corrupt(err))
		}
		if !utf8.Valid(key) || !utf8.Valid(value) {
			return nil, fmt.Errorf("sstable: entry %d of %s: %w", i, path, dberrors.ErrCorruptSSTable)
		}
		entries = append(entries, Entry{Key: key, Value: value})
	}

	return entries, nil
}

func readField(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func corrupt(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("%w: %v", dberrors.ErrCorruptSSTable, err)
	}
	return err
}

// Get performs a point lookup against the file at path. It is equivalent to
// Read(path) followed by a linear scan; loading the whole file for a single
// key is an acknowledged baseline limitation, not an oversight — a future
// block index would avoid it.
func Get(path string, key types.Key) (types.Value, bool, error) {
	entries, err := Read(path)
	if err != nil {
		return nil, false, err
	}
	for _, e := range entries {
		if string(e.Key) == string(key) {
			return e.Value, true, nil
		}
	}
	return nil, false, nil
}
