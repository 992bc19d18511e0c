// Package memtable implements the engine's in-memory write buffer: a
// mapping from key to value, keyed by a skip list so a flush can take a
// key-ordered snapshot without a separate sort pass.
package memtable

import (
	"bytes"

	"github.com/zhangyunhao116/skipmap"

	"lsmdb/pkg/sstable"
	"lsmdb/pkg/types"
)

// MemTable is the mutable, ordered write buffer fronting the WAL-backed
// engine. It holds only keys currently believed present; deletes remove the
// key outright rather than recording a tombstone (see the tombstone open
// question in the design notes).
type MemTable struct {
	entries *skipmap.FuncMap[[]byte, []byte]
}

// New returns an empty MemTable.
func New() *MemTable {
	return &MemTable{
		entries: skipmap.NewFunc[[]byte, []byte](func(a, b []byte) bool {
			return bytes.Compare(a, b) < 0
		}),
	}
}

// Get returns the value for key and whether it was present.
func (mt *MemTable) Get(key types.Key) (types.Value, bool) {
	return mt.entries.Load(key)
}

// Put inserts or overwrites key.
func (mt *MemTable) Put(key types.Key, value types.Value) {
	mt.entries.Store(key, value)
}

// Delete removes key. Deleting an absent key is a no-op.
func (mt *MemTable) Delete(key types.Key) {
	mt.entries.Delete(key)
}

// Len returns the number of entries currently buffered.
func (mt *MemTable) Len() int {
	return mt.entries.Len()
}

// Snapshot returns every entry in ascending key order, the form Flush needs
// to hand to the sstable codec.
func (mt *MemTable) Snapshot() []sstable.Entry {
	out := make([]sstable.Entry, 0, mt.entries.Len())
	mt.entries.Range(func(key []byte, value []byte) bool {
		out = append(out, sstable.Entry{Key: key, Value: value})
		return true
	})
	return out
}

// Clear drops every entry, used once a flush's SSTable write has succeeded.
func (mt *MemTable) Clear() {
	mt.entries = skipmap.NewFunc[[]byte, []byte](func(a, b []byte) bool {
		return bytes.Compare(a, b) < 0
	})
}
