// Package engine implements the store's front door: it orders WAL append,
// in-memory mutation, and flush so the invariants in the data model hold,
// rebuilds state from the WAL at open time, and performs the cascaded read
// across the MemTable and the SSTable generations.
package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"lsmdb/internal/config"
	"lsmdb/pkg/dberrors"
	"lsmdb/pkg/memtable"
	"lsmdb/pkg/sstable"
	"lsmdb/pkg/types"
	"lsmdb/pkg/wal"
)

var generationPattern = regexp.MustCompile(`^sstable_(\d{6})\.sst$`)

// Engine owns the MemTable, the open WAL, and the SSTable generation
// sequence for one working directory. It is not safe for concurrent use;
// the store is single-writer by design (see the concurrency model in the
// design notes).
type Engine struct {
	dataDir   string
	walPath   string
	threshold int

	wal     *wal.WAL
	mt      *memtable.MemTable
	nextGen types.Generation

	// fatal is set once a flush fails after the SSTable was already written
	// but the WAL could not be truncated, per the flush failure policy. Once
	// set, every subsequent Put, Delete and Get fails with dberrors.ErrClosed
	// carrying its message; Close still releases the WAL handle.
	fatal error

	log *slog.Logger
}

// Open rebuilds an Engine from dataDir: it replays the WAL into an empty
// MemTable, opens the WAL for further appends, and scans the directory for
// existing SSTable files so the next flush never collides with one already
// on disk.
func Open(cfg config.Config) (*Engine, error) {
	dataDir := cfg.Storage.DataDir
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("engine: create data dir %s: %w", dataDir, err)
	}

	threshold := cfg.Storage.FlushThreshold
	if threshold <= 0 {
		return nil, fmt.Errorf("engine: %w: flush threshold must be positive, got %d", dberrors.ErrInvalidArgument, threshold)
	}

	walPath := filepath.Join(dataDir, cfg.Storage.WALFileName)

	mt := memtable.New()
	records, err := wal.Replay(walPath)
	if err != nil {
		return nil, fmt.Errorf("engine: replay %s: %w", walPath, err)
	}
	for _, rec := range records {
		switch rec.Kind {
		case wal.Put:
			mt.Put(rec.Key, rec.Value)
		case wal.Delete:
			mt.Delete(rec.Key)
		}
	}

	handle, err := wal.Open(walPath)
	if err != nil {
		return nil, fmt.Errorf("engine: open %s: %w", walPath, err)
	}

	nextGen, err := scanNextGeneration(dataDir)
	if err != nil {
		handle.Close()
		return nil, fmt.Errorf("engine: scan %s for sstables: %w", dataDir, err)
	}

	return &Engine{
		dataDir:   dataDir,
		walPath:   walPath,
		threshold: threshold,
		wal:       handle,
		mt:        mt,
		nextGen:   nextGen,
		log:       slog.Default().With("component", "engine", "data_dir", dataDir),
	}, nil
}

// scanNextGeneration returns one past the largest sstable_NNNNNN.sst
// generation present in dir, so a reopen against a populated directory
// never overwrites an existing SSTable (see open question 4 in the design
// notes).
func scanNextGeneration(dir string) (types.Generation, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	var next types.Generation
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := generationPattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		gen, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			continue
		}
		if candidate := types.Generation(gen) + 1; candidate > next {
			next = candidate
		}
	}
	return next, nil
}

func sstablePath(dataDir string, gen types.Generation) string {
	return filepath.Join(dataDir, fmt.Sprintf("sstable_%06d.sst", gen))
}

// Put appends a durable PUT record, then updates the MemTable, then flushes
// if the entry count has reached the threshold. The WAL append happens
// before the in-memory update: if (2) preceded (1), a crash between the two
// would lose a key that briefly existed only in memory.
func (e *Engine) Put(key types.Key, value types.Value) error {
	if err := e.checkFatal(); err != nil {
		return err
	}

	if err := e.wal.LogPut(key, value); err != nil {
		return fmt.Errorf("engine: put %q: %w", key, err)
	}
	e.mt.Put(key, value)

	if e.mt.Len() >= e.threshold {
		if err := e.Flush(); err != nil {
			return fmt.Errorf("engine: put %q: %w", key, err)
		}
	}
	return nil
}

// Delete appends a durable DELETE record, then removes the key from the
// MemTable. Deleting an absent key is not an error. Note the known
// limitation: no tombstone is recorded, so deleting a key that also lives in
// an older SSTable does not hide it — the next Get finds it there (see the
// tombstone open question in the design notes).
func (e *Engine) Delete(key types.Key) error {
	if err := e.checkFatal(); err != nil {
		return err
	}

	if err := e.wal.LogDelete(key); err != nil {
		return fmt.Errorf("engine: delete %q: %w", key, err)
	}
	e.mt.Delete(key)
	return nil
}

// Get returns the value for key, consulting the MemTable first and then
// each SSTable generation from newest to oldest. A not-found result is not
// an error.
func (e *Engine) Get(key types.Key) (types.Value, bool, error) {
	if err := e.checkFatal(); err != nil {
		return nil, false, err
	}

	if value, ok := e.mt.Get(key); ok {
		return value, true, nil
	}

	for gen := e.nextGen; gen > 0; gen-- {
		path := sstablePath(e.dataDir, gen-1)
		value, ok, err := sstable.Get(path, key)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, false, fmt.Errorf("engine: get %q from generation %d: %w", key, gen-1, err)
		}
		if ok {
			return value, true, nil
		}
	}

	return nil, false, nil
}

// Flush spills the MemTable to a new SSTable and truncates the WAL. It is a
// no-op success when the MemTable is empty. If the SSTable write fails, the
// MemTable is left untouched and the WAL is left untouched, so no
// acknowledged write is lost. If the WAL truncation fails after the SSTable
// write succeeded, the Engine is marked fatal: the new data is durable on
// disk, but the Engine can no longer safely accept further writes through
// this WAL handle.
func (e *Engine) Flush() error {
	if e.mt.Len() == 0 {
		return nil
	}

	snapshot := e.mt.Snapshot()
	gen := e.nextGen
	e.nextGen++
	path := sstablePath(e.dataDir, gen)

	if err := sstable.Write(path, snapshot); err != nil {
		e.nextGen = gen
		return fmt.Errorf("engine: %w: %v", dberrors.ErrFlushFailed, err)
	}

	e.mt.Clear()

	if err := e.wal.Reset(); err != nil {
		e.fatal = fmt.Errorf("engine: wal truncate after flush to generation %d: %w", gen, err)
		e.log.Error("flush left engine in a fatal state", "generation", gen, "error", err)
		return e.fatal
	}

	e.log.Info("flushed memtable", "generation", gen, "entries", len(snapshot))
	return nil
}

func (e *Engine) checkFatal() error {
	if e.fatal != nil {
		return fmt.Errorf("%w: %v", dberrors.ErrClosed, e.fatal)
	}
	return nil
}

// Close flushes nothing (an unflushed MemTable is recovered from the WAL on
// the next Open) and releases the WAL file handle.
func (e *Engine) Close() error {
	if err := e.wal.Close(); err != nil {
		return fmt.Errorf("engine: close: %w", err)
	}
	return nil
}

// Clear removes the WAL and every SSTable file from dataDir. It does not
// require an open Engine and is the implementation behind the CLI's `clear`
// subcommand.
func Clear(dataDir, walFileName string) error {
	walPath := filepath.Join(dataDir, walFileName)
	if err := wal.Remove(walPath); err != nil {
		return fmt.Errorf("engine: clear: %w", err)
	}

	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("engine: clear: read %s: %w", dataDir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || generationPattern.FindStringSubmatch(entry.Name()) == nil {
			continue
		}
		if err := os.Remove(filepath.Join(dataDir, entry.Name())); err != nil {
			return fmt.Errorf("engine: clear: remove %s: %w", entry.Name(), err)
		}
	}
	return nil
}
