// Command lsmdb drives the embedded store. With no arguments it runs a
// scripted demonstration write/read sequence against the working
// directory; with `clear`, it removes the WAL and all SSTable files from
// the working directory.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"lsmdb/internal/config"
	"lsmdb/internal/engine"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load("lsmdb.yaml")
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	if len(os.Args) > 1 && os.Args[1] == "clear" {
		if err := engine.Clear(cfg.Storage.DataDir, cfg.Storage.WALFileName); err != nil {
			logger.Error("clear", "error", err)
			os.Exit(1)
		}
		fmt.Println("All data cleared!")
		return
	}

	if err := runDemo(cfg); err != nil {
		logger.Error("demo", "error", err)
		os.Exit(1)
	}
}

// runDemo writes 150 entries against a flush threshold of 100, printing
// progress every 25 entries, then reads back four keys spanning both the
// flushed SSTable and the live MemTable.
func runDemo(cfg config.Config) error {
	e, err := engine.Open(cfg)
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	defer e.Close()

	const total = 150
	fmt.Printf("Writing %d entries (flush threshold = %d)...\n\n", total, cfg.Storage.FlushThreshold)

	for i := 0; i < total; i++ {
		key := fmt.Sprintf("user_%03d", i)
		value := fmt.Sprintf("User Number %d", i)
		if err := e.Put([]byte(key), []byte(value)); err != nil {
			return fmt.Errorf("put %s: %w", key, err)
		}
		if (i+1)%25 == 0 {
			fmt.Printf("   Written %d entries\n", i+1)
		}
	}

	fmt.Printf("\nAll %d entries written!\n\n", total)

	fmt.Println("Reading some values:")
	for _, key := range []string{"user_000", "user_050", "user_100", "user_149"} {
		value, ok, err := e.Get([]byte(key))
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		if ok {
			fmt.Printf("   %s: %s\n", key, value)
		} else {
			fmt.Printf("   %s: <not found>\n", key)
		}
	}

	fmt.Println("\nNote: user_000 to user_099 are in sstable_000000.sst")
	fmt.Println("   user_100 to user_149 are still in the MemTable")
	fmt.Println("\nTo clear all data: lsmdb clear")

	return nil
}
