// Package config holds the engine's tunables: the data directory, the WAL
// file name, and the flush threshold. It can be loaded from an optional
// YAML file; absent a file, Default is used.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Config is the root configuration for an Engine.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
}

// StorageConfig covers on-disk layout and MemTable sizing.
type StorageConfig struct {
	// DataDir is the working directory holding the WAL and SSTable files.
	DataDir string `yaml:"data_dir"`
	// WALFileName is the WAL's file name within DataDir.
	WALFileName string `yaml:"wal_file_name"`
	// FlushThreshold is the entry count at or above which a Put triggers a
	// flush. Must be strictly positive.
	FlushThreshold int `yaml:"flush_threshold"`
}

// Default returns the baseline configuration: current directory,
// data.log, threshold 100.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			DataDir:        ".",
			WALFileName:    "data.log",
			FlushThreshold: 100,
		},
	}
}

// Load reads a YAML config file at path, layering it over Default for any
// field left unset in the file. A missing file is not an error; Default is
// returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}
