// Package config loads quiverdb's configuration from an optional TOML file
// merged over hardcoded defaults, the same shape as
// zhukovaskychina-xmysql-server/server/conf builds its Cfg from an ini
// file plus struct-tag defaults — quiverdb uses pelletier/go-toml instead
// of gopkg.in/ini.v1 since the on-disk format here is TOML, not INI.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml"
)

// Config is the option table from SPEC_FULL.md §6.
type Config struct {
	PageSize            int     `toml:"page_size"`
	UseCompression      bool    `toml:"use_compression"`
	UseEncryption       bool    `toml:"use_encryption"`
	BTreeDegree         int     `toml:"btree_degree"`
	DataDir             string  `toml:"data_dir"`
	EncryptionKeyHex    string  `toml:"encryption_key_hex"`

	Buffer BufferConfig `toml:"buffer"`
	WAL    WALConfig    `toml:"wal"`
	Log    LogConfig    `toml:"log"`
}

// BufferConfig mirrors original_source's BufferConfig (initial_size /
// memory_usage_fraction) from spec.md §6.
type BufferConfig struct {
	InitialSizeBytes    int64   `toml:"initial_size_bytes"`
	MemoryUsageFraction float64 `toml:"memory_usage_fraction"`
}

// WALConfig controls segment rollover and fsync discipline.
type WALConfig struct {
	SegmentSizeBytes int64 `toml:"segment_size_bytes"`
	FsyncOnCommit    bool  `toml:"fsync_on_commit"`
}

// LogConfig controls the logging.Config derived for every component.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the hardcoded defaults from spec.md §6.
func Default() *Config {
	return &Config{
		PageSize:       4096,
		UseCompression: true,
		UseEncryption:  false,
		BTreeDegree:    10,
		DataDir:        "./data",
		Buffer: BufferConfig{
			InitialSizeBytes:    0,
			MemoryUsageFraction: 0.25,
		},
		WAL: WALConfig{
			SegmentSizeBytes: 16 * 1024 * 1024,
			FsyncOnCommit:    true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a TOML file at path and overlays it onto the defaults. A
// missing file is not an error — callers get defaults, matching the
// teacher's "config file is optional, hardcoded defaults otherwise"
// convention.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}
