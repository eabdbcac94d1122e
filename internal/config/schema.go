package config

import "time"

// Config is the configuration of dwarf-type-reader, read from
// ~/.dwarf-type-reader/config.yaml and overridden by DWARF_TYPE_READER_*
// environment variables and command-line flags, in that order.
type Config struct {
	Extract ExtractConfig `yaml:"extract"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
	Watch   WatchConfig   `yaml:"watch"`
}

// ExtractConfig controls how debug info is read.
type ExtractConfig struct {
	// Arch overrides the architecture detected from the object file header.
	Arch string `yaml:"arch,omitempty" env:"DWARF_TYPE_READER_ARCH"`
	// PointerSize overrides the pointer width in bytes (4 or 8).
	PointerSize int `yaml:"pointer_size,omitempty" env:"DWARF_TYPE_READER_POINTER_SIZE"`
	// Strict fails an input on its first diagnostic.
	Strict bool `yaml:"strict" env:"DWARF_TYPE_READER_STRICT"`
	// Workers is the number of input files processed in parallel.
	Workers int `yaml:"workers" env:"DWARF_TYPE_READER_WORKERS"`
	// MaxEntries bounds the debug entries loaded per file (0 = unlimited).
	MaxEntries int `yaml:"max_entries" env:"DWARF_TYPE_READER_MAX_ENTRIES"`
}

// OutputConfig controls where and how documents are written.
type OutputConfig struct {
	Format string `yaml:"format" env:"DWARF_TYPE_READER_FORMAT"`
	// Path receives the merged document; empty means stdout.
	Path string `yaml:"path,omitempty" env:"DWARF_TYPE_READER_OUTPUT"`
	// PerFile writes <input>.debuginfo[.ext] next to every input instead.
	PerFile bool `yaml:"per_file" env:"DWARF_TYPE_READER_PER_FILE"`
}

// LoggingConfig controls diagnostics output on stderr.
type LoggingConfig struct {
	Level string `yaml:"level" env:"DWARF_TYPE_READER_LOG_LEVEL"`
	// Format is auto, pretty or json. Auto picks pretty on a terminal.
	Format string `yaml:"format" env:"DWARF_TYPE_READER_LOG_FORMAT"`
}

// WatchConfig tunes the watch command.
type WatchConfig struct {
	// Debounce coalesces bursts of write events for the same file.
	Debounce time.Duration `yaml:"debounce" env:"DWARF_TYPE_READER_WATCH_DEBOUNCE"`
}
