package config

import (
	"time"

	"github.com/coral-mesh/dwarf-type-reader/internal/constants"
)

const (
	// DefaultFormat is the document encoding.
	DefaultFormat = "json"
	// DefaultLogLevel is the stderr log level.
	DefaultLogLevel = "warn"
	// DefaultLogFormat picks pretty logs on a terminal.
	DefaultLogFormat = "auto"
	// DefaultWatchDebounce waits for a linker to finish writing.
	DefaultWatchDebounce = 250 * time.Millisecond
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Extract: ExtractConfig{
			Workers: constants.DefaultWorkers,
		},
		Output: OutputConfig{
			Format: DefaultFormat,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Watch: WatchConfig{
			Debounce: DefaultWatchDebounce,
		},
	}
}
