// Package constants defines shared configuration constants.
package constants

var (
	ConfigFile = "config.yaml"

	DefaultDir = ".dwarf-type-reader"

	// EnvPrefix prefixes every environment override, e.g. DWARF_TYPE_READER_ARCH.
	EnvPrefix = "DWARF_TYPE_READER"

	// EnvConfigPath points at an alternate config file.
	EnvConfigPath = EnvPrefix + "_CONFIG"

	// DefaultInput is read when no input files are given.
	DefaultInput = "a.out"

	// OutputSuffix is appended to an input path for per-file output.
	OutputSuffix = ".debuginfo"
)

const (
	// DefaultWorkers is the number of input files processed in parallel.
	DefaultWorkers = 4

	// MaxConfigFileSize bounds config file reads.
	MaxConfigFileSize = 1 << 20

	// MaxObjectFileSize bounds the object files accepted as input.
	MaxObjectFileSize = 8 << 30
)
