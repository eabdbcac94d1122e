package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/dwarf-type-reader/internal/cli/helpers"
	"github.com/coral-mesh/dwarf-type-reader/internal/config"
	"github.com/coral-mesh/dwarf-type-reader/internal/constants"
	"github.com/coral-mesh/dwarf-type-reader/internal/extract"
	"github.com/coral-mesh/dwarf-type-reader/internal/logging"
)

// extractFlags are the flags of every command that reads object files.
type extractFlags struct {
	arch        string
	pointerSize int
	pc          helpers.Address
	strict      bool
	workers     int
	maxEntries  int
}

func (f *extractFlags) register(cmd *cobra.Command) {
	helpers.AddArchFlag(cmd, &f.arch)
	cmd.Flags().IntVar(&f.pointerSize, "pointer-size", 0, "Pointer width override in bytes (4 or 8)")
	cmd.Flags().Var(&f.pc, "pc", "Only collect variables valid at this program counter (hex accepted)")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "Fail an input on its first diagnostic")
	cmd.Flags().IntVar(&f.workers, "workers", constants.DefaultWorkers, "Number of input files processed in parallel")
	cmd.Flags().IntVar(&f.maxEntries, "max-entries", 0, "Debug entries loaded per file (0 = unlimited)")
}

// apply copies the flags the user set over cfg.
func (f *extractFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("arch") {
		cfg.Extract.Arch = f.arch
	}
	if changed("pointer-size") {
		cfg.Extract.PointerSize = f.pointerSize
	}
	if changed("strict") {
		cfg.Extract.Strict = f.strict
	}
	if changed("workers") {
		cfg.Extract.Workers = f.workers
	}
	if changed("max-entries") {
		cfg.Extract.MaxEntries = f.maxEntries
	}
}

// options builds the extractor options from the resolved config.
func (f *extractFlags) options(cfg *config.Config) extract.Options {
	return extract.Options{
		Arch:        cfg.Extract.Arch,
		PointerSize: cfg.Extract.PointerSize,
		PC:          f.pc.Value,
		FilterPC:    f.pc.IsSet(),
		Strict:      cfg.Extract.Strict,
		Workers:     cfg.Extract.Workers,
		MaxEntries:  cfg.Extract.MaxEntries,
	}
}

// loadConfig reads the config file named by --config and applies the
// persistent logging flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Root().PersistentFlags()

	path, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.NewLoader(path).Load()
	if err != nil {
		return nil, err
	}

	if flags.Changed("log-level") {
		if cfg.Logging.Level, err = flags.GetString("log-level"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("log-format") {
		if cfg.Logging.Format, err = flags.GetString("log-format"); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// resolve loads the config and lets the command's flags override it.
func resolve(cmd *cobra.Command, override func(*config.Config)) (*config.Config, zerolog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	override(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("invalid options: %w", err)
	}
	return cfg, newLogger(cmd, cfg), nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) zerolog.Logger {
	out := cmd.ErrOrStderr()
	return logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Pretty: logging.PrettyFor(cfg.Logging.Format, out),
		Output: out,
	})
}

// inputs returns the positional arguments, or the conventional default.
func inputs(args []string) []string {
	if len(args) == 0 {
		return []string{constants.DefaultInput}
	}
	return args
}
