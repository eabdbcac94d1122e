// Package cli implements the dwarf-type-reader command line.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	configcmd "github.com/coral-mesh/dwarf-type-reader/internal/cli/config"
	"github.com/coral-mesh/dwarf-type-reader/internal/config"
	"github.com/coral-mesh/dwarf-type-reader/pkg/version"
)

func newRootCmd() *cobra.Command {
	var (
		ef  extractFlags
		out outputFlags
	)

	cmd := &cobra.Command{
		Use:   "dwarf-type-reader [files...]",
		Short: "Extract variables and struct layouts from DWARF debug info",
		Long: `Read the DWARF debug info of ELF, Mach-O and PE object files and emit
every local and global variable with its type and location, plus the byte
layout of every struct the variables reference.

Without arguments a.out in the current directory is read. All inputs are
merged into one document on stdout unless --output or --per-file is given.
An input that cannot be read is reported and the others are still emitted,
but the exit status is non-zero.

Configuration Priority:
  1. Command-line flags (highest)
  2. DWARF_TYPE_READER_* environment variables
  3. Config file (--config, $DWARF_TYPE_READER_CONFIG or
     ~/.dwarf-type-reader/config.yaml)`,
		Example: `  dwarf-type-reader ./server
  dwarf-type-reader --format yaml --pc 0x401126 a.out
  dwarf-type-reader --per-file --format protobuf bin/*`,
		SilenceUsage:  true,
		SilenceErrors: true,
		// Positional arguments are inputs, not subcommands.
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, args, &ef, &out)
		},
	}

	pf := cmd.PersistentFlags()
	pf.String("config", "", "Config file path")
	pf.String("log-level", config.DefaultLogLevel, "Log level (trace, debug, info, warn, error)")
	pf.String("log-format", config.DefaultLogFormat, "Log format (auto, pretty, json)")

	ef.register(cmd)
	out.register(cmd)

	cmd.AddCommand(newSchemaCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(configcmd.NewConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("dwarf-type-reader version %s\n", version.Version)
			cmd.Printf("Git commit: %s\n", version.GitCommit)
			cmd.Printf("Build date: %s\n", version.BuildDate)
			cmd.Printf("Go version: %s\n", version.GoVersion)
		},
	}
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newRootCmd().ExecuteContext(ctx)
}
