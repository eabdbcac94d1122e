// Package config implements the 'dwarf-type-reader config' command family.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/dwarf-type-reader/internal/cli/helpers"
	"github.com/coral-mesh/dwarf-type-reader/internal/config"
	"github.com/coral-mesh/dwarf-type-reader/internal/constants"
)

// NewConfigCmd creates the config command and its subcommands.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage dwarf-type-reader configuration",
		Long: `Inspect, validate and create the dwarf-type-reader configuration file.

Configuration Priority:
  1. Command-line flags (highest)
  2. DWARF_TYPE_READER_* environment variables
  3. Config file

Environment Variables:
  DWARF_TYPE_READER_CONFIG  Override config file (default: ~/.dwarf-type-reader/config.yaml)`,
	}

	cmd.AddCommand(newViewCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newInitCmd())

	return cmd
}

// newLoader honours the root --config flag when present.
func newLoader(cmd *cobra.Command) *config.Loader {
	var path string
	if f := cmd.Flag("config"); f != nil {
		path = f.Value.String()
	}
	return config.NewLoader(path)
}

// newViewCmd creates the 'config view' command.
func newViewCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Show the effective configuration",
		Long: `Display the configuration after the config file and environment overrides
are merged over the defaults.

Use --raw to output the merged config without annotations.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(cmd.OutOrStdout(), newLoader(cmd), raw)
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Output raw YAML without annotations")

	return cmd
}

func runView(w io.Writer, loader *config.Loader, raw bool) error {
	cfg, err := loader.Read()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	if !raw {
		_, _ = fmt.Fprintf(w, "# Config file: %s (%s)\n", displayPath(loader.Path()), fileState(loader.Path()))
		_, _ = fmt.Fprintf(w, "# Environment overrides: %s_*\n", constants.EnvPrefix)
		_, _ = fmt.Fprintln(w, "#")
	}
	_, err = w.Write(data)
	return err
}

// newValidateCmd creates the 'config validate' command.
func newValidateCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		Long: `Validate the effective configuration and report every problem.

Checks:
- Known architecture and pointer size (4 or 8)
- Positive worker count, non-negative entry budget
- Known document format, log level and log format
- --per-file and output path are not combined`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := helpers.ValidateFormat(format, helpers.ReportFormats); err != nil {
				return err
			}
			return runValidate(cmd.OutOrStdout(), newLoader(cmd), helpers.OutputFormat(format))
		},
	}

	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, helpers.ReportFormats)

	return cmd
}

type validationRow struct {
	Field   string `header:"FIELD" json:"field" yaml:"field"`
	Message string `header:"MESSAGE" json:"message" yaml:"message"`
}

func runValidate(w io.Writer, loader *config.Loader, format helpers.OutputFormat) error {
	cfg, err := loader.Read()
	if err != nil {
		return err
	}

	verr := cfg.Validate()
	if verr == nil {
		if format == helpers.FormatTable {
			_, _ = fmt.Fprintf(w, "✓ Configuration is valid (%s)\n", displayPath(loader.Path()))
			return nil
		}
	}

	rows := []validationRow{}
	var multi *config.MultiValidationError
	if errors.As(verr, &multi) {
		for _, e := range multi.Errors {
			rows = append(rows, validationRow{Field: e.Field, Message: e.Message})
		}
	} else if verr != nil {
		rows = append(rows, validationRow{Message: verr.Error()})
	}

	formatter, err := helpers.NewFormatter(format)
	if err != nil {
		return err
	}
	if err := formatter.Format(rows, w); err != nil {
		return err
	}

	if len(rows) > 0 {
		return fmt.Errorf("configuration has %d problem(s)", len(rows))
	}
	return nil
}

// newInitCmd creates the 'config init' command.
func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd.OutOrStdout(), newLoader(cmd), force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return cmd
}

func runInit(w io.Writer, loader *config.Loader, force bool) error {
	path := loader.Path()
	if path == "" {
		return fmt.Errorf("no config path: set --config or %s", constants.EnvConfigPath)
	}
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
	}

	if err := loader.Save(config.Default()); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "Wrote %s\n", path)
	return nil
}

func displayPath(path string) string {
	if path == "" {
		return "none"
	}
	return path
}

func fileState(path string) string {
	if path == "" {
		return "not present"
	}
	if _, err := os.Stat(path); err != nil {
		return "not present"
	}
	return "present"
}
