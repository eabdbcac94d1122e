package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/dwarf-type-reader/internal/cli/helpers"
	"github.com/coral-mesh/dwarf-type-reader/internal/config"
	"github.com/coral-mesh/dwarf-type-reader/internal/extract"
)

type fileStats struct {
	Path        string `header:"PATH" json:"path" yaml:"path"`
	Locals      int    `header:"LOCALS" json:"locals" yaml:"locals"`
	Globals     int    `header:"GLOBALS" json:"globals" yaml:"globals"`
	Types       int    `header:"TYPES" json:"types" yaml:"types"`
	Diagnostics int    `header:"DIAGNOSTICS" json:"diagnostics" yaml:"diagnostics"`
	Conflicts   int    `header:"CONFLICTS" json:"conflicts" yaml:"conflicts"`
	Error       string `header:"ERROR" json:"error,omitempty" yaml:"error,omitempty"`
}

type diagnosticRow struct {
	Path    string `header:"PATH" json:"path" yaml:"path"`
	Unit    string `header:"UNIT" json:"unit" yaml:"unit"`
	Kind    string `header:"KIND" json:"kind" yaml:"kind"`
	Offset  string `header:"OFFSET" json:"offset" yaml:"offset"`
	Message string `header:"MESSAGE" json:"message" yaml:"message"`
}

func newStatsCmd() *cobra.Command {
	var (
		ef          extractFlags
		format      string
		diagnostics bool
	)

	cmd := &cobra.Command{
		Use:   "stats [files...]",
		Short: "Summarize the debug info of each input",
		Long: `Extract every input and print one row per file with the number of
locals, globals and struct layouts found, how many diagnostics the debug info
raised and any error.

With --diagnostics every diagnostic is listed instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := helpers.ValidateFormat(format, helpers.ReportFormats); err != nil {
				return err
			}
			formatter, err := helpers.NewFormatter(helpers.OutputFormat(format))
			if err != nil {
				return err
			}

			cfg, logger, err := resolve(cmd, func(cfg *config.Config) {
				ef.apply(cmd, cfg)
			})
			if err != nil {
				return err
			}
			ex, err := extract.New(ef.options(cfg), logger)
			if err != nil {
				return err
			}

			results, err := ex.Files(cmd.Context(), inputs(args))
			if err != nil {
				return err
			}

			var report interface{}
			if diagnostics {
				report = diagnosticRows(results)
			} else {
				report = statsRows(results)
			}
			if err := formatter.Format(report, cmd.OutOrStdout()); err != nil {
				return err
			}
			return failure(results)
		},
	}

	ef.register(cmd)
	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, helpers.ReportFormats)
	cmd.Flags().BoolVar(&diagnostics, "diagnostics", false, "List every diagnostic instead of per-file totals")

	return cmd
}

func statsRows(results []extract.Result) []fileStats {
	rows := make([]fileStats, 0, len(results))
	for _, r := range results {
		row := fileStats{
			Path:        r.Path,
			Diagnostics: len(r.Diagnostics),
			Conflicts:   len(r.Conflicts),
		}
		if r.Document != nil {
			row.Locals = len(r.Document.Locals)
			row.Globals = len(r.Document.Globals)
			row.Types = len(r.Document.Types)
		}
		if r.Err != nil {
			row.Error = r.Err.Error()
		}
		rows = append(rows, row)
	}
	return rows
}

func diagnosticRows(results []extract.Result) []diagnosticRow {
	rows := []diagnosticRow{}
	for _, r := range results {
		for _, d := range r.Diagnostics {
			rows = append(rows, diagnosticRow{
				Path:    r.Path,
				Unit:    d.Unit,
				Kind:    d.Kind.String(),
				Offset:  fmt.Sprintf("%#x", uint64(d.Offset)),
				Message: d.Message,
			})
		}
	}
	return rows
}
