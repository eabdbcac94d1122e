package cli

import (
	"github.com/spf13/cobra"

	"github.com/coral-mesh/dwarf-type-reader/internal/cli/helpers"
	"github.com/coral-mesh/dwarf-type-reader/internal/config"
	"github.com/coral-mesh/dwarf-type-reader/internal/extract"
	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo/document"
)

func newWatchCmd() *cobra.Command {
	var (
		ef       extractFlags
		format   string
		debounce = config.DefaultWatchDebounce
	)

	cmd := &cobra.Command{
		Use:   "watch [files...]",
		Short: "Rewrite per-file documents whenever an input changes",
		Long: `Extract every input once, then keep <input>.debuginfo[.ext] up to date
each time an input is rebuilt. Runs until interrupted.

Failures are logged and do not stop watching.`,
		Example: `  dwarf-type-reader watch --format yaml ./build/server`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := resolve(cmd, func(cfg *config.Config) {
				ef.apply(cmd, cfg)
				if cmd.Flags().Changed("format") {
					cfg.Output.Format = format
				}
				if cmd.Flags().Changed("debounce") {
					cfg.Watch.Debounce = debounce
				}
				// Documents always go next to their inputs.
				cfg.Output.Path = ""
			})
			if err != nil {
				return err
			}

			f, err := document.ParseFormat(cfg.Output.Format)
			if err != nil {
				return err
			}
			ex, err := extract.New(ef.options(cfg), logger)
			if err != nil {
				return err
			}

			w := extract.NewWatcher(ex, cfg.Watch.Debounce, logger)
			return w.Run(cmd.Context(), inputs(args), func(r extract.Result) {
				writePerFile([]extract.Result{r}, f, logger)
			})
		},
	}

	ef.register(cmd)
	helpers.AddDocumentFormatFlag(cmd, &format)
	cmd.Flags().DurationVar(&debounce, "debounce", debounce, "Wait this long after the last change before extracting")

	return cmd
}
