package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/dwarf-type-reader/internal/cli/helpers"
	"github.com/coral-mesh/dwarf-type-reader/internal/config"
	"github.com/coral-mesh/dwarf-type-reader/internal/extract"
	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo/document"
)

// outputFlags select where documents go.
type outputFlags struct {
	format  string
	path    string
	perFile bool
}

func (f *outputFlags) register(cmd *cobra.Command) {
	helpers.AddDocumentFormatFlag(cmd, &f.format)
	cmd.Flags().StringVarP(&f.path, "output", "o", "", "Write the merged document to this file (default stdout)")
	cmd.Flags().BoolVar(&f.perFile, "per-file", false, "Write <input>.debuginfo[.ext] next to every input")
}

func (f *outputFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("format") {
		cfg.Output.Format = f.format
	}
	if changed("output") {
		cfg.Output.Path = f.path
	}
	if changed("per-file") {
		cfg.Output.PerFile = f.perFile
	}
}

func runExtract(cmd *cobra.Command, args []string, ef *extractFlags, out *outputFlags) error {
	cfg, logger, err := resolve(cmd, func(cfg *config.Config) {
		ef.apply(cmd, cfg)
		out.apply(cmd, cfg)
	})
	if err != nil {
		return err
	}

	format, err := document.ParseFormat(cfg.Output.Format)
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

	if cfg.Output.PerFile {
		writePerFile(results, format, logger)
		return failure(results)
	}

	doc, conflicts := extract.Merge(results)
	for _, name := range conflicts {
		logger.Warn().Str("type", name).Msg("Struct layout differs between documents, keeping the first")
	}

	if cfg.Output.Path == "" {
		if err := document.Encode(cmd.OutOrStdout(), doc, format); err != nil {
			return fmt.Errorf("failed to write document: %w", err)
		}
	} else if err := extract.WriteDocument(cfg.Output.Path, doc, format, logger); err != nil {
		return err
	}
	return failure(results)
}

// writePerFile writes the document of every successful result next to its
// input. A failed write marks that result as failed.
func writePerFile(results []extract.Result, format document.Format, logger zerolog.Logger) {
	for i, r := range results {
		if r.Err != nil {
			continue
		}
		path, err := extract.WriteFile(r, format, logger)
		if err != nil {
			results[i].Err = err
			logger.Error().Err(err).Str("path", r.Path).Msg("Failed to write document")
			continue
		}
		logger.Info().Str("path", r.Path).Str("output", path).Msg("Wrote document")
	}
}

// failure summarizes failed inputs into the command error.
func failure(results []extract.Result) error {
	failed := extract.Failed(results)
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d inputs failed: %w", len(failed), len(results), extract.Err(results))
}
