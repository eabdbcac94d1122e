// Package extract runs the debug-info pipeline over object files: open the
// container, load its compilation units, collect variables and types per unit
// and fold everything into output documents.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/coral-mesh/dwarf-type-reader/internal/binfile"
	"github.com/coral-mesh/dwarf-type-reader/internal/constants"
	"github.com/coral-mesh/dwarf-type-reader/internal/errors"
	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo"
	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo/arch"
	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo/document"
	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo/variables"
)

// Options controls an extraction run.
type Options struct {
	// Arch overrides the architecture detected from the container.
	Arch string
	// PointerSize overrides the pointer width in bytes; 0 keeps the
	// architecture's width.
	PointerSize int
	// PC restricts collection to variables valid at this address when
	// FilterPC is set.
	PC       uint64
	FilterPC bool
	// Strict turns the first diagnostic of a file into that file's error.
	Strict bool
	// Workers bounds how many files are processed at once.
	Workers int
	// MaxEntries bounds the debug entries loaded per file; 0 means no limit.
	MaxEntries int
}

// Result is the outcome for one input file.
type Result struct {
	Path        string
	Document    *document.Document
	Diagnostics []dwarfinfo.Diagnostic
	// Conflicts names structs whose layout differed between units.
	Conflicts []string
	Err       error
}

// Extractor processes object files.
type Extractor struct {
	opts     Options
	override *arch.Arch
	logger   zerolog.Logger
}

// New validates opts and creates an extractor.
func New(opts Options, logger zerolog.Logger) (*Extractor, error) {
	if opts.Workers <= 0 {
		opts.Workers = constants.DefaultWorkers
	}
	if opts.MaxEntries < 0 {
		return nil, fmt.Errorf("max entries must not be negative: %d", opts.MaxEntries)
	}
	switch opts.PointerSize {
	case 0, 4, 8:
	default:
		return nil, fmt.Errorf("unsupported pointer size %d (supported: 4, 8)", opts.PointerSize)
	}

	e := &Extractor{
		opts:   opts,
		logger: logger.With().Str("component", "extract").Logger(),
	}
	if opts.Arch != "" {
		a, ok := arch.Lookup(opts.Arch)
		if !ok {
			return nil, fmt.Errorf("unknown architecture %q", opts.Arch)
		}
		e.override = &a
	}
	return e, nil
}

// Files processes every path with at most Options.Workers files in flight.
// Results keep the order of paths. A failing file does not stop the others;
// the returned error is only set when ctx is cancelled.
func (e *Extractor) Files(ctx context.Context, paths []string) ([]Result, error) {
	results := make([]Result, len(paths))
	for i, path := range paths {
		results[i].Path = path
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return err
			}
			results[i] = e.File(gctx, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// File processes one object file.
func (e *Extractor) File(ctx context.Context, path string) Result {
	res := Result{Path: path}
	logger := e.logger.With().Str("path", path).Logger()

	f, err := binfile.Open(path, logger)
	if err != nil {
		res.Err = err
		logger.Error().Err(err).Msg("Failed to open input")
		return res
	}
	defer errors.DeferClose(logger, f, "failed to close object file")

	units, err := f.Units(e.opts.MaxEntries)
	if err != nil {
		res.Err = err
		logger.Error().Err(err).Msg("Failed to load debug info")
		return res
	}

	base := f.Arch
	if e.override != nil {
		base = *e.override
	} else if !base.Known() {
		logger.Warn().Msg("Unknown architecture, register names and pointer width are guessed")
	}

	doc := document.New()
	for _, u := range units {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}

		a := base
		if !a.Known() {
			a = a.WithPointerSize(u.AddrSize())
		}
		a = a.WithPointerSize(e.opts.PointerSize)

		diag := dwarfinfo.NewDiagnostics(logger, u.Name)
		c := variables.NewCollector(u, a, variables.Options{PC: e.opts.PC, FilterPC: e.opts.FilterPC}, diag, logger)
		vars := c.Collect()

		res.Diagnostics = append(res.Diagnostics, diag.Items()...)
		if e.opts.Strict {
			if err := diag.Err(); err != nil {
				res.Err = fmt.Errorf("%s: %w", path, err)
				return res
			}
		}

		for _, name := range doc.AddUnit(vars, c.Types()) {
			logger.Warn().Str("type", name).Str("unit", u.Name).Msg("Struct layout differs between units, keeping the first")
			res.Conflicts = append(res.Conflicts, name)
		}
	}

	res.Document = doc
	logger.Info().
		Int("units", len(units)).
		Int("locals", len(doc.Locals)).
		Int("globals", len(doc.Globals)).
		Int("types", len(doc.Types)).
		Int("diagnostics", len(res.Diagnostics)).
		Msg("Extracted debug info")
	return res
}

// OutputPath returns the per-file output name for input.
func OutputPath(input string, f document.Format) string {
	return input + constants.OutputSuffix + f.Extension()
}

// WriteFile encodes r's document next to its input and returns the path
// written.
func WriteFile(r Result, f document.Format, logger zerolog.Logger) (string, error) {
	if r.Err != nil {
		return "", r.Err
	}
	path := filepath.Clean(OutputPath(r.Path, f))
	if err := WriteDocument(path, r.Document, f, logger); err != nil {
		return "", err
	}
	return path, nil
}

// WriteDocument encodes d to path. The document is written to a temporary
// file first and renamed into place, so watchers never observe a partial
// document.
func WriteDocument(path string, d *document.Document, f document.Format, logger zerolog.Logger) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer errors.DeferRemove(logger, tmp.Name())

	if err := document.Encode(tmp, d, f); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	//nolint:gosec // G302: Documents are meant to be shared.
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
