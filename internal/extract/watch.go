package extract

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/coral-mesh/dwarf-type-reader/internal/retry"
	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo"
)

// settleRetries bounds how often a changed input is re-read while it still
// fails to parse.
const settleRetries = 4

// Watcher re-runs the extraction whenever one of its inputs changes.
type Watcher struct {
	ex       *Extractor
	debounce time.Duration
	logger   zerolog.Logger
}

// NewWatcher creates a watcher. Changes to the same file that arrive within
// debounce of each other are coalesced into one extraction.
func NewWatcher(ex *Extractor, debounce time.Duration, logger zerolog.Logger) *Watcher {
	return &Watcher{
		ex:       ex,
		debounce: debounce,
		logger:   logger.With().Str("component", "watch").Logger(),
	}
}

// Run extracts every path once, then again each time a path is rewritten,
// and hands every result to onResult. onResult is only called from the
// goroutine running Run. Run returns nil once ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, paths []string, onResult func(Result)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	// Linkers usually replace the output file instead of rewriting it, so the
	// parent directories are watched and events are filtered by name.
	targets := make(map[string]string, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		targets[abs] = p
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	results, err := w.ex.Files(ctx, paths)
	if err != nil {
		return nil
	}
	for _, r := range results {
		onResult(r)
	}

	ready := make(chan string, len(paths))
	var mu sync.Mutex
	pending := make(map[string]*time.Timer)
	defer func() {
		mu.Lock()
		for _, t := range pending {
			t.Stop()
		}
		mu.Unlock()
	}()

	schedule := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := pending[path]; ok {
			t.Reset(w.debounce)
			return
		}
		pending[path] = time.AfterFunc(w.debounce, func() {
			mu.Lock()
			delete(pending, path)
			mu.Unlock()
			select {
			case ready <- path:
			case <-ctx.Done():
			}
		})
	}

	w.logger.Info().Int("files", len(paths)).Int("dirs", len(dirs)).Msg("Watching for changes")

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			path, ok := targets[filepath.Clean(ev.Name)]
			if !ok {
				continue
			}
			w.logger.Debug().Str("path", path).Str("op", ev.Op.String()).Msg("Input changed")
			schedule(path)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("File watcher error")

		case path := <-ready:
			onResult(w.settle(ctx, path))
		}
	}
}

// settle extracts path, retrying while the file looks half written.
func (w *Watcher) settle(ctx context.Context, path string) Result {
	var res Result
	cfg := retry.Config{
		MaxRetries:     settleRetries,
		InitialBackoff: max(w.debounce, 10*time.Millisecond),
		MaxBackoff:     2 * time.Second,
	}
	_ = retry.Do(ctx, cfg, func() error {
		res = w.ex.File(ctx, path)
		return res.Err
	}, partial)
	if res.Path == "" {
		res = Result{Path: path, Err: ctx.Err()}
	}
	return res
}

// partial reports whether err may come from reading a file mid-write.
func partial(err error) bool {
	var diag *dwarfinfo.DiagnosticError
	switch {
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return false
	case stderrors.Is(err, os.ErrNotExist), stderrors.Is(err, os.ErrPermission):
		return false
	case stderrors.As(err, &diag):
		return false
	}
	return true
}
