package cli

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
	"github.com/custodia-labs/sercha-flow/internal/logger"
)

// defaultDebounce groups bursts of events into one re-run.
const defaultDebounce = 300 * time.Millisecond

// pipelineWatcher reports changes to a pipeline file and its scan inputs.
type pipelineWatcher struct {
	fs       *fsnotify.Watcher
	debounce time.Duration

	// pipeline is the pipeline file. Its directory is watched but only
	// events for the file itself count.
	pipeline string

	// roots are watched recursively.
	roots []string

	// ignore holds path prefixes the pipeline itself writes.
	ignore []string
}

// newPipelineWatcher watches the pipeline file at path and the inputs of spec.
func newPipelineWatcher(path string, spec *domain.PipelineSpec, debounce time.Duration) (*pipelineWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &pipelineWatcher{
		fs:       fsw,
		debounce: debounce,
		pipeline: abs,
		roots:    watchRoots(spec.Scan.Paths),
		ignore:   sinkOutputs(spec),
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, err
	}
	for _, root := range w.roots {
		if err := w.addTree(root); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Close stops watching.
func (w *pipelineWatcher) Close() error {
	return w.fs.Close()
}

// addTree watches dir and every directory below it.
func (w *pipelineWatcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
}

// Run calls onChange once per burst of relevant events until ctx is done.
func (w *pipelineWatcher) Run(ctx context.Context, onChange func()) error {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) && w.underRoot(ev.Name) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						logger.Warn("watch %s: %v", ev.Name, err)
					}
					continue
				}
			}
			if !w.relevant(ev) {
				continue
			}
			logger.Debug("change detected: %s %s", ev.Op, ev.Name)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error: %v", err)
		case <-fire:
			fire = nil
			onChange()
		}
	}
}

// relevant reports whether ev should trigger a re-run.
func (w *pipelineWatcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) &&
		!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Clean(ev.Name)
	if name == w.pipeline {
		return true
	}
	if strings.HasPrefix(filepath.Base(name), ".") {
		return false
	}
	for _, prefix := range w.ignore {
		if strings.HasPrefix(name, prefix) {
			return false
		}
	}
	return w.underRoot(name)
}

func (w *pipelineWatcher) underRoot(name string) bool {
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, name)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// watchRoots maps scan paths to the directories holding them. Glob
// patterns are cut at their first wildcard segment.
func watchRoots(paths []string) []string {
	seen := make(map[string]bool)
	var roots []string
	for _, p := range paths {
		root := p
		for strings.ContainsAny(root, "*?[") {
			root = filepath.Dir(root)
		}
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			root = filepath.Dir(root)
		}
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
		if !seen[root] {
			seen[root] = true
			roots = append(roots, root)
		}
	}
	sort.Strings(roots)
	return roots
}

// sinkOutputs returns the files a pipeline's sink writes. Prefixes also
// cover sqlite journal and WAL files.
func sinkOutputs(spec *domain.PipelineSpec) []string {
	if spec.Sink == nil {
		return nil
	}
	var out []string
	for _, p := range []string{spec.Sink.Index.Path, spec.Sink.FailureLog} {
		if p == "" {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			out = append(out, abs)
		}
	}
	return out
}
