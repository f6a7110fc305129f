// Package scans provides the leaf plan operators that read documents.
//
// File scans list their inputs when the plan executes and read file contents
// lazily, partition by partition.
package scans

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
	"github.com/custodia-labs/sercha-flow/internal/logger"
)

// OnePartitionPerFile is the parallelism that gives every file its own partition.
const OnePartitionPerFile = -1

// fileScan holds the settings shared by file based scans.
type fileScan struct {
	paths       []string
	extensions  []string
	parallelism int
}

// Option configures a file scan.
type Option func(*fileScan)

// WithParallelism sets the number of partitions. OnePartitionPerFile (the
// default) gives every file its own partition.
func WithParallelism(n int) Option {
	return func(s *fileScan) {
		s.parallelism = n
	}
}

// WithExtensions replaces the extension filter. No extensions keeps every file.
func WithExtensions(exts ...string) Option {
	return func(s *fileScan) {
		s.extensions = normaliseExtensions(exts)
	}
}

func newFileScan(paths []string, defaults []string, opts []Option) (fileScan, error) {
	if len(paths) == 0 {
		return fileScan{}, domain.ConfigError("scan requires at least one path")
	}
	s := fileScan{
		paths:       append([]string(nil), paths...),
		extensions:  normaliseExtensions(defaults),
		parallelism: OnePartitionPerFile,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.parallelism == 0 || s.parallelism < OnePartitionPerFile {
		return fileScan{}, domain.ConfigError("scan parallelism must be positive or %d, got %d", OnePartitionPerFile, s.parallelism)
	}
	return s, nil
}

func normaliseExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimPrefix(ext, "."))
		if ext != "" {
			out = append(out, "."+ext)
		}
	}
	return out
}

// Paths returns the configured paths.
func (s fileScan) Paths() []string { return append([]string(nil), s.paths...) }

// matches reports whether path passes the extension filter.
func (s fileScan) matches(path string) bool {
	if len(s.extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range s.extensions {
		if ext == want {
			return true
		}
	}
	return false
}

// files expands globs and directories into a sorted, de-duplicated list.
// A path that matches nothing is an error.
func (s fileScan) files() ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(path string) {
		if !s.matches(path) {
			return
		}
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}

	for _, p := range s.paths {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("expand %s: %w", p, err)
		}
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", m, err)
			}
			if !info.IsDir() {
				add(m)
				continue
			}
			err = filepath.WalkDir(m, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() {
					add(path)
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("walk %s: %w", m, err)
			}
		}
	}
	sort.Strings(out)
	logger.Debug("scan found %d files in %d paths", len(out), len(s.paths))
	return out, nil
}

// split divides files into contiguous groups according to the parallelism.
func (s fileScan) split(files []string) [][]string {
	if len(files) == 0 {
		return nil
	}
	n := s.parallelism
	if n == OnePartitionPerFile || n > len(files) {
		n = len(files)
	}
	groups := make([][]string, 0, n)
	size, extra := len(files)/n, len(files)%n
	start := 0
	for i := 0; i < n; i++ {
		end := start + size
		if i < extra {
			end++
		}
		groups = append(groups, files[start:end])
		start = end
	}
	return groups
}

func (s fileScan) describe(kind string) string {
	return fmt.Sprintf("%s %s", kind, strings.Join(s.paths, ","))
}
