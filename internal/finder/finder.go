// Package finder discovers project files and locates files referenced by
// name from test sources.
package finder

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vk/unitgrid/internal/builderr"
	"github.com/vk/unitgrid/internal/config"
	"github.com/vk/unitgrid/internal/ctxlog"
)

// FindFilesByExtension recursively searches rootPath for files ending with
// any of the given extensions.
func FindFilesByExtension(rootPath string, extensions ...string) ([]string, error) {
	if len(extensions) == 0 {
		panic("at least one extension is required")
	}

	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && hasExtension(d.Name(), extensions) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Collect expands path specs into the files carrying one of exts. A spec is
// a directory (direct children only), a `dir/**` recursive directory, or a
// glob. Relative specs are resolved against root. Missing directories are
// skipped. The result is sorted and free of duplicates.
func Collect(root string, specs []string, exts ...string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(path string) {
		path = filepath.Clean(path)
		if !seen[path] {
			seen[path] = true
			out = append(out, path)
		}
	}

	for _, spec := range specs {
		if spec == "" {
			continue
		}
		full := spec
		if !filepath.IsAbs(full) && root != "" {
			full = filepath.Join(root, spec)
		}

		switch {
		case strings.HasSuffix(spec, "/**"):
			dir := strings.TrimSuffix(full, "/**")
			if !isDir(dir) {
				continue
			}
			files, err := FindFilesByExtension(dir, exts...)
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				add(f)
			}
		case strings.ContainsAny(spec, "*?["):
			matches, err := filepath.Glob(full)
			if err != nil {
				return nil, err
			}
			for _, m := range matches {
				if isDir(m) {
					files, err := listDir(m, exts)
					if err != nil {
						return nil, err
					}
					for _, f := range files {
						add(f)
					}
				} else if hasExtension(m, exts) {
					add(m)
				}
			}
		default:
			if !isDir(full) {
				if hasExtension(full, exts) && exists(full) {
					add(full)
				}
				continue
			}
			files, err := listDir(full, exts)
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				add(f)
			}
		}
	}

	sort.Strings(out)
	return out, nil
}

// Collections groups the discovered project files.
type Collections struct {
	Tests    []string
	Sources  []string
	Headers  []string
	Assembly []string
	Support  []string
}

// Discover collects the files named by the model's path specs.
func Discover(root string, m *config.Model) (*Collections, error) {
	ext := m.Extensions
	c := &Collections{}

	candidates, err := Collect(root, m.Paths.Test, ext.Source)
	if err != nil {
		return nil, err
	}
	for _, f := range candidates {
		if strings.HasPrefix(filepath.Base(f), m.Project.TestFilePrefix) {
			c.Tests = append(c.Tests, f)
		}
	}

	if c.Sources, err = Collect(root, m.Paths.Source, ext.Source); err != nil {
		return nil, err
	}
	if c.Support, err = Collect(root, m.Paths.Support, ext.Source); err != nil {
		return nil, err
	}

	headerSpecs := concat(m.Paths.Source, m.Paths.Include, m.Paths.Test, m.Paths.Support)
	if c.Headers, err = Collect(root, headerSpecs, ext.Header); err != nil {
		return nil, err
	}

	if m.Project.UseAssembly && ext.Assembly != "" {
		if c.Assembly, err = Collect(root, concat(m.Paths.Source, m.Paths.Support), ext.Assembly); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// All returns every discovered file.
func (c *Collections) All() []string {
	return concat(c.Tests, c.Sources, c.Headers, c.Assembly, c.Support)
}

// Policy selects how Locate reacts to a file it cannot resolve.
type Policy int

const (
	// PolicyError reports missing or ambiguous files as BuildGraphErrors.
	PolicyError Policy = iota
	// PolicyIgnore returns an empty path for missing files, and for
	// ambiguous ones after logging a warning.
	PolicyIgnore
)

// Index locates files by name among a fixed set of candidates.
type Index struct {
	byBase map[string][]string
}

// NewIndex indexes the given path lists.
func NewIndex(lists ...[]string) *Index {
	x := &Index{byBase: make(map[string][]string)}
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, p := range list {
			if seen[p] {
				continue
			}
			seen[p] = true
			base := filepath.Base(p)
			x.byBase[base] = append(x.byBase[base], p)
		}
	}
	return x
}

// Locate resolves name, which may carry a leading directory fragment such
// as `net/socket.c`, to exactly one indexed path. When several candidates
// match, the one sharing the most leading path segments with reference
// wins; a tie is ambiguous. owner names the test the lookup is made for
// and is reported in errors.
func (x *Index) Locate(ctx context.Context, owner, name, reference string, policy Policy) (string, error) {
	want := filepath.ToSlash(filepath.Clean(name))
	var matches []string
	for _, cand := range x.byBase[filepath.Base(name)] {
		slashed := filepath.ToSlash(cand)
		if slashed == want || strings.HasSuffix(slashed, "/"+want) {
			matches = append(matches, cand)
		}
	}

	switch len(matches) {
	case 0:
		if policy == PolicyIgnore {
			return "", nil
		}
		return "", &builderr.BuildGraphError{Test: owner, File: name, Msg: "file not found"}
	case 1:
		return matches[0], nil
	}

	best, bestScore, tie := "", -1, false
	refDir := segments(filepath.Dir(reference))
	for _, cand := range matches {
		score := overlap(segments(filepath.Dir(cand)), refDir)
		switch {
		case score > bestScore:
			best, bestScore, tie = cand, score, false
		case score == bestScore:
			tie = true
		}
	}
	if tie {
		if policy == PolicyIgnore {
			ctxlog.FromContext(ctx).Warn("Skipped ambiguous optional file.", "test", owner, "file", name, "candidates", matches)
			return "", nil
		}
		return "", &builderr.BuildGraphError{
			Test: owner,
			File: name,
			Msg:  "ambiguous, candidates: " + strings.Join(matches, ", "),
		}
	}
	return best, nil
}

func segments(dir string) []string {
	dir = filepath.ToSlash(filepath.Clean(dir))
	if dir == "." || dir == "" {
		return nil
	}
	return strings.Split(strings.Trim(dir, "/"), "/")
}

func overlap(a, b []string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

func listDir(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && hasExtension(e.Name(), exts) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}

func hasExtension(name string, exts []string) bool {
	for _, ext := range exts {
		if ext != "" && strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
