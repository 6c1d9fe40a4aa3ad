package orchestrator

import (
	"path/filepath"

	"github.com/vk/unitgrid/internal/config"
)

// Layout names the output directories of one build context.
//
//	<build_root>/<context>/out/<test>/         objects, dependency files, executable
//	<build_root>/<context>/mocks/<test>/       generated mocks
//	<build_root>/<context>/preprocess/<test>/  preprocessed headers and test file
//	<build_root>/<context>/runners/            generated runners
//	<build_root>/<context>/results/            .pass and .fail files
//	<build_root>/cache/                        configuration fingerprints
type Layout struct {
	Root    string
	Context string
}

// NewLayout returns the layout of a build context. Relative build roots are
// resolved against root.
func NewLayout(root string, m *config.Model, buildContext string) Layout {
	dir := m.Project.BuildRoot
	if !filepath.IsAbs(dir) && root != "" {
		dir = filepath.Join(root, dir)
	}
	return Layout{Root: dir, Context: buildContext}
}

// ContextDir holds every artifact of the build context.
func (l Layout) ContextDir() string { return filepath.Join(l.Root, l.Context) }

func (l Layout) ObjectDir(test string) string     { return filepath.Join(l.ContextDir(), "out", test) }
func (l Layout) MockDir(test string) string       { return filepath.Join(l.ContextDir(), "mocks", test) }
func (l Layout) PreprocessDir(test string) string { return filepath.Join(l.ContextDir(), "preprocess", test) }
func (l Layout) RunnerDir() string                { return filepath.Join(l.ContextDir(), "runners") }
func (l Layout) ResultsDir() string               { return filepath.Join(l.ContextDir(), "results") }

// CacheDir holds the configuration fingerprints of all contexts.
func (l Layout) CacheDir() string { return filepath.Join(l.Root, "cache") }

// ObjectState is the object cache file of the build context.
func (l Layout) ObjectState() string { return filepath.Join(l.ContextDir(), "objects.cbor") }
