// Package cache fingerprints the resolved build configuration of each build
// context and reports whether it changed since the previous run.
//
// A fingerprint is a YAML file holding the configuration tree and a BLAKE3
// digest of its canonical encoding. The cache only reports change; what to
// do about it is the caller's decision.
package cache

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/go-cmp/cmp"
	"github.com/vk/unitgrid/internal/config"
	"github.com/vk/unitgrid/internal/ctxlog"
	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

// Cache stores one fingerprint per build context under Dir.
type Cache struct {
	Dir string
}

// New returns a cache rooted at dir.
func New(dir string) *Cache {
	return &Cache{Dir: dir}
}

type fingerprint struct {
	Context string         `yaml:"context"`
	Digest  string         `yaml:"digest"`
	Config  map[string]any `yaml:"config"`
}

// Path returns the fingerprint file of a build context.
func (c *Cache) Path(buildContext string) string {
	return filepath.Join(c.Dir, buildContext+"_config.yml")
}

// Fingerprint records snap as the configuration of its build context.
func (c *Cache) Fingerprint(ctx context.Context, snap *config.Snapshot) error {
	tree, err := normalize(snap.Plain())
	if err != nil {
		return err
	}
	digest, err := Digest(tree)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(fingerprint{Context: snap.Context(), Digest: digest, Config: tree})
	if err != nil {
		return fmt.Errorf("failed to encode fingerprint: %w", err)
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	path := c.Path(snap.Context())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write fingerprint: %w", err)
	}
	ctxlog.FromContext(ctx).Debug("Wrote configuration fingerprint.", "context", snap.Context(), "path", path, "digest", digest)
	return nil
}

// Changed reports whether snap differs from the stored fingerprint of its
// build context. A missing fingerprint is not a change. A fingerprint whose
// digest does not match its content is treated as changed.
func (c *Cache) Changed(ctx context.Context, snap *config.Snapshot) (bool, error) {
	logger := ctxlog.FromContext(ctx)
	path := c.Path(snap.Context())

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Debug("No configuration fingerprint found.", "context", snap.Context())
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read fingerprint: %w", err)
	}

	var prior fingerprint
	if err := yaml.Unmarshal(data, &prior); err != nil {
		logger.Warn("Configuration fingerprint is unreadable, treating as changed.", "path", path, "error", err)
		return true, nil
	}
	if digest, err := Digest(prior.Config); err != nil || digest != prior.Digest {
		logger.Warn("Configuration fingerprint is corrupt, treating as changed.", "path", path)
		return true, nil
	}

	current, err := normalize(snap.Plain())
	if err != nil {
		return false, err
	}
	if diff := cmp.Diff(prior.Config, current); diff != "" {
		logger.Debug("Configuration changed since last run.", "context", snap.Context(), "diff", diff)
		return true, nil
	}
	return false, nil
}

// Digest hashes the canonical YAML encoding of tree. Map keys are sorted by
// the encoder, so equal trees hash equally.
func Digest(tree map[string]any) (string, error) {
	data, err := yaml.Marshal(tree)
	if err != nil {
		return "", fmt.Errorf("failed to encode configuration: %w", err)
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// normalize round-trips tree through YAML so it compares equal to a tree
// read back from disk.
func normalize(tree map[string]any) (map[string]any, error) {
	data, err := yaml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to encode configuration: %w", err)
	}
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return out, nil
}
