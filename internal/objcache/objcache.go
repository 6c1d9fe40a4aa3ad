// Package objcache remembers the inputs each object file was compiled from
// so unchanged objects can be skipped on the next run.
//
// An object's digest is a BLAKE3 hash over its compile command line, its
// source bytes and the bytes of every dependency listed in the compiler's
// dependency file. The state is stored as deterministic CBOR.
package objcache

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/vk/unitgrid/internal/ctxlog"
	"github.com/zeebo/blake3"
)

const stateVersion = 1

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("objcache: CBOR encoder initialization failed: " + err.Error())
	}
}

type stateFile struct {
	Version int               `cbor:"1,keyasint"`
	Entries map[string]string `cbor:"2,keyasint"`
}

// State maps object paths to the digest of the inputs they were built from.
// It is not safe for concurrent use; the compile stage records results
// after its workers have joined.
type State struct {
	path    string
	entries map[string]string
}

// Load reads the state at path. A missing or unreadable file yields an
// empty state, so every object is rebuilt.
func Load(ctx context.Context, path string) *State {
	s := &State{path: path, entries: make(map[string]string)}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			ctxlog.FromContext(ctx).Warn("Object cache is unreadable, rebuilding everything.", "path", path, "error", err)
		}
		return s
	}
	var f stateFile
	if err := cbor.Unmarshal(data, &f); err != nil || f.Version != stateVersion {
		ctxlog.FromContext(ctx).Warn("Object cache is corrupt, rebuilding everything.", "path", path)
		return s
	}
	if f.Entries != nil {
		s.entries = f.Entries
	}
	return s
}

// UpToDate reports whether object exists and was built from inputs with
// the given digest.
func (s *State) UpToDate(object, digest string) bool {
	if s.entries[object] != digest {
		return false
	}
	_, err := os.Stat(object)
	return err == nil
}

// Record stores the digest an object was just built from.
func (s *State) Record(object, digest string) {
	s.entries[object] = digest
}

// Len returns the number of recorded objects.
func (s *State) Len() int { return len(s.entries) }

// Save writes the state back to its file.
func (s *State) Save(ctx context.Context) error {
	data, err := encMode.Marshal(stateFile{Version: stateVersion, Entries: s.entries})
	if err != nil {
		return fmt.Errorf("failed to encode object cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create object cache directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write object cache: %w", err)
	}
	ctxlog.FromContext(ctx).Debug("Saved object cache.", "path", s.path, "objects", len(s.entries))
	return nil
}

// Digest hashes a compile's inputs. depFile may be empty or missing, in
// which case only the command line and source take part.
func Digest(line, source, depFile string) (string, error) {
	h := blake3.New()
	h.Write([]byte(line))
	h.Write([]byte{0})

	data, err := os.ReadFile(source)
	if err != nil {
		return "", fmt.Errorf("failed to read source '%s': %w", source, err)
	}
	h.Write(data)

	for _, dep := range ParseDepFile(depFile) {
		if filepath.Clean(dep) == filepath.Clean(source) {
			continue
		}
		h.Write([]byte{0})
		h.Write([]byte(dep))
		h.Write([]byte{0})
		if content, err := os.ReadFile(dep); err == nil {
			h.Write(content)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ParseDepFile returns the prerequisites listed in a make-style dependency
// file, sorted. Missing files yield nothing.
func ParseDepFile(path string) []string {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	text := strings.ReplaceAll(string(data), "\\\r\n", " ")
	text = strings.ReplaceAll(text, "\\\n", " ")

	seen := make(map[string]bool)
	var deps []string
	for _, line := range strings.Split(text, "\n") {
		_, rest, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		for _, dep := range strings.Fields(rest) {
			if !seen[dep] {
				seen[dep] = true
				deps = append(deps, dep)
			}
		}
	}
	sort.Strings(deps)
	return deps
}
