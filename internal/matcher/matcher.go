// Package matcher resolves per-file values such as compiler flags and
// defines from ordered rule tables.
//
// A table is evaluated in one of two modes:
//
//   - FirstMatch: a literal key equal to the file's base name wins, then a
//     catch-all key (`*` or `.*`), then the remaining keys as regular
//     expressions. The first success is returned.
//   - Union: every key is tried in table order against the tiers wildcard,
//     substring containment and pattern. Pattern keys are `/.../` regular
//     expressions or `*` globs; a plain key is only a path fragment. Every
//     key that matches contributes its values; duplicates are kept.
package matcher

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/vk/unitgrid/internal/builderr"
	"github.com/vk/unitgrid/internal/ctxlog"
)

// Mode selects how a table is evaluated.
type Mode int

const (
	FirstMatch Mode = iota
	Union
)

func (m Mode) String() string {
	switch m {
	case FirstMatch:
		return "first"
	case Union:
		return "union"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts a configuration string into a Mode. The empty string
// yields the supplied fallback.
func ParseMode(s string, fallback Mode) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return fallback, nil
	case "first", "first-match", "first_match":
		return FirstMatch, nil
	case "union", "all":
		return Union, nil
	default:
		return fallback, fmt.Errorf("unknown matcher mode %q", s)
	}
}

// Rule associates a match key with its values. A nil Values slice means the
// configuration omitted the list, which Validate rejects; an empty slice is
// a legitimate "no values".
type Rule struct {
	Key    string
	Values []string
}

// Table is an ordered rule table. Name is the configuration path the table
// was loaded from and is used in diagnostics.
type Table struct {
	Name  string
	Mode  Mode
	Rules []Rule
}

// NewTable is a convenience constructor for a table in the given mode.
func NewTable(name string, mode Mode, rules ...Rule) *Table {
	return &Table{Name: name, Mode: mode, Rules: rules}
}

// Validate reports rules whose value list is missing.
func (t *Table) Validate() error {
	if t == nil {
		return nil
	}
	for _, rule := range t.Rules {
		if rule.Values == nil {
			return builderr.Configf(t.Name, "matcher key '%s' has no value list", rule.Key)
		}
		if strings.TrimSpace(rule.Key) == "" {
			return builderr.Configf(t.Name, "matcher key must not be empty")
		}
	}
	return nil
}

// Match evaluates the table against a file path using the table's mode. A
// nil table matches nothing.
func (t *Table) Match(ctx context.Context, path string) []string {
	if t == nil {
		return []string{}
	}
	if t.Mode == Union {
		return t.union(ctx, path)
	}
	return t.firstMatch(ctx, path)
}

func (t *Table) firstMatch(ctx context.Context, path string) []string {
	logger := ctxlog.FromContext(ctx)
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	for _, rule := range t.Rules {
		if rule.Key == stem || rule.Key == base {
			logger.Debug("Matcher literal key matched.", "table", t.Name, "key", rule.Key, "file", path)
			return clone(rule.Values)
		}
	}

	for _, rule := range t.Rules {
		if isCatchAll(rule.Key) {
			logger.Debug("Matcher wildcard key matched.", "table", t.Name, "key", rule.Key, "file", path)
			return clone(rule.Values)
		}
	}

	for _, rule := range t.Rules {
		if isCatchAll(rule.Key) {
			continue
		}
		re, ok := compile(rule.Key)
		if ok && re.MatchString(path) {
			logger.Debug("Matcher regex key matched.", "table", t.Name, "key", rule.Key, "file", path)
			return clone(rule.Values)
		}
		logger.Debug("Matcher key did not match.", "table", t.Name, "key", rule.Key, "file", path)
	}

	return []string{}
}

func (t *Table) union(ctx context.Context, path string) []string {
	logger := ctxlog.FromContext(ctx)
	values := []string{}

	for _, rule := range t.Rules {
		key := strings.TrimSpace(rule.Key)
		if key == "*" || strings.Contains(path, key) || matchesPattern(key, path) {
			values = append(values, rule.Values...)
			continue
		}
		logger.Debug("Matcher key did not match.", "table", t.Name, "key", key, "file", path)
	}

	return values
}

// isCatchAll reports whether key matches every file.
func isCatchAll(key string) bool {
	key = strings.TrimSpace(key)
	return key == "*" || key == ".*" || key == "/.*/"
}

// matchesPattern tries key as a pattern. Only `/.../` delimited keys are
// regular expressions; an undelimited key containing `*` is a glob where
// `*` spans any run of characters. Other keys are path fragments and match
// by containment alone.
func matchesPattern(key, path string) bool {
	if isRegexLiteral(key) {
		re, ok := compile(key)
		return ok && re.MatchString(path)
	}
	if !strings.Contains(key, "*") {
		return false
	}
	glob := strings.ReplaceAll(regexp.QuoteMeta(key), `\*`, `.*`)
	re, err := regexp.Compile(glob)
	return err == nil && re.MatchString(path)
}

// compile builds a regex from key, stripping `/.../` delimiters. Malformed
// expressions are reported as not compiled rather than as errors.
func compile(key string) (*regexp.Regexp, bool) {
	if isRegexLiteral(key) {
		key = key[1 : len(key)-1]
	}
	re, err := regexp.Compile(key)
	if err != nil {
		return nil, false
	}
	return re, true
}

func isRegexLiteral(key string) bool {
	return len(key) >= 2 && strings.HasPrefix(key, "/") && strings.HasSuffix(key, "/")
}

func clone(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	return out
}
