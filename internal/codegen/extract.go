// Package codegen reads test sources and generates the C sources the build
// needs around them: mocks for included headers and a Unity runner per test.
package codegen

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/vk/unitgrid/internal/ctxlog"
	"github.com/vk/unitgrid/internal/model"
)

var (
	includeRe   = regexp.MustCompile(`^\s*#\s*include\s*[<"]([^>"]+)[>"]`)
	directiveRe = regexp.MustCompile(`\b(TEST_SOURCE_FILE|TEST_INCLUDE_PATH)\s*\(\s*"([^"]+)"\s*\)`)
	testCaseRe  = regexp.MustCompile(`^\s*void\s+(test[A-Za-z0-9_]*)\s*\(\s*(void)?\s*\)`)
)

// Context is what a test source declares about its build.
type Context struct {
	Includes  []string
	TestCases []model.TestCase
}

// Extractor pulls includes, directives and test cases out of C sources.
type Extractor struct{}

// Directives returns the TEST_SOURCE_FILE and TEST_INCLUDE_PATH entries of
// the file at path, in order of appearance.
func (Extractor) Directives(ctx context.Context, path string) (model.Directives, error) {
	text, err := readStripped(path)
	if err != nil {
		return model.Directives{}, err
	}
	var d model.Directives
	for _, m := range directiveRe.FindAllStringSubmatch(text, -1) {
		switch m[1] {
		case "TEST_SOURCE_FILE":
			d.Sources = appendUnique(d.Sources, m[2])
		case "TEST_INCLUDE_PATH":
			d.IncludePaths = appendUnique(d.IncludePaths, m[2])
		}
	}
	ctxlog.FromContext(ctx).Debug("Extracted directives.", "file", path, "sources", len(d.Sources), "include_paths", len(d.IncludePaths))
	return d, nil
}

// Context returns the includes and test cases of the file at path.
func (Extractor) Context(ctx context.Context, path string) (*Context, error) {
	text, err := readStripped(path)
	if err != nil {
		return nil, err
	}
	c := &Context{}
	for i, line := range strings.Split(text, "\n") {
		if m := includeRe.FindStringSubmatch(line); m != nil {
			c.Includes = appendUnique(c.Includes, m[1])
			continue
		}
		if m := testCaseRe.FindStringSubmatch(line); m != nil {
			c.TestCases = append(c.TestCases, model.TestCase{Name: m[1], Line: i + 1})
		}
	}
	ctxlog.FromContext(ctx).Debug("Extracted test context.", "file", path, "includes", len(c.Includes), "test_cases", len(c.TestCases))
	return c, nil
}

func readStripped(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read '%s': %w", path, err)
	}
	return StripComments(string(data)), nil
}

// StripComments blanks out C comments, keeping newlines so line numbers
// stay valid. String and character literals are left alone.
func StripComments(src string) string {
	out := []byte(src)
	const (
		code = iota
		line
		block
		str
		char
	)
	state := code
	for i := 0; i < len(out); i++ {
		c := out[i]
		switch state {
		case code:
			switch {
			case c == '/' && i+1 < len(out) && out[i+1] == '/':
				state = line
				out[i], out[i+1] = ' ', ' '
				i++
			case c == '/' && i+1 < len(out) && out[i+1] == '*':
				state = block
				out[i], out[i+1] = ' ', ' '
				i++
			case c == '"':
				state = str
			case c == '\'':
				state = char
			}
		case line:
			if c == '\n' {
				state = code
			} else {
				out[i] = ' '
			}
		case block:
			if c == '*' && i+1 < len(out) && out[i+1] == '/' {
				out[i], out[i+1] = ' ', ' '
				i++
				state = code
			} else if c != '\n' {
				out[i] = ' '
			}
		case str, char:
			quote := byte('"')
			if state == char {
				quote = '\''
			}
			switch {
			case c == '\\':
				i++
			case c == quote || c == '\n':
				state = code
			}
		}
	}
	return string(out)
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
