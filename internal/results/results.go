// Package results interprets the output of Unity test executables and
// persists one result file per test.
package results

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vk/unitgrid/internal/shell"
	"gopkg.in/yaml.v3"
)

// Status is the outcome of one test case.
type Status string

const (
	Pass   Status = "PASS"
	Fail   Status = "FAIL"
	Ignore Status = "IGNORE"
)

// CrashCase is the name of the synthetic case recorded for an executable
// that terminated abnormally.
const CrashCase = "<crash>"

// Case is one test case outcome.
type Case struct {
	Name    string `yaml:"name"`
	Line    int    `yaml:"line"`
	Status  Status `yaml:"status"`
	Message string `yaml:"message,omitempty"`
}

// Result is the outcome of one test executable.
type Result struct {
	Test       string        `yaml:"test"`
	Source     string        `yaml:"source"`
	Total      int           `yaml:"total"`
	Failures   int           `yaml:"failures"`
	Ignored    int           `yaml:"ignored"`
	Crashed    bool          `yaml:"crashed,omitempty"`
	ExitStatus int           `yaml:"exit_status"`
	Duration   time.Duration `yaml:"duration"`
	Cases      []Case        `yaml:"cases"`
	Output     string        `yaml:"output,omitempty"`
}

// Passed reports whether every case passed or was ignored.
func (r *Result) Passed() bool {
	return r.Failures == 0 && !r.Crashed
}

var (
	caseRe    = regexp.MustCompile(`^(.+?):(\d+):([A-Za-z_][A-Za-z0-9_]*):(PASS|FAIL|IGNORE)(?::\s?(.*))?$`)
	summaryRe = regexp.MustCompile(`^(\d+) Tests (\d+) Failures (\d+) Ignored`)
)

// Parse interprets an executable's output. An executable that was killed
// by a signal, or that never printed the final counts, yields one extra
// failing case named CrashCase.
func Parse(test, source string, out *shell.Outcome) *Result {
	r := &Result{
		Test:       test,
		Source:     source,
		ExitStatus: out.ExitStatus,
		Duration:   out.Duration,
		Cases:      []Case{},
	}

	summary := false
	for _, line := range strings.Split(out.Output, "\n") {
		line = strings.TrimRight(line, "\r ")
		if m := caseRe.FindStringSubmatch(line); m != nil {
			lineNo, _ := strconv.Atoi(m[2])
			r.Cases = append(r.Cases, Case{Name: m[3], Line: lineNo, Status: Status(m[4]), Message: strings.TrimSpace(m[5])})
			continue
		}
		if m := summaryRe.FindStringSubmatch(line); m != nil {
			r.Total, _ = strconv.Atoi(m[1])
			r.Failures, _ = strconv.Atoi(m[2])
			r.Ignored, _ = strconv.Atoi(m[3])
			summary = true
		}
	}

	if !summary {
		r.countCases()
	}
	if out.Signaled || !summary {
		r.Crashed = true
		r.Failures++
		r.Total++
		r.Cases = append(r.Cases, Case{Name: CrashCase, Status: Fail, Message: crashMessage(out, summary)})
		r.Output = out.Output
	} else if !r.Passed() {
		r.Output = out.Output
	}
	return r
}

// Unrunnable is the result recorded for an executable that could not be
// started at all. It carries a single failing CrashCase.
func Unrunnable(test, source string, err error) *Result {
	return &Result{
		Test:     test,
		Source:   source,
		Total:    1,
		Failures: 1,
		Crashed:  true,
		Cases: []Case{{
			Name:    CrashCase,
			Status:  Fail,
			Message: fmt.Sprintf("test executable could not be run: %v", err),
		}},
	}
}

func (r *Result) countCases() {
	r.Total, r.Failures, r.Ignored = 0, 0, 0
	for _, c := range r.Cases {
		r.Total++
		switch c.Status {
		case Fail:
			r.Failures++
		case Ignore:
			r.Ignored++
		}
	}
}

func crashMessage(out *shell.Outcome, summary bool) string {
	switch {
	case out.Signaled:
		return "test executable was terminated by a signal"
	case !summary:
		return fmt.Sprintf("test executable produced no final test counts and exited with status %d", out.ExitStatus)
	}
	return ""
}

// Path returns the result file a result belongs in.
func Path(r *Result, passPath, failPath string) string {
	if r.Passed() {
		return passPath
	}
	return failPath
}

// Write stores r at its pass or fail path and removes any stale file at
// the other one.
func Write(r *Result, passPath, failPath string) (string, error) {
	path := Path(r, passPath, failPath)
	other := failPath
	if path == failPath {
		other = passPath
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to encode result for '%s': %w", r.Test, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write result '%s': %w", path, err)
	}
	if err := os.Remove(other); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to remove stale result '%s': %w", other, err)
	}
	return path, nil
}

// Read loads a result file.
func Read(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read result '%s': %w", path, err)
	}
	var r Result
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode result '%s': %w", path, err)
	}
	return &r, nil
}
