// Package stdoutreport logs each test outcome as it completes and prints
// the overall summary once the build is done.
package stdoutreport

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/vk/unitgrid/internal/ctxlog"
	"github.com/vk/unitgrid/internal/model"
	"github.com/vk/unitgrid/internal/registry"
	"github.com/vk/unitgrid/internal/results"
)

// Name is the plugin name under which the module is registered.
const Name = "stdout_report"

// Module implements the registry.Module interface for this package.
type Module struct {
	out   io.Writer
	theme theme
}

type theme struct {
	heading lipgloss.Style
	pass    lipgloss.Style
	fail    lipgloss.Style
	ignore  lipgloss.Style
	faint   lipgloss.Style
}

// New returns a report that writes to out, or to stdout when out is nil.
// Colors follow what out supports.
func New(out io.Writer) *Module {
	if out == nil {
		out = os.Stdout
	}
	r := lipgloss.NewRenderer(out)
	return &Module{
		out: out,
		theme: theme{
			heading: r.NewStyle().Bold(true),
			pass:    r.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
			fail:    r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
			ignore:  r.NewStyle().Foreground(lipgloss.Color("3")),
			faint:   r.NewStyle().Faint(true),
		},
	}
}

// Register registers the module's hooks.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterHook(Name, &registry.RegisteredHook{
		PostTest:  m.postTest,
		PostBuild: m.postBuild,
	})
}

func (m *Module) postTest(ctx context.Context, t *model.Testable, r *results.Result) error {
	logger := ctxlog.FromContext(ctx).With("test", t.Key, "total", r.Total, "failures", r.Failures, "ignored", r.Ignored)
	if r.Passed() {
		logger.Info("Test passed.", "duration", r.Duration)
		return nil
	}
	logger.Warn("Test failed.", "crashed", r.Crashed, "exit_status", r.ExitStatus)
	return nil
}

func (m *Module) postBuild(ctx context.Context, s *results.Summary) error {
	var sb strings.Builder
	if s.BuildOnly {
		fmt.Fprintf(&sb, "\n%s\n", m.theme.heading.Render("BUILD COMPLETE (tests not run)"))
		_, err := io.WriteString(m.out, sb.String())
		return err
	}

	m.writeIgnored(&sb, s)
	m.writeFailures(&sb, s)

	totals := s.Totals()
	rule := strings.Repeat("-", 20)
	fmt.Fprintf(&sb, "\n%s\n%s\n%s\n", rule, m.theme.heading.Render("OVERALL TEST SUMMARY"), rule)
	fmt.Fprintf(&sb, "TESTED:  %d\n", totals.Tests)
	fmt.Fprintf(&sb, "PASSED:  %d\n", totals.Passed)
	fmt.Fprintf(&sb, "FAILED:  %d\n", totals.Failures)
	fmt.Fprintf(&sb, "IGNORED: %d\n", totals.Ignored)
	if len(s.Errors) > 0 {
		fmt.Fprintf(&sb, "ERRORS:  %d\n", len(s.Errors))
	}

	if s.Failed() {
		fmt.Fprintf(&sb, "\n%s\n", m.theme.fail.Render("FAILED"))
	} else {
		fmt.Fprintf(&sb, "\n%s\n", m.theme.pass.Render("OK"))
	}

	ctxlog.FromContext(ctx).Debug("Writing test summary.", "results", len(s.Results), "errors", len(s.Errors))
	_, err := io.WriteString(m.out, sb.String())
	return err
}

func (m *Module) writeIgnored(sb *strings.Builder, s *results.Summary) {
	var lines []string
	for _, r := range s.Results {
		for _, c := range r.Cases {
			if c.Status == results.Ignore {
				lines = append(lines, m.caseLine(r, c))
			}
		}
	}
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s\n", m.theme.ignore.Render("IGNORED TEST SUMMARY"))
	sb.WriteString(strings.Join(lines, "\n"))
	sb.WriteString("\n")
}

func (m *Module) writeFailures(sb *strings.Builder, s *results.Summary) {
	var lines []string
	for _, r := range s.Results {
		for _, c := range r.Cases {
			if c.Status == results.Fail {
				lines = append(lines, m.caseLine(r, c))
			}
		}
		if r.Crashed && strings.TrimSpace(r.Output) != "" {
			lines = append(lines, m.theme.faint.Render(indent(strings.TrimSpace(r.Output), "    > ")))
		}
	}
	for _, e := range s.Errors {
		lines = append(lines, fmt.Sprintf("[%s]\n  %s", e.Test, e.Err))
	}
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s\n", m.theme.fail.Render("FAILED TEST SUMMARY"))
	sb.WriteString(strings.Join(lines, "\n"))
	sb.WriteString("\n")
}

func (m *Module) caseLine(r *results.Result, c results.Case) string {
	line := fmt.Sprintf("[%s]\n  Test: %s", filepath.Base(r.Source), c.Name)
	if c.Line > 0 {
		line += fmt.Sprintf("\n  At line (%d)", c.Line)
	}
	if c.Message != "" {
		line += fmt.Sprintf(": %q", c.Message)
	}
	return line
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
