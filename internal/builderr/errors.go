// Package builderr defines the error kinds raised by the build engine.
//
// Every typed error unwraps to one of the sentinel kinds so callers can
// branch with errors.Is without caring about the concrete type:
//
//	if errors.Is(err, builderr.ErrBuildGraph) { ... }
package builderr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfiguration  = errors.New("configuration error")
	ErrBuildGraph     = errors.New("build graph error")
	ErrShellExecution = errors.New("shell execution error")
)

// ConfigurationError reports a malformed tool descriptor, an unresolved
// template token, an undefined collection or an invalid setting. Path names
// the offending tool or configuration key.
type ConfigurationError struct {
	Path string
	Msg  string
}

func (e *ConfigurationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", ErrConfiguration, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", ErrConfiguration, e.Path, e.Msg)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// Configf builds a ConfigurationError for the given configuration path.
func Configf(path, format string, args ...any) error {
	return &ConfigurationError{Path: path, Msg: fmt.Sprintf(format, args...)}
}

// BuildGraphError reports a file that cannot be located, or that matches
// more than one candidate.
type BuildGraphError struct {
	Test string
	File string
	Msg  string
}

func (e *BuildGraphError) Error() string {
	var sb strings.Builder
	sb.WriteString(ErrBuildGraph.Error())
	if e.Test != "" {
		sb.WriteString(fmt.Sprintf(": test '%s'", e.Test))
	}
	if e.File != "" {
		sb.WriteString(fmt.Sprintf(": '%s'", e.File))
	}
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	return sb.String()
}

func (e *BuildGraphError) Unwrap() error { return ErrBuildGraph }

// ShellExecutionError reports an external tool that exited non-zero. The
// captured output is kept so the caller can show it to the user.
type ShellExecutionError struct {
	Tool       string
	Command    string
	Output     string
	ExitStatus int
}

func (e *ShellExecutionError) Error() string {
	msg := fmt.Sprintf("%s: tool '%s' exited with status %d", ErrShellExecution, e.Tool, e.ExitStatus)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\n> " + e.Command + "\n" + out
	}
	return msg
}

func (e *ShellExecutionError) Unwrap() error { return ErrShellExecution }

// StageError attaches pipeline context to a fatal per-item failure.
type StageError struct {
	Stage string
	Item  string
	Err   error
}

func (e *StageError) Error() string {
	if e.Item == "" {
		return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("stage %s [%s]: %v", e.Stage, e.Item, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
