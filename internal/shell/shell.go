// Package shell runs resolved commands through the platform shell and
// captures their combined output.
package shell

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/vk/unitgrid/internal/builderr"
	"github.com/vk/unitgrid/internal/command"
	"github.com/vk/unitgrid/internal/config"
	"github.com/vk/unitgrid/internal/ctxlog"
)

// Outcome is the captured result of one command.
type Outcome struct {
	Command    string
	Output     string
	ExitStatus int
	// Signaled is set when the process was terminated by a signal rather
	// than exiting on its own.
	Signaled bool
	Duration time.Duration
}

// Success reports whether the command exited with status zero.
func (o *Outcome) Success() bool {
	return o != nil && o.ExitStatus == 0 && !o.Signaled
}

// Runner executes commands. Dir and Env are applied to every process when
// set; a nil Env inherits the current process environment.
type Runner struct {
	Dir string
	Env []string
}

// Run executes cmd. A non-zero exit is returned as a ShellExecutionError
// unless tolerate is set, in which case the caller interprets the Outcome.
// The Outcome is returned in both cases.
func (r *Runner) Run(ctx context.Context, cmd *command.Command, tolerate bool) (*Outcome, error) {
	logger := ctxlog.FromContext(ctx)
	line := Redirect(cmd.Line, cmd.StderrRedirect)

	var proc *exec.Cmd
	if runtime.GOOS == "windows" {
		// #nosec G204 - command lines come from the project's tool descriptors
		proc = exec.CommandContext(ctx, "cmd", "/C", line)
	} else {
		// #nosec G204 - command lines come from the project's tool descriptors
		proc = exec.CommandContext(ctx, "/bin/bash", "-c", line)
	}
	proc.Dir = r.Dir
	proc.Env = r.Env

	logger.Debug("Executing command.", "tool", cmd.Name, "command", line)
	start := time.Now()
	out, err := proc.CombinedOutput()
	outcome := &Outcome{Command: line, Output: string(out), Duration: time.Since(start)}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to execute '%s': %w", cmd.Name, err)
		}
		outcome.ExitStatus = exitErr.ExitCode()
		if outcome.ExitStatus == -1 {
			outcome.Signaled = true
		}
	}
	logger.Debug("Command finished.", "tool", cmd.Name, "status", outcome.ExitStatus, "duration", outcome.Duration)

	if outcome.Success() || tolerate || !cmd.FailOnError {
		return outcome, nil
	}
	return outcome, &builderr.ShellExecutionError{
		Tool:       cmd.Name,
		Command:    line,
		Output:     outcome.Output,
		ExitStatus: outcome.ExitStatus,
	}
}

// Redirect appends the shell syntax that folds stderr into stdout for the
// given policy.
func Redirect(line string, policy config.StderrRedirect) string {
	line = strings.TrimSpace(line)
	switch policy {
	case config.RedirectAuto, config.RedirectUnix, config.RedirectWin:
		return line + " 2>&1"
	case config.RedirectTcsh:
		return line + " |&"
	default:
		return line
	}
}
