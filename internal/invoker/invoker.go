// Package invoker maps build steps onto the project's tool descriptors and
// runs them through the shell.
//
// Positional inputs per tool:
//
//	test_compiler           1 source, 2 object, 3 dependency file, 4 flags, 5 search paths, 6 defines
//	test_assembler          1 source, 2 object, 3 flags, 4 search paths
//	test_linker             1 objects, 2 executable, 3 flags
//	test_file_preprocessor  1 source, 2 output, 3 flags, 4 search paths, 5 defines
//	test_fixture            1 executable
package invoker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/vk/unitgrid/internal/builderr"
	"github.com/vk/unitgrid/internal/command"
	"github.com/vk/unitgrid/internal/config"
	"github.com/vk/unitgrid/internal/ctxlog"
	"github.com/vk/unitgrid/internal/model"
	"github.com/vk/unitgrid/internal/shell"
)

// Toolchain runs build steps with the configured tools.
type Toolchain struct {
	model   *config.Model
	builder *command.Builder
	runner  *shell.Runner
}

// New returns a toolchain over a validated model and its snapshot.
func New(m *config.Model, snap *config.Snapshot, runner *shell.Runner) *Toolchain {
	if runner == nil {
		runner = &shell.Runner{}
	}
	return &Toolchain{model: m, builder: command.NewBuilder(snap), runner: runner}
}

// CompileCommand renders the command line Compile would run for step.
func (t *Toolchain) CompileCommand(ctx context.Context, step model.CompileStep) (string, error) {
	cmd, err := t.compileCommand(ctx, step)
	if err != nil {
		return "", err
	}
	return cmd.Line, nil
}

func (t *Toolchain) compileCommand(ctx context.Context, step model.CompileStep) (*command.Command, error) {
	if t.isAssembly(step.Source) {
		return t.build(ctx, config.ToolAssembler, step.Source, step.Object, step.Flags, step.SearchPaths)
	}
	return t.build(ctx, config.ToolCompiler, step.Source, step.Object, step.DepFile, step.Flags, step.SearchPaths, step.Defines)
}

// Compile compiles one source into its object. Assembly sources go to the
// assembler.
func (t *Toolchain) Compile(ctx context.Context, step model.CompileStep) (*shell.Outcome, error) {
	cmd, err := t.compileCommand(ctx, step)
	if err != nil {
		return nil, err
	}
	if err := ensureDir(step.Object); err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Compiling object.", "test", step.Test, "source", step.Source)
	return t.run(ctx, cmd, false)
}

// Link links a test executable.
func (t *Toolchain) Link(ctx context.Context, step model.LinkStep) (*shell.Outcome, error) {
	cmd, err := t.build(ctx, config.ToolLinker, step.Objects, step.Executable, step.Flags)
	if err != nil {
		return nil, err
	}
	if err := ensureDir(step.Executable); err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Linking executable.", "test", step.Test, "executable", step.Executable)
	return t.run(ctx, cmd, false)
}

// Preprocess runs the file preprocessor.
func (t *Toolchain) Preprocess(ctx context.Context, step model.PreprocessStep) (*shell.Outcome, error) {
	cmd, err := t.build(ctx, config.ToolPreprocessor, step.Source, step.Output, step.Flags, step.SearchPaths, step.Defines)
	if err != nil {
		return nil, err
	}
	if err := ensureDir(step.Output); err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Preprocessing file.", "test", step.Test, "source", step.Source)
	return t.run(ctx, cmd, false)
}

// Execute runs a test executable. A non-zero exit is returned in the
// outcome, not as an error; failing tests exit non-zero.
func (t *Toolchain) Execute(ctx context.Context, step model.ExecStep) (*shell.Outcome, error) {
	cmd, err := t.build(ctx, config.ToolFixture, step.Executable)
	if err != nil {
		return nil, err
	}
	cmd.FailOnError = false
	ctxlog.FromContext(ctx).Debug("Executing test.", "test", step.Test, "executable", step.Executable)
	return t.run(ctx, cmd, true)
}

// ValidateTools checks that every non-optional tool's executable can be
// found. Executables computed from inputs or markers are skipped.
func (t *Toolchain) ValidateTools(ctx context.Context, names ...string) error {
	logger := ctxlog.FromContext(ctx)
	for _, name := range names {
		tool := t.model.Tool(name)
		if tool == nil {
			return builderr.Configf("tools."+name, "tool is not defined")
		}
		if strings.Contains(tool.Executable, "${") || strings.Contains(tool.Executable, "#{") {
			continue
		}
		if _, err := exec.LookPath(tool.Executable); err != nil {
			if tool.Optional {
				logger.Debug("Optional tool not found.", "tool", name, "executable", tool.Executable)
				continue
			}
			return builderr.Configf("tools."+name, "executable '%s' not found", tool.Executable)
		}
	}
	return nil
}

func (t *Toolchain) build(ctx context.Context, name string, inputs ...any) (*command.Command, error) {
	tool := t.model.Tool(name)
	if tool == nil {
		return nil, builderr.Configf("tools."+name, "tool is not defined")
	}
	return t.builder.Build(ctx, tool, nil, inputs...)
}

func (t *Toolchain) run(ctx context.Context, cmd *command.Command, tolerate bool) (*shell.Outcome, error) {
	if cmd.Optional {
		if _, err := exec.LookPath(cmd.Executable); err != nil {
			ctxlog.FromContext(ctx).Debug("Skipping optional tool.", "tool", cmd.Name, "executable", cmd.Executable)
			return &shell.Outcome{Command: cmd.Line}, nil
		}
	}
	return t.runner.Run(ctx, cmd, tolerate)
}

func (t *Toolchain) isAssembly(path string) bool {
	ext := t.model.Extensions.Assembly
	return ext != "" && strings.HasSuffix(path, ext)
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory for '%s': %w", path, err)
	}
	return nil
}
