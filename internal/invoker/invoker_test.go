//go:build !windows

package invoker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/unitgrid/internal/builderr"
	"github.com/vk/unitgrid/internal/config"
	"github.com/vk/unitgrid/internal/model"
	"github.com/vk/unitgrid/internal/shell"
)

func newToolchain(t *testing.T, mutate func(m *config.Model)) *Toolchain {
	t.Helper()
	m := config.Defaults()
	if mutate != nil {
		mutate(m)
	}
	require.NoError(t, m.Validate())
	return New(m, m.Snapshot(config.ContextTest, nil), &shell.Runner{})
}

func TestCompileCommand(t *testing.T) {
	tc := newToolchain(t, nil)
	line, err := tc.CompileCommand(context.Background(), model.CompileStep{
		Test:        "test_a",
		Source:      "a.c",
		Object:      "out/a.o",
		DepFile:     "out/a.d",
		Flags:       []string{"-Wall"},
		SearchPaths: []string{"inc", "src"},
		Defines:     []string{"TEST"},
	})
	require.NoError(t, err)
	assert.Equal(t, `gcc -I"inc" -I"src" -DTEST -Wall -c "a.c" -o "out/a.o" -MMD -MF "out/a.d"`, line)
}

func TestCompileCommandAssembly(t *testing.T) {
	tc := newToolchain(t, func(m *config.Model) { m.Project.UseAssembly = true })
	line, err := tc.CompileCommand(context.Background(), model.CompileStep{
		Source:      "boot.s",
		Object:      "out/boot.o",
		Flags:       []string{"--32"},
		SearchPaths: []string{"inc"},
	})
	require.NoError(t, err)
	assert.Equal(t, `as --32 -I"inc" "boot.s" -o "out/boot.o"`, line)
}

func TestCompileRunsAndCreatesOutputDir(t *testing.T) {
	tc := newToolchain(t, func(m *config.Model) { m.Tools[config.ToolCompiler].Executable = "true" })
	obj := filepath.Join(t.TempDir(), "nested", "a.o")

	out, err := tc.Compile(context.Background(), model.CompileStep{Source: "a.c", Object: obj, DepFile: obj + ".d"})
	require.NoError(t, err)
	assert.True(t, out.Success())
	assert.DirExists(t, filepath.Dir(obj))
}

func TestLinkFailureIsShellError(t *testing.T) {
	tc := newToolchain(t, func(m *config.Model) { m.Tools[config.ToolLinker].Executable = "false" })
	exe := filepath.Join(t.TempDir(), "test_a.out")

	_, err := tc.Link(context.Background(), model.LinkStep{Test: "test_a", Objects: []string{"a.o"}, Executable: exe})
	require.Error(t, err)
	assert.True(t, errors.Is(err, builderr.ErrShellExecution))
}

func TestExecuteToleratesFailure(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "test_a.out")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\necho ran\nexit 2\n"), 0o755))

	tc := newToolchain(t, nil)
	out, err := tc.Execute(context.Background(), model.ExecStep{Test: "test_a", Executable: exe})
	require.NoError(t, err)
	assert.Equal(t, 2, out.ExitStatus)
	assert.Contains(t, out.Output, "ran")
}

func TestOptionalToolIsSkipped(t *testing.T) {
	tc := newToolchain(t, func(m *config.Model) {
		m.Tools[config.ToolLinker].Executable = "unitgrid-no-such-linker"
		m.Tools[config.ToolLinker].Optional = true
	})
	out, err := tc.Link(context.Background(), model.LinkStep{Objects: []string{"a.o"}, Executable: filepath.Join(t.TempDir(), "x.out")})
	require.NoError(t, err)
	assert.Empty(t, out.Output)
	require.NoError(t, tc.ValidateTools(context.Background(), config.ToolLinker))
}

func TestValidateTools(t *testing.T) {
	tc := newToolchain(t, func(m *config.Model) {
		m.Tools[config.ToolCompiler].Executable = "unitgrid-no-such-compiler"
	})
	err := tc.ValidateTools(context.Background(), config.ToolFixture, config.ToolCompiler)
	require.Error(t, err)
	assert.True(t, errors.Is(err, builderr.ErrConfiguration))
	assert.ErrorContains(t, err, "unitgrid-no-such-compiler")
}
