package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/unitgrid/internal/builderr"
	"github.com/vk/unitgrid/internal/cli"
)

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	// The "-h" (help) flag should cause cli.Parse to return `shouldExit=true`.
	out := &bytes.Buffer{}
	err := run(out, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	err := run(&bytes.Buffer{}, []string{"--this-is-not-a-valid-flag"})

	require.Error(t, err, "run() should return an error when argument parsing fails")
	var exitErr *cli.ExitError
	require.True(t, errors.As(err, &exitErr))
	require.Equal(t, 2, exitErr.Code)
	require.Contains(t, err.Error(), "unknown flag: --this-is-not-a-valid-flag")
}

func TestRun_MissingProjectFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "project.yml")
	err := run(&bytes.Buffer{}, []string{"--project", path})

	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to read config file")
}

func TestRun_InvalidProject(t *testing.T) {
	t.Parallel()

	// A syntax error in an HCL project file is reported as a configuration error.
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "project.hcl")
	require.NoError(t, os.WriteFile(filePath, []byte("project {\n  name = \n"), 0o600))

	err := run(&bytes.Buffer{}, []string{"-p", filePath})

	require.Error(t, err)
	require.ErrorIs(t, err, builderr.ErrConfiguration)
	require.Contains(t, err.Error(), "failed to parse HCL")
}

func TestRun_MissingToolchain(t *testing.T) {
	t.Parallel()

	// Tools are checked before anything is built.
	tempDir := t.TempDir()
	files := map[string]string{
		"project.yml": `
:tools:
  :test_compiler:
    :executable: unitgrid-missing-cc
    :arguments: ['-c "${1}"', '-o "${2}"']
`,
		"test/test_uart.c": "void test_reads(void) {}\n",
	}
	for name, content := range files {
		path := filepath.Join(tempDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}

	err := run(&bytes.Buffer{}, []string{"-p", filepath.Join(tempDir, "project.yml")})

	require.Error(t, err)
	require.ErrorIs(t, err, builderr.ErrConfiguration)
	require.Contains(t, err.Error(), "executable 'unitgrid-missing-cc' not found")
	require.NoDirExists(t, filepath.Join(tempDir, "build", "test", "out"))
}
