package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/unitgrid/internal/builderr"
	"github.com/vk/unitgrid/internal/hclconfig"
	"github.com/vk/unitgrid/internal/testutil"
	"github.com/vk/unitgrid/internal/yamlconfig"
)

const projectYML = `
:project:
  :name: firmware
  :compile_threads: 2
  :test_threads: 2

:defines:
  :test:
    - TEST

:environment:
  - :UNITGRID_BOARD: stm32
  - :UNITGRID_CFLAGS: [-O2, "-DBOARD=#{env.UNITGRID_BOARD}"]
`

func projectTree() map[string]string {
	return map[string]string{
		"project.yml":              projectYML,
		"src/uart.c":               "int uart_read(int fd) { return fd; }\n",
		"src/uart.h":               "int uart_read(int fd);\n",
		"vendor/unity/src/unity.c": "/* unity */\n",
		"vendor/unity/src/unity.h": "/* unity */\n",
		"vendor/cmock/src/cmock.c": "/* cmock */\n",
		"test/test_uart.c":         "#include \"unity.h\"\n#include \"uart.h\"\n\nvoid test_reads(void) {}\n",
		"test/test_spi.c":          "#include \"unity.h\"\n\nvoid test_sends(void) {}\n",
	}
}

// newTestApp writes files into a temporary project and returns an app
// wired to a fake toolchain.
func newTestApp(t *testing.T, root string, cfg Config) (*App, *testutil.FakeInvoker, *bytes.Buffer) {
	t.Helper()
	if cfg.ProjectFile == "" {
		cfg.ProjectFile = filepath.Join(root, "project.yml")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "debug"
	}
	config, err := NewConfig(cfg)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	inv := testutil.NewFakeInvoker()
	a, err := NewApp(out, config, nil, WithInvoker(inv), WithEnviron([]string{"HOME=/home/dev"}))
	require.NoError(t, err)
	return a, inv, out
}

func TestRunEndToEnd(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, projectTree())
	a, inv, out := newTestApp(t, root, Config{})

	summary, err := a.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Results, 2)
	assert.False(t, summary.Failed())
	assert.Len(t, inv.Executions, 2)

	output := out.String()
	assert.Contains(t, output, "Applied build environment.")
	assert.Contains(t, output, "OVERALL TEST SUMMARY")
	assert.Contains(t, output, "Test build finished.")
	assert.Empty(t, os.Getenv("UNITGRID_BOARD"), "an isolated run leaves the process environment alone")
	assert.FileExists(t, filepath.Join(root, "build", "cache", "test_config.yml"))
}

func TestRunBuildOnly(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, projectTree())
	a, inv, out := newTestApp(t, root, Config{BuildOnly: true})

	summary, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.BuildOnly)
	assert.Len(t, inv.Links, 2)
	assert.Empty(t, inv.Executions)
	assert.Contains(t, out.String(), "BUILD COMPLETE")
}

func TestRunSelectedTests(t *testing.T) {
	testCases := []struct {
		name     string
		selected []string
	}{
		{name: "by key", selected: []string{"test_spi"}},
		{name: "by file name", selected: []string{"test_spi.c"}},
		{name: "by relative path", selected: []string{"test/test_spi.c"}},
		{name: "repeated", selected: []string{"test_spi", "test/test_spi.c"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			root := t.TempDir()
			testutil.WriteTree(t, root, projectTree())
			a, inv, _ := newTestApp(t, root, Config{Tests: tc.selected})

			summary, err := a.Run(context.Background())
			require.NoError(t, err)
			require.Len(t, summary.Results, 1)
			require.Len(t, inv.Executions, 1)
			assert.Equal(t, "test_spi", inv.Executions[0].Test)
		})
	}
}

func TestRunUnknownTest(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, projectTree())
	a, inv, _ := newTestApp(t, root, Config{Tests: []string{"test_i2c"}})

	_, err := a.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, builderr.ErrConfiguration)
	assert.Contains(t, err.Error(), "no test file matches 'test_i2c'")
	assert.Empty(t, inv.Compiles)
}

func TestRunUnknownPlugin(t *testing.T) {
	root := t.TempDir()
	tree := projectTree()
	tree["project.yml"] = projectYML + "\n:plugins:\n  :enabled: [junit_report]\n"
	testutil.WriteTree(t, root, tree)
	a, _, _ := newTestApp(t, root, Config{})

	_, err := a.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, builderr.ErrConfiguration)
	assert.Contains(t, err.Error(), "unknown plugin 'junit_report'")
}

func TestRunConfigChange(t *testing.T) {
	testCases := []struct {
		name      string
		extra     string
		wantClean bool
	}{
		{name: "kept without clean_on_config_change", extra: "", wantClean: false},
		{name: "cleaned with clean_on_config_change", extra: "  :clean_on_config_change: true\n", wantClean: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			root := t.TempDir()
			tree := projectTree()
			tree["project.yml"] = ":project:\n  :name: firmware\n" + tc.extra
			testutil.WriteTree(t, root, tree)

			a, _, _ := newTestApp(t, root, Config{})
			_, err := a.Run(context.Background())
			require.NoError(t, err)

			marker := filepath.Join(root, "build", "test", "marker")
			testutil.WriteTree(t, root, map[string]string{
				"build/test/marker": "stale",
				"project.yml":       ":project:\n  :name: renamed\n" + tc.extra,
			})

			a, _, _ = newTestApp(t, root, Config{})
			_, err = a.Run(context.Background())
			require.NoError(t, err)
			if tc.wantClean {
				assert.NoFileExists(t, marker)
			} else {
				assert.FileExists(t, marker)
			}
		})
	}
}

func TestRunClean(t *testing.T) {
	root := t.TempDir()
	tree := projectTree()
	tree["build/test/marker"] = "stale"
	testutil.WriteTree(t, root, tree)

	a, _, out := newTestApp(t, root, Config{Clean: true})
	_, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(root, "build", "test", "marker"))
	assert.Contains(t, out.String(), "Cleaning build context.")
}

func TestRunNoTests(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{"project.yml": projectYML})
	a, inv, _ := newTestApp(t, root, Config{})

	summary, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summary.Results)
	assert.Empty(t, inv.Compiles)
}

func TestNewAppLoadErrors(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"invalid.yml": ":project:\n  :compile_threads: lots\n",
	})

	testCases := []struct {
		name    string
		file    string
		wantErr string
	}{
		{name: "missing file", file: "absent.yml", wantErr: "failed to read config file"},
		{name: "invalid setting", file: "invalid.yml", wantErr: "worker budget"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := NewConfig(Config{ProjectFile: filepath.Join(root, tc.file)})
			require.NoError(t, err)
			_, err = NewApp(&bytes.Buffer{}, cfg, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoaderFor(t *testing.T) {
	dir := t.TempDir()
	assert.IsType(t, &yamlconfig.Loader{}, LoaderFor("project.yml"))
	assert.IsType(t, &yamlconfig.Loader{}, LoaderFor("project.yaml"))
	assert.IsType(t, &hclconfig.Loader{}, LoaderFor("project.hcl"))
	assert.IsType(t, &hclconfig.Loader{}, LoaderFor(dir))
}
