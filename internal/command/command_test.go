package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/unitgrid/internal/builderr"
	"github.com/vk/unitgrid/internal/config"
	"github.com/zclconf/go-cty/cty"
)

func newBuilder(t *testing.T, environ ...string) *Builder {
	t.Helper()
	m := config.Defaults()
	m.Paths.Include = []string{"inc", "lib/**"}
	m.Vars["extra"] = cty.StringVal("-g")
	return NewBuilder(m.Snapshot(config.ContextTest, environ))
}

func tool(name, exe string, args ...config.ArgumentElement) *config.ToolDescriptor {
	return &config.ToolDescriptor{Name: name, Executable: exe, Arguments: args}
}

func TestBuildPositional(t *testing.T) {
	b := newBuilder(t)
	cc := tool("cc", "gcc", config.Arg(`-c ${1}`), config.Arg(`-o ${2}`), config.Arg(`-D${3}`))

	cmd, err := b.Build(context.Background(), cc, nil, "a.c", "a.o", []string{"TEST", "FOO=1"})
	require.NoError(t, err)
	assert.Equal(t, "gcc -c a.c -o a.o -DTEST -DFOO=1", cmd.Line)
	assert.Equal(t, "gcc", cmd.Executable)
	assert.True(t, cmd.FailOnError)
}

func TestBuildMissingInput(t *testing.T) {
	b := newBuilder(t)
	cc := tool("test_compiler", "gcc", config.Arg(`-c ${1}`), config.Arg(`-o ${2}`))

	_, err := b.Build(context.Background(), cc, nil, "a.c")
	require.Error(t, err)
	assert.True(t, errors.Is(err, builderr.ErrConfiguration))
	assert.ErrorContains(t, err, "${2}")
	assert.ErrorContains(t, err, "test_compiler")
}

func TestBuildEmptySequenceRendersNothing(t *testing.T) {
	b := newBuilder(t)
	cc := tool("cc", "gcc", config.Arg(`-D${1}`), config.Arg(`-c x.c`))

	cmd, err := b.Build(context.Background(), cc, nil, []string{})
	require.NoError(t, err)
	assert.Equal(t, "gcc -c x.c", cmd.Line)
}

func TestBuildCollection(t *testing.T) {
	b := newBuilder(t)

	t.Run("non-empty collection", func(t *testing.T) {
		cc := tool("cc", "gcc", config.Expand(`-I"$"`, "paths_include"))
		cmd, err := b.Build(context.Background(), cc, nil)
		require.NoError(t, err)
		assert.Equal(t, `gcc -I"inc" -I"lib"`, cmd.Line)
	})

	t.Run("empty collection renders nothing", func(t *testing.T) {
		withLibs := tool("ld", "gcc", config.Arg("a.o"), config.Expand(`-l$`, "libraries"))
		without := tool("ld", "gcc", config.Arg("a.o"))

		got, err := b.Build(context.Background(), withLibs, nil)
		require.NoError(t, err)
		plain, err := b.Build(context.Background(), without, nil)
		require.NoError(t, err)
		assert.Equal(t, plain.Line, got.Line)
	})

	t.Run("undefined collection", func(t *testing.T) {
		bad := tool("ld", "gcc", config.Expand(`-l$`, "no_such_collection"))
		_, err := b.Build(context.Background(), bad, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, builderr.ErrConfiguration))
		assert.ErrorContains(t, err, "no_such_collection")
	})

	t.Run("null collection", func(t *testing.T) {
		m := config.Defaults()
		m.Vars["nothing"] = cty.NullVal(cty.List(cty.String))
		nb := NewBuilder(m.Snapshot(config.ContextTest, nil))
		bad := tool("ld", "gcc", config.Expand(`-l$`, "vars.nothing"))
		_, err := nb.Build(context.Background(), bad, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, builderr.ErrConfiguration))
	})

	t.Run("escaped dollar in pattern", func(t *testing.T) {
		cc := tool("cc", "gcc", config.Expand(`\$X=$`, "paths_include"))
		cmd, err := b.Build(context.Background(), cc, nil)
		require.NoError(t, err)
		assert.Equal(t, `gcc $X=inc $X=lib`, cmd.Line)
	})
}

func TestBuildMarkers(t *testing.T) {
	t.Run("list marker renders per value", func(t *testing.T) {
		b := newBuilder(t)
		cc := tool("cc", "gcc", config.Arg(`-I#{collections.paths_include}`))
		cmd, err := b.Build(context.Background(), cc, nil)
		require.NoError(t, err)
		assert.Equal(t, "gcc -Iinc -Ilib", cmd.Line)
	})

	t.Run("values with nested markers are resolved", func(t *testing.T) {
		b := newBuilder(t, "CFLAGS=-O2 #{vars.extra}")
		cc := tool("cc", "gcc", config.Arg(`#{env.CFLAGS}`))
		cmd, err := b.Build(context.Background(), cc, nil)
		require.NoError(t, err)
		assert.Equal(t, "gcc -O2 -g", cmd.Line)
	})

	t.Run("cyclic definitions are bounded", func(t *testing.T) {
		b := newBuilder(t, "A=#{env.B}", "B=#{env.A}")
		cc := tool("cc", "gcc", config.Arg(`#{env.A}`))
		_, err := b.Build(context.Background(), cc, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, builderr.ErrConfiguration))
		assert.ErrorContains(t, err, "cyclic")
	})

	t.Run("escapes come out verbatim", func(t *testing.T) {
		b := newBuilder(t)
		cc := tool("cc", "echo", config.Arg(`\#{not.a.marker} \${1}`))
		cmd, err := b.Build(context.Background(), cc, nil)
		require.NoError(t, err)
		assert.Equal(t, "echo #{not.a.marker} ${1}", cmd.Line)
	})

	t.Run("extra args are appended", func(t *testing.T) {
		b := newBuilder(t)
		cc := tool("cc", "gcc", config.Arg(`-c x.c`))
		cmd, err := b.Build(context.Background(), cc, []string{"-DEXTRA", "#{vars.extra}"})
		require.NoError(t, err)
		assert.Equal(t, "gcc -c x.c -DEXTRA -g", cmd.Line)
	})
}

func TestBuildExecutableFromInput(t *testing.T) {
	b := newBuilder(t)
	fixture := tool("test_fixture", "${1}")
	fixture.StderrRedirect = config.RedirectAuto

	cmd, err := b.Build(context.Background(), fixture, nil, "build/test/out/test_a.out")
	require.NoError(t, err)
	assert.Equal(t, "build/test/out/test_a.out", cmd.Executable)
	assert.Equal(t, "build/test/out/test_a.out", cmd.Line)
	assert.Equal(t, config.RedirectAuto, cmd.StderrRedirect)
}
