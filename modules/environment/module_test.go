package environment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/unitgrid/internal/builderr"
	"github.com/vk/unitgrid/internal/config"
	"github.com/vk/unitgrid/internal/registry"
	"github.com/vk/unitgrid/internal/testutil"
	"github.com/zclconf/go-cty/cty"
)

func newModule(t *testing.T, entries []config.EnvVar) (*Module, map[string]string) {
	t.Helper()
	m := config.Defaults()
	m.Vars["board"] = cty.StringVal("stm32")
	mod := New(entries, m.Snapshot(config.ContextTest, []string{"HOME=/home/dev"}))
	set := make(map[string]string)
	mod.setenv = func(key, value string) error {
		set[key] = value
		return nil
	}
	return mod, set
}

func TestApply(t *testing.T) {
	ctx, logs := testutil.Context(t)
	mod, set := newModule(t, []config.EnvVar{
		{Name: "BOARD", Values: []string{"#{vars.board}"}},
		{Name: "CFLAGS", Values: []string{"-O2", "-DBOARD=#{env.BOARD}"}},
		{Name: "TOOLS", Values: []string{"#{env.HOME}/tools", `\#{literal}`}},
	})

	applied, err := mod.Apply(ctx)
	require.NoError(t, err)

	want := map[string]string{
		"BOARD":  "stm32",
		"CFLAGS": "-O2 -DBOARD=stm32",
		"TOOLS":  "/home/dev/tools #{literal}",
	}
	assert.Equal(t, want, applied)
	assert.Equal(t, want, set)
	testutil.AssertLogged(t, logs, "Applied build environment.", "count=3")
}

func TestApplyRunsOnce(t *testing.T) {
	ctx, _ := testutil.Context(t)
	mod, set := newModule(t, []config.EnvVar{{Name: "A", Values: []string{"one"}}})

	r := registry.New()
	mod.Register(r)
	_, err := mod.Apply(ctx)
	require.NoError(t, err)
	delete(set, "A")

	require.NoError(t, r.PreBuild(ctx, nil))
	assert.Empty(t, set, "the hook does not apply the environment twice")
}

func TestApplyRejectsFunctionCalls(t *testing.T) {
	ctx, _ := testutil.Context(t)
	mod, _ := newModule(t, []config.EnvVar{{Name: "CC", Values: []string{"#{upper(env.HOME)}"}}})

	r := registry.New()
	mod.Register(r)
	err := r.PreBuild(ctx, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, builderr.ErrConfiguration)
	assert.Contains(t, err.Error(), "environment 'CC'")
}
