package expr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/unitgrid/internal/builderr"
	"github.com/zclconf/go-cty/cty"
)

func testEvaluator() *Evaluator {
	return NewWithVariables(map[string]cty.Value{
		"env": cty.ObjectVal(map[string]cty.Value{
			"CC":     cty.StringVal("clang"),
			"CFLAGS": cty.StringVal("-O2 #{vars.extra}"),
		}),
		"collections": cty.ObjectVal(map[string]cty.Value{
			"paths_include": cty.ListVal([]cty.Value{cty.StringVal("inc"), cty.StringVal("lib")}),
			"libraries":     cty.ListValEmpty(cty.String),
		}),
		"vars": cty.ObjectVal(map[string]cty.Value{
			"extra": cty.StringVal("-g"),
			"opts":  cty.TupleVal([]cty.Value{cty.StringVal("-Wall"), cty.StringVal("-Werror")}),
		}),
	})
}

func TestFindMarkers(t *testing.T) {
	markers, err := FindMarkers(`-I#{env.CC} \#{skip} #{"${vars.extra}"}`)
	require.NoError(t, err)
	require.Len(t, markers, 2)
	assert.Equal(t, "env.CC", markers[0].Expr)
	assert.Equal(t, `"${vars.extra}"`, markers[1].Expr)

	_, err = FindMarkers("#{env.CC")
	assert.True(t, errors.Is(err, builderr.ErrConfiguration))
}

func TestEval(t *testing.T) {
	e := testEvaluator()

	testCases := []struct {
		name     string
		src      string
		expected []string
	}{
		{name: "traversal", src: "env.CC", expected: []string{"clang"}},
		{name: "index", src: "vars.opts[1]", expected: []string{"-Werror"}},
		{name: "template concatenation", src: `"${env.CC}-${vars.extra}"`, expected: []string{"clang--g"}},
		{name: "list", src: "collections.paths_include", expected: []string{"inc", "lib"}},
		{name: "tuple literal", src: `["a", vars.extra]`, expected: []string{"a", "-g"}},
		{name: "empty list", src: "collections.libraries", expected: []string{}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.Strings(tc.src)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestEvalRejectsOpenForms(t *testing.T) {
	e := testEvaluator()
	for _, src := range []string{
		`upper(env.CC)`,
		`vars.extra == "-g" ? "a" : "b"`,
		`1 + 2`,
		`[for s in vars.opts : s]`,
		`vars.opts[*]`,
		`env.MISSING`,
		`{a = 1}`,
	} {
		t.Run(src, func(t *testing.T) {
			_, err := e.Eval(src)
			require.Error(t, err)
			assert.True(t, errors.Is(err, builderr.ErrConfiguration))
		})
	}
}

func TestExpand(t *testing.T) {
	e := testEvaluator()

	got, err := e.Expand("-I#{collections.paths_include}")
	require.NoError(t, err)
	assert.Equal(t, []string{"-Iinc", "-Ilib"}, got)

	got, err = e.Expand("-l#{collections.libraries}")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = e.Expand("#{env.CFLAGS}")
	require.NoError(t, err)
	assert.Equal(t, []string{"-O2 #{vars.extra}"}, got, "nested markers are left for the next pass")

	got, err = e.Expand(`keep \#{env.CC}`)
	require.NoError(t, err)
	assert.Equal(t, []string{`keep \#{env.CC}`}, got)
	assert.Equal(t, "keep #{env.CC}", Unescape(got[0]))
}
