package results

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/unitgrid/internal/shell"
)

const passingOutput = `test/test_uart.c:12:test_read:PASS
test/test_uart.c:20:test_write:IGNORE: not ready

-----------------------
2 Tests 0 Failures 1 Ignored
OK
`

const failingOutput = `test/test_uart.c:12:test_read:FAIL: Expected 1 Was 2
test/test_uart.c:20:test_write:PASS

-----------------------
2 Tests 1 Failures 0 Ignored
FAIL
`

func TestParse(t *testing.T) {
	t.Run("passing run", func(t *testing.T) {
		r := Parse("test_uart", "test/test_uart.c", &shell.Outcome{Output: passingOutput})
		assert.True(t, r.Passed())
		assert.Equal(t, 2, r.Total)
		assert.Equal(t, 1, r.Ignored)
		require.Len(t, r.Cases, 2)
		assert.Equal(t, Case{Name: "test_write", Line: 20, Status: Ignore, Message: "not ready"}, r.Cases[1])
		assert.Empty(t, r.Output)
	})

	t.Run("failing run keeps output", func(t *testing.T) {
		r := Parse("test_uart", "test/test_uart.c", &shell.Outcome{Output: failingOutput, ExitStatus: 1})
		assert.False(t, r.Passed())
		assert.False(t, r.Crashed)
		assert.Equal(t, 1, r.Failures)
		assert.Equal(t, "Expected 1 Was 2", r.Cases[0].Message)
		assert.Equal(t, failingOutput, r.Output)
	})

	t.Run("missing counts is a crash", func(t *testing.T) {
		out := "test/test_uart.c:12:test_read:PASS\nSegmentation fault\n"
		r := Parse("test_uart", "test/test_uart.c", &shell.Outcome{Output: out, ExitStatus: 139})
		assert.True(t, r.Crashed)
		assert.False(t, r.Passed())
		assert.Equal(t, 2, r.Total)
		assert.Equal(t, 1, r.Failures)
		last := r.Cases[len(r.Cases)-1]
		assert.Equal(t, CrashCase, last.Name)
		assert.Contains(t, last.Message, "139")
	})

	t.Run("signaled executable is a crash", func(t *testing.T) {
		r := Parse("test_uart", "test/test_uart.c", &shell.Outcome{Output: passingOutput, ExitStatus: -1, Signaled: true})
		assert.True(t, r.Crashed)
		assert.Equal(t, 3, r.Total)
		assert.Equal(t, 1, r.Failures)
	})
}

func TestWriteReplacesStaleResult(t *testing.T) {
	dir := t.TempDir()
	pass := filepath.Join(dir, "test_uart.pass")
	fail := filepath.Join(dir, "test_uart.fail")

	failed := Parse("test_uart", "test/test_uart.c", &shell.Outcome{Output: failingOutput, ExitStatus: 1})
	path, err := Write(failed, pass, fail)
	require.NoError(t, err)
	assert.Equal(t, fail, path)

	passed := Parse("test_uart", "test/test_uart.c", &shell.Outcome{Output: passingOutput})
	path, err = Write(passed, pass, fail)
	require.NoError(t, err)
	assert.Equal(t, pass, path)
	assert.NoFileExists(t, fail)

	back, err := Read(pass)
	require.NoError(t, err)
	assert.Equal(t, passed.Cases, back.Cases)
	assert.True(t, back.Passed())
}

func TestReadMissing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope.pass"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSummary(t *testing.T) {
	var s Summary
	s.Add(Parse("test_b", "test/test_b.c", &shell.Outcome{Output: failingOutput, ExitStatus: 1}))
	s.Add(Parse("test_a", "test/test_a.c", &shell.Outcome{Output: passingOutput}))
	s.Sort()

	assert.Equal(t, "test_a", s.Results[0].Test)
	assert.Equal(t, Totals{Tests: 4, Passed: 2, Failures: 1, Ignored: 1}, s.Totals())
	assert.True(t, s.Failed())

	var ok Summary
	ok.Add(Parse("test_a", "test/test_a.c", &shell.Outcome{Output: passingOutput}))
	assert.False(t, ok.Failed())
	ok.AddError("test_c", assert.AnError)
	assert.True(t, ok.Failed())
}

func TestUnrunnableIsAFailure(t *testing.T) {
	r := Unrunnable("test_uart", "test/test_uart.c", errors.New("permission denied"))
	assert.False(t, r.Passed())
	assert.True(t, r.Crashed)
	assert.Equal(t, 1, r.Total)
	require.Len(t, r.Cases, 1)
	assert.Equal(t, CrashCase, r.Cases[0].Name)
	assert.Contains(t, r.Cases[0].Message, "permission denied")

	dir := t.TempDir()
	pass, fail := filepath.Join(dir, "test_uart.pass"), filepath.Join(dir, "test_uart.fail")
	path, err := Write(r, pass, fail)
	require.NoError(t, err)
	assert.Equal(t, fail, path)
}
