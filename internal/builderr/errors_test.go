package builderr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindsUnwrap(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		kind error
	}{
		{"configuration", Configf("tools.test_compiler", "missing executable"), ErrConfiguration},
		{"build graph", &BuildGraphError{Test: "test_a", File: "a.c"}, ErrBuildGraph},
		{"shell", &ShellExecutionError{Tool: "test_linker", ExitStatus: 1}, ErrShellExecution},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := &StageError{Stage: "compile", Item: "test_a", Err: fmt.Errorf("outer: %w", tc.err)}
			assert.ErrorIs(t, wrapped, tc.kind)
			assert.Contains(t, wrapped.Error(), "stage compile [test_a]")
		})
	}
}

func TestBuildGraphErrorMessage(t *testing.T) {
	err := &BuildGraphError{Test: "test_net", File: "socket.c", Msg: "file not found"}
	assert.Equal(t, "build graph error: test 'test_net': 'socket.c': file not found", err.Error())

	var target *BuildGraphError
	assert.True(t, errors.As(fmt.Errorf("wrap: %w", err), &target))
	assert.Equal(t, "socket.c", target.File)
}

func TestShellExecutionErrorIncludesOutput(t *testing.T) {
	err := &ShellExecutionError{Tool: "test_compiler", Command: "gcc -c a.c", Output: "a.c:1: error\n", ExitStatus: 1}
	assert.Contains(t, err.Error(), "exited with status 1")
	assert.Contains(t, err.Error(), "gcc -c a.c")
	assert.Contains(t, err.Error(), "a.c:1: error")
}
