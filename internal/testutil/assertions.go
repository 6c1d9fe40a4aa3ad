package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertLogged checks that a log line containing msg and every given
// key=value pair was written. Values are matched as slog's text handler
// prints them.
func AssertLogged(t *testing.T, logs *SafeBuffer, msg string, pairs ...string) {
	t.Helper()
	for _, line := range strings.Split(logs.String(), "\n") {
		if !strings.Contains(line, msg) {
			continue
		}
		matched := true
		for _, p := range pairs {
			if !strings.Contains(line, p) {
				matched = false
				break
			}
		}
		if matched {
			return
		}
	}
	require.Failf(t, "log line not found", "expected a log line with %q and %v", msg, pairs)
}
