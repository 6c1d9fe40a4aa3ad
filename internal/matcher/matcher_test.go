package matcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/unitgrid/internal/builderr"
)

func TestFirstMatch(t *testing.T) {
	table := NewTable("flags.test.compile", FirstMatch,
		Rule{Key: "*", Values: []string{"-Wall"}},
		Rule{Key: "test_.*_io", Values: []string{"-DIO"}},
		Rule{Key: "test_uart", Values: []string{"-O0"}},
	)

	testCases := []struct {
		name     string
		table    *Table
		path     string
		expected []string
	}{
		{
			name:     "literal key beats wildcard",
			table:    table,
			path:     "test/drivers/test_uart.c",
			expected: []string{"-O0"},
		},
		{
			name:     "wildcard before regex",
			table:    table,
			path:     "test/test_disk_io.c",
			expected: []string{"-Wall"},
		},
		{
			name: "regex when no wildcard",
			table: NewTable("t", FirstMatch,
				Rule{Key: "test_.*_io", Values: []string{"-DIO"}},
			),
			path:     "test/test_disk_io.c",
			expected: []string{"-DIO"},
		},
		{
			name: "catch-all regex form",
			table: NewTable("t", FirstMatch,
				Rule{Key: ".*", Values: []string{"-g"}},
			),
			path:     "test/test_a.c",
			expected: []string{"-g"},
		},
		{
			name: "no match returns empty list",
			table: NewTable("t", FirstMatch,
				Rule{Key: "test_other", Values: []string{"-X"}},
			),
			path:     "test/test_a.c",
			expected: []string{},
		},
		{
			name: "malformed regex never matches",
			table: NewTable("t", FirstMatch,
				Rule{Key: "test_(", Values: []string{"-X"}},
			),
			path:     "test/test_(x.c",
			expected: []string{},
		},
		{
			name:     "nil table",
			table:    nil,
			path:     "test/test_a.c",
			expected: []string{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.table.Match(context.Background(), tc.path))
		})
	}
}

func TestFirstMatchIsDeterministic(t *testing.T) {
	table := NewTable("defines.test", FirstMatch,
		Rule{Key: "test_.*", Values: []string{"A"}},
		Rule{Key: "test_b.*", Values: []string{"B"}},
	)
	first := table.Match(context.Background(), "test/test_beta.c")
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, table.Match(context.Background(), "test/test_beta.c"))
	}
	assert.Equal(t, []string{"A"}, first)
}

func TestUnion(t *testing.T) {
	t.Run("substring and regex entries both contribute", func(t *testing.T) {
		table := NewTable("matchers.defines", Union,
			Rule{Key: "drivers/", Values: []string{"FOO"}},
			Rule{Key: "/test_u.*t/", Values: []string{"FOO"}},
		)
		assert.Equal(t, []string{"FOO", "FOO"}, table.Match(context.Background(), "test/drivers/test_uart.c"))
	})

	t.Run("wildcard and table order", func(t *testing.T) {
		table := NewTable("matchers.include_paths", Union,
			Rule{Key: "net", Values: []string{"vendor/net"}},
			Rule{Key: "*", Values: []string{"common"}},
			Rule{Key: "nomatch", Values: []string{"never"}},
			Rule{Key: "test_sock*", Values: []string{"sock", "extra"}},
		)
		got := table.Match(context.Background(), "test/net/test_socket.c")
		assert.Equal(t, []string{"vendor/net", "common", "sock", "extra"}, got)
	})

	t.Run("malformed regex is non-matching", func(t *testing.T) {
		table := NewTable("t", Union,
			Rule{Key: "[unclosed", Values: []string{"X"}},
			Rule{Key: "*", Values: []string{"Y"}},
		)
		assert.Equal(t, []string{"Y"}, table.Match(context.Background(), "test/test_a.c"))
	})

	t.Run("plain key is a fragment, not a regex", func(t *testing.T) {
		table := NewTable("matchers.defines", Union,
			Rule{Key: "uart.c", Values: []string{"UART"}},
			Rule{Key: "/uart.c/", Values: []string{"UART_RE"}},
		)
		assert.Equal(t, []string{"UART_RE"}, table.Match(context.Background(), "test/test_uartxc_helper.c"))
		assert.Equal(t, []string{"UART", "UART_RE"}, table.Match(context.Background(), "test/test_uart.c"))
	})

	t.Run("empty value list contributes nothing", func(t *testing.T) {
		table := NewTable("t", Union, Rule{Key: "*", Values: []string{}})
		assert.Empty(t, table.Match(context.Background(), "test/test_a.c"))
	})
}

func TestValidate(t *testing.T) {
	t.Run("nil value list", func(t *testing.T) {
		table := NewTable("flags.test.compile", FirstMatch, Rule{Key: "test_a", Values: nil})
		err := table.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, builderr.ErrConfiguration))
		assert.ErrorContains(t, err, "flags.test.compile")
		assert.ErrorContains(t, err, "test_a")
	})

	t.Run("empty list is valid", func(t *testing.T) {
		table := NewTable("t", Union, Rule{Key: "*", Values: []string{}})
		assert.NoError(t, table.Validate())
	})
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("union", FirstMatch)
	require.NoError(t, err)
	assert.Equal(t, Union, mode)

	mode, err = ParseMode("", Union)
	require.NoError(t, err)
	assert.Equal(t, Union, mode)

	_, err = ParseMode("sometimes", FirstMatch)
	assert.Error(t, err)
}
