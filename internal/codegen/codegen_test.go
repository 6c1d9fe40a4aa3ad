package codegen

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/unitgrid/internal/model"
)

const testSource = `#include "unity.h"
#include "mock_uart.h"
#include <stdint.h>
// #include "mock_commented.h"
/* TEST_SOURCE_FILE("ignored.c") */
TEST_SOURCE_FILE("protocol.c")
TEST_SOURCE_FILE("net/frame.h")
TEST_INCLUDE_PATH("vendor/extra")

void setUp(void) {}
void tearDown(void) {}

void test_read_returns_byte(void)
{
  TEST_ASSERT_EQUAL(1, 1);
}

void test_write(void) { }
static void helper(void) { }
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtractor(t *testing.T) {
	path := writeFile(t, t.TempDir(), "test_uart.c", testSource)
	var x Extractor

	d, err := x.Directives(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"protocol.c", "net/frame.h"}, d.Sources)
	assert.Equal(t, []string{"vendor/extra"}, d.IncludePaths)

	c, err := x.Context(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"unity.h", "mock_uart.h", "stdint.h"}, c.Includes)
	assert.Equal(t, []model.TestCase{
		{Name: "test_read_returns_byte", Line: 13},
		{Name: "test_write", Line: 18},
	}, c.TestCases)
}

func TestStripCommentsKeepsStrings(t *testing.T) {
	src := "a = \"// not a comment\"; /* gone\n */ b; // gone\nc"
	assert.Equal(t, "a = \"// not a comment\";        \n    b;        \nc", StripComments(src))
}

func TestParsePrototypes(t *testing.T) {
	header := `#ifndef UART_H
#define UART_H
#include <stdint.h>
typedef struct { int baud; } uart_cfg_t;
/* configure */
void uart_init(const uart_cfg_t *cfg);
int uart_read(int fd, char *buf, unsigned int);
const char* uart_name(void);
void uart_reset();
static inline int uart_ready(void) { return 1; }
extern int uart_errors;
#endif
`
	protos, err := ParsePrototypes(header)
	require.NoError(t, err)
	require.Len(t, protos, 4)

	assert.Equal(t, "uart_init", protos[0].Name)
	assert.True(t, protos[0].Void())
	assert.Equal(t, "const uart_cfg_t* cfg", protos[0].Signature())

	assert.Equal(t, "int", protos[1].ReturnType)
	assert.Equal(t, []Param{{Type: "int", Name: "fd"}, {Type: "char*", Name: "buf"}, {Type: "unsigned int", Name: "arg3"}}, protos[1].Params)

	assert.Equal(t, "const char*", protos[2].ReturnType)
	assert.Equal(t, "void", protos[2].Signature())
	assert.Equal(t, "uart_reset", protos[3].Name)
}

func TestParsePrototypesRejectsVariadic(t *testing.T) {
	_, err := ParsePrototypes("int log_printf(const char *fmt, ...);")
	assert.Error(t, err)
}

func TestMockGenerator(t *testing.T) {
	dir := t.TempDir()
	header := writeFile(t, dir, "uart.h", "int uart_read(int fd);\nvoid uart_init(void);\n")
	mock := model.Mock{
		Name:      "mock_uart",
		Header:    header,
		Input:     header,
		Source:    filepath.Join(dir, "mocks", "mock_uart.c"),
		OutHeader: filepath.Join(dir, "mocks", "mock_uart.h"),
	}

	require.NoError(t, MockGenerator{}.Generate(context.Background(), mock))

	h, err := os.ReadFile(mock.OutHeader)
	require.NoError(t, err)
	assert.Contains(t, string(h), `#include "uart.h"`)
	assert.Contains(t, string(h), "void uart_read_IgnoreAndReturn(int retval);")
	assert.Contains(t, string(h), "void uart_init_Ignore(void);")
	assert.Contains(t, string(h), "void mock_uart_Verify(void);")

	c, err := os.ReadFile(mock.Source)
	require.NoError(t, err)
	assert.Contains(t, string(c), "int uart_read(int fd)")
	assert.Contains(t, string(c), "return Mock.uart_read_retval;")
	assert.Contains(t, string(c), "void uart_init(void)")
}

func TestRunnerGenerator(t *testing.T) {
	out := filepath.Join(t.TempDir(), "runners", "test_uart_runner.c")
	err := RunnerGenerator{}.Generate(context.Background(), RunnerInput{
		Test:      "test_uart",
		TestFile:  "test/test_uart.c",
		Output:    out,
		TestCases: []model.TestCase{{Name: "test_a", Line: 3}, {Name: "test_b", Line: 9}},
		Mocks:     []string{"mock_uart"},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `#include "mock_uart.h"`)
	assert.Contains(t, text, "mock_uart_Init();")
	assert.Contains(t, text, `run_test(test_a, "test_a", 3);`)
	assert.Contains(t, text, `run_test(test_b, "test_b", 9);`)
	assert.Contains(t, text, `UnityBegin("test/test_uart.c");`)
	assert.NotContains(t, text, "CException.h")
}
