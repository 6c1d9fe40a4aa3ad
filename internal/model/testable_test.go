// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyFor(t *testing.T) {
	assert.Equal(t, "test_uart", KeyFor("test/drivers/test_uart.c"))
	assert.Equal(t, "test_uart", KeyFor("test_uart.c"))
	assert.Equal(t, "test_uart", KeyFor("test_uart"))
	assert.Equal(t, "test_uart.v2", KeyFor("/abs/test_uart.v2.c"))
}

func TestCompileInput(t *testing.T) {
	tb := &Testable{Filepath: "test/test_uart.c"}
	assert.Equal(t, "test/test_uart.c", tb.CompileInput())

	tb.PreprocessedFile = "build/test/preprocess/test_uart/test_uart.c"
	assert.Equal(t, "build/test/preprocess/test_uart/test_uart.c", tb.CompileInput())
}

func TestCloneDetachesReplacedSlices(t *testing.T) {
	orig := &Testable{Key: "test_uart", Objects: []string{"a.o"}}
	c := orig.Clone()
	c.Objects = append([]string(nil), "b.o")
	c.Key = "test_spi"

	assert.Equal(t, "test_uart", orig.Key)
	assert.Equal(t, []string{"a.o"}, orig.Objects)
}
