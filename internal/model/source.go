// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the source and mock entries a Testable links against.
package model

// Role tells where a source in a Testable's build set came from.
type Role string

const (
	RoleTest      Role = "test"
	RoleRunner    Role = "runner"
	RoleMock      Role = "mock"
	RoleSource    Role = "source"
	RoleFramework Role = "framework"
	RoleSupport   Role = "support"
)

// Source is one file of a Testable's build set.
type Source struct {
	Path   string
	Object string
	Role   Role
	// NoLink marks a file that is part of the build set but produces no
	// object, such as a header injected by a directive.
	NoLink bool
}

// Mock is one mock a test depends on.
type Mock struct {
	// Name is the mock module name, e.g. mock_uart.
	Name string
	// Header is the original header the mock stands in for.
	Header string
	// Input is the header the generator reads: the preprocessed header
	// when preprocessing is enabled, otherwise Header.
	Input string
	// Source and OutHeader are the generated files.
	Source    string
	OutHeader string
}
