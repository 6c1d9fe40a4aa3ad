// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package model holds the in-memory records the build pipeline works on.
//
// # Core Concepts
//
//   - Testable: one test source file plus every value the pipeline resolves
//     for it: output directories, search paths, flags, defines, mocks, the
//     runner, the sources and objects it links, and its result files.
//
//   - Mock: a generated stand-in for a header the test includes with the
//     mock prefix.
//
//   - Steps: the fully resolved requests handed to the build-step invoker
//     for compiling, linking, preprocessing and executing.
//
// A Testable is created when the pipeline starts and is only replaced
// between stages. Workers never write to it; each stage returns per-item
// results and the controller applies them after the stage's barrier.
package model
