// Package orchestrator is the "Pipeline Layer" of the application. It takes
// a set of test files, a configuration snapshot and the file collections
// found by discovery, and drives every test through one fixed sequence of
// stages: path preparation, directive extraction, context resolution,
// context extraction, planning, header preprocessing, mock generation,
// test-file preprocessing, runner generation, artifact resolution,
// compilation, linking and execution.
//
// Each stage fans out across a bounded worker pool and fully joins before
// the next one starts. Workers never write to the shared Testable map:
// they return an updated copy, and the controller stores it after the join.
// Any item failure in the first twelve stages aborts the run with a
// StageError; the execution stage isolates failures per test.
package orchestrator
