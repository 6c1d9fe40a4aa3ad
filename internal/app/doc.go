// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the run lifecycle: load the project
// configuration, apply the build environment, discover files, decide what
// a configuration change means for existing artifacts, and drive the test
// build. It is decoupled from any specific entrypoint like a CLI.
package app
