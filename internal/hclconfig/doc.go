// Package hclconfig loads project.hcl files into a config.Model.
//
// A project file is made of blocks:
//
//	project {
//	  build_root      = "out"
//	  compile_threads = 4
//	}
//	paths {
//	  test   = ["test/**"]
//	  source = ["src/**"]
//	}
//	extension { executable = ".exe" }
//	vendor { unity = "vendor/unity/src" }
//
//	tool "test_compiler" {
//	  executable = "gcc"
//	  arguments  = ["-c \"$${1}\"", { pattern = "-I\"$\"", collection = "paths_include" }]
//	}
//
//	flags "test" "compile" {
//	  rule "test_uart" { values = ["-DUART"] }
//	  rule "*"         { values = ["-Wall"] }
//	}
//	defines "test" { rule "*" { values = ["TEST"] } }
//	matcher "include_paths" { rule "spi" { values = ["spi/inc"] } }
//
//	environment "CC" { value = "clang" }
//	vars { board = { name = "stm32" } }
//
//	libraries = ["m"]
//	plugins   = ["stdout_report"]
//
// Positional tokens must be written `$${1}` since HCL reads `${` as an
// interpolation. Rule blocks keep their source order. Files are decoded in
// order over config.Defaults, the same way the YAML loader layers them.
package hclconfig
