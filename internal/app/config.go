package app

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultProjectFile is used when no project file is given.
const DefaultProjectFile = "project.yml"

// Config holds the settings of a single run, taken from the command line.
type Config struct {
	// ProjectFile is a project.yml or project.hcl file, or a directory of
	// .hcl files. Relative paths in it resolve against its directory.
	ProjectFile string

	LogFormat string
	LogLevel  string

	// BuildOnly stops after linking. Clean removes the build context's
	// artifacts before building.
	BuildOnly bool
	Clean     bool

	// Tests selects tests by name (`test_uart`) or by path. Empty runs all.
	Tests []string
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if strings.TrimSpace(cfg.ProjectFile) == "" {
		cfg.ProjectFile = DefaultProjectFile
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("invalid log format '%s': must be 'text' or 'json'", cfg.LogFormat)
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	for _, t := range cfg.Tests {
		if strings.TrimSpace(t) == "" {
			return nil, errors.New("test selection must not contain empty names")
		}
	}
	return &cfg, nil
}
