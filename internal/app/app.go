package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vk/unitgrid/internal/config"
	"github.com/vk/unitgrid/internal/ctxlog"
	"github.com/vk/unitgrid/internal/orchestrator"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	model  *config.Model
	root   string

	// environ is the process environment seen by expressions and tools.
	// When set by WithEnviron the build environment is not exported to
	// the current process.
	environ  []string
	isolated bool
	invoker  orchestrator.Invoker
}

// Option customizes an App.
type Option func(*App)

// WithInvoker replaces the toolchain that runs build steps.
func WithInvoker(inv orchestrator.Invoker) Option {
	return func(a *App) { a.invoker = inv }
}

// WithEnviron sets the environment in place of os.Environ and keeps
// configured environment entries out of the current process.
func WithEnviron(environ []string) Option {
	return func(a *App) {
		a.environ = environ
		a.isolated = true
	}
}

// NewApp is the constructor for the main application. It configures an
// isolated logger, then loads and validates the project configuration.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, opts ...Option) (*App, error) {
	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	if err != nil {
		return nil, err
	}
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	a := &App{outW: outW, logger: logger, config: cfg, environ: os.Environ()}
	for _, opt := range opts {
		opt(a)
	}

	if a.root, err = projectRoot(cfg.ProjectFile); err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	if loader == nil {
		loader = LoaderFor(cfg.ProjectFile)
	}
	a.model, err = loader.Load(ctx, cfg.ProjectFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := a.model.Validate(); err != nil {
		return nil, err
	}
	logger.Debug("Configuration loaded and validated.", "root", a.root, "files", len(a.model.Files))
	return a, nil
}

// Model returns the loaded configuration. This is primarily for testing.
func (a *App) Model() *config.Model {
	return a.model
}
