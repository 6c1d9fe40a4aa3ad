package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vk/unitgrid/internal/model"
	"github.com/vk/unitgrid/internal/shell"
)

// FakeInvoker stands in for the toolchain. It records every step, writes
// placeholder objects and executables so later stages find them, and
// answers executions from canned outcomes.
type FakeInvoker struct {
	mu sync.Mutex

	Compiles     []model.CompileStep
	Links        []model.LinkStep
	Preprocesses []model.PreprocessStep
	Executions   []model.ExecStep
	// ExecutionTimes records when each test's execution started and ended.
	ExecutionTimes map[string]*ExecutionRecord

	// Outcomes maps a test key to the outcome Execute returns. Tests
	// without an entry pass.
	Outcomes map[string]*shell.Outcome
	// ExecErrors maps a test key to an error Execute returns.
	ExecErrors map[string]error
	// CompileErrors maps a source base name to an error Compile returns.
	CompileErrors map[string]error
	// ExecDelay is slept inside every execution.
	ExecDelay time.Duration
}

// NewFakeInvoker returns an empty fake.
func NewFakeInvoker() *FakeInvoker {
	return &FakeInvoker{
		ExecutionTimes: make(map[string]*ExecutionRecord),
		Outcomes:       make(map[string]*shell.Outcome),
		ExecErrors:     make(map[string]error),
		CompileErrors:  make(map[string]error),
	}
}

// PassingOutput is the Unity output of a run where every case passes.
func PassingOutput(file string, cases ...string) string {
	var sb strings.Builder
	for i, c := range cases {
		fmt.Fprintf(&sb, "%s:%d:%s:PASS\n", file, i+1, c)
	}
	fmt.Fprintf(&sb, "\n-----------------------\n%d Tests 0 Failures 0 Ignored\nOK\n", len(cases))
	return sb.String()
}

func (f *FakeInvoker) CompileCommand(ctx context.Context, step model.CompileStep) (string, error) {
	return strings.Join(append([]string{"cc", "-c", step.Source, "-o", step.Object}, step.Flags...), " "), nil
}

func (f *FakeInvoker) Compile(ctx context.Context, step model.CompileStep) (*shell.Outcome, error) {
	f.mu.Lock()
	f.Compiles = append(f.Compiles, step)
	err := f.CompileErrors[filepath.Base(step.Source)]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &shell.Outcome{}, write(step.Object, "object "+step.Source)
}

func (f *FakeInvoker) Link(ctx context.Context, step model.LinkStep) (*shell.Outcome, error) {
	f.mu.Lock()
	f.Links = append(f.Links, step)
	f.mu.Unlock()
	return &shell.Outcome{}, write(step.Executable, strings.Join(step.Objects, "\n"))
}

func (f *FakeInvoker) Preprocess(ctx context.Context, step model.PreprocessStep) (*shell.Outcome, error) {
	f.mu.Lock()
	f.Preprocesses = append(f.Preprocesses, step)
	f.mu.Unlock()
	data, err := os.ReadFile(step.Source)
	if err != nil {
		return nil, err
	}
	return &shell.Outcome{}, write(step.Output, string(data))
}

func (f *FakeInvoker) Execute(ctx context.Context, step model.ExecStep) (*shell.Outcome, error) {
	start := time.Now()
	if f.ExecDelay > 0 {
		time.Sleep(f.ExecDelay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Executions = append(f.Executions, step)
	f.ExecutionTimes[step.Test] = &ExecutionRecord{Start: start, End: time.Now()}
	if err := f.ExecErrors[step.Test]; err != nil {
		return nil, err
	}
	if out, ok := f.Outcomes[step.Test]; ok {
		return out, nil
	}
	return &shell.Outcome{Command: step.Executable, Output: PassingOutput(step.Test+".c", "test_ok")}, nil
}

// CompiledFor returns the compile steps recorded for a test.
func (f *FakeInvoker) CompiledFor(test string) []model.CompileStep {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.CompileStep
	for _, s := range f.Compiles {
		if s.Test == test {
			out = append(out, s)
		}
	}
	return out
}

func write(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o755)
}
