package config

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// WorkerBudget is the number of workers a parallel stage may use: either a
// fixed count or "auto", bound to the number of available CPUs.
type WorkerBudget struct {
	Auto  bool
	Count int
}

// AutoBudget is the budget that follows the host's CPU count.
var AutoBudget = WorkerBudget{Auto: true}

// Fixed returns a budget of n workers.
func Fixed(n int) WorkerBudget {
	return WorkerBudget{Count: n}
}

// ParseWorkerBudget accepts "auto" or an integer. Non-positive integers are
// parsed but rejected by Validate.
func ParseWorkerBudget(s string) (WorkerBudget, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), ":")
	if strings.EqualFold(s, "auto") {
		return AutoBudget, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return WorkerBudget{}, fmt.Errorf("worker budget must be 'auto' or an integer, got %q", s)
	}
	return Fixed(n), nil
}

// Resolve returns the concrete worker count.
func (b WorkerBudget) Resolve() int {
	if b.Auto {
		return runtime.NumCPU()
	}
	return b.Count
}

// Valid reports whether the budget can drive a worker pool.
func (b WorkerBudget) Valid() bool {
	return b.Auto || b.Count > 0
}

func (b WorkerBudget) String() string {
	if b.Auto {
		return "auto"
	}
	return strconv.Itoa(b.Count)
}
