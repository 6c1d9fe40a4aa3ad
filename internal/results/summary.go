package results

import "sort"

// TestError records a test whose execution stage failed outright.
type TestError struct {
	Test string
	Err  error
}

// Summary aggregates the results of one run.
type Summary struct {
	Results []*Result
	Errors  []TestError
	// BuildOnly is set when the run stopped before execution.
	BuildOnly bool
}

// Totals are the case counts across all results.
type Totals struct {
	Tests    int
	Passed   int
	Failures int
	Ignored  int
}

// Add records a result.
func (s *Summary) Add(r *Result) {
	s.Results = append(s.Results, r)
}

// AddError records a test that could not be executed.
func (s *Summary) AddError(test string, err error) {
	s.Errors = append(s.Errors, TestError{Test: test, Err: err})
}

// Sort orders results and errors by test name.
func (s *Summary) Sort() {
	sort.Slice(s.Results, func(i, j int) bool { return s.Results[i].Test < s.Results[j].Test })
	sort.Slice(s.Errors, func(i, j int) bool { return s.Errors[i].Test < s.Errors[j].Test })
}

// Totals sums the case counts.
func (s *Summary) Totals() Totals {
	var t Totals
	for _, r := range s.Results {
		t.Tests += r.Total
		t.Failures += r.Failures
		t.Ignored += r.Ignored
	}
	t.Passed = t.Tests - t.Failures - t.Ignored
	return t
}

// Failed reports whether any test failed or could not be executed.
func (s *Summary) Failed() bool {
	if len(s.Errors) > 0 {
		return true
	}
	for _, r := range s.Results {
		if !r.Passed() {
			return true
		}
	}
	return false
}
