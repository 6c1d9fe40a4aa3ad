package testutil

import "time"

// ExecutionRecord holds the start and end times of one faked test
// execution.
type ExecutionRecord struct {
	Start time.Time
	End   time.Time
}
