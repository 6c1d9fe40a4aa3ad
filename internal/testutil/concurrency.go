package testutil

// MaxConcurrent reports the largest number of records whose time spans
// overlap at any instant.
func MaxConcurrent(records map[string]*ExecutionRecord) int {
	peak := 0
	for _, a := range records {
		n := 0
		for _, b := range records {
			if !b.Start.After(a.Start) && b.End.After(a.Start) {
				n++
			}
		}
		if n > peak {
			peak = n
		}
	}
	return peak
}
