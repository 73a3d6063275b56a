package backfill

import "fmt"

// Result contains statistics from a backfill run.
type Result struct {
	Model      string
	Scanned    int
	Candidates int
	Embedded   int
	Skipped    int
	Failed     int
}

// Summary returns a human-readable summary of the backfill result.
func (r *Result) Summary() string {
	return fmt.Sprintf(
		"Backfill complete (model %s): %d scanned, %d candidates\n"+
			"%d embedded, %d skipped (changed or deleted), %d failed",
		r.Model, r.Scanned, r.Candidates,
		r.Embedded, r.Skipped, r.Failed,
	)
}
