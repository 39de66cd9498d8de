package jobs

import (
	"log"
	"time"
)

// Failure is one user (and optionally one link) a job could not update.
type Failure struct {
	UserID string
	ItemID string
	Err    error
}

// Report summarizes one job run. Succeeded, Failed and Skipped count users;
// Failures lists every error, including failed links of users that were
// still written.
type Report struct {
	Job       string
	RunID     string
	Started   time.Time
	Duration  time.Duration
	Succeeded int
	Failed    int
	Skipped   int
	Failures  []Failure
}

func (r *Report) Log() {
	status := "✅"
	if r.Failed > 0 || len(r.Failures) > 0 {
		status = "⚠️"
	}
	log.Printf("%s [Job:%s] run %s finished in %s: %d succeeded, %d failed, %d skipped",
		status, r.Job, r.RunID, r.Duration.Round(time.Millisecond), r.Succeeded, r.Failed, r.Skipped)
}
