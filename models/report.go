package models

import "time"

// RunStatus is the final verdict of one pipeline run.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunFailed  RunStatus = "failed"
)

// PublisherCount tracks how many listings a publisher yielded and how many
// survived the fairness limit. Defaulted counts fields that fell back to
// their placeholder, a sign the site layout drifted.
type PublisherCount struct {
	Publisher string
	Scraped   int
	Kept      int
	Defaulted int
	Failed    bool
}

// RunReport is what the caller of one run receives.
type RunReport struct {
	RunID        string
	Status       RunStatus
	StartedAt    time.Time
	FinishedAt   time.Time
	Publishers   []PublisherCount
	Listings     []Listing
	Fetched      int
	Skipped      int
	FailedAssets int
	SnapshotPath string
	Warnings     []string
}

// Total returns the number of listings in the digest.
func (r *RunReport) Total() int {
	return len(r.Listings)
}
