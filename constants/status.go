package constants

// JobStatus is the canonical status for persisted extraction jobs.
type JobStatus string

// Stable values (store these exact strings in the job document).
// A job is created in processing and moves exactly once to done or error.
const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusError      JobStatus = "error"
)

// Terminal reports whether s allows no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusError
}
