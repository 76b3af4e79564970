package constants

// JobStatus is the canonical status for rows in the jobs ledger.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusUploaded   JobStatus = "uploaded"   // archive received, not started
	JobStatusProcessing JobStatus = "processing" // pipeline running
	JobStatusCompleted  JobStatus = "completed"  // terminal success
	JobStatusError      JobStatus = "error"      // terminal failure
)

// Valid reports whether s is one of the stored job statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusUploaded, JobStatusProcessing, JobStatusCompleted, JobStatusError:
		return true
	}
	return false
}

// Terminal reports whether no further transition is expected.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusError
}

func (s JobStatus) String() string { return string(s) }
