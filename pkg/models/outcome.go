package models

// RecordState is the terminal state of one record's trip through the
// pipeline: received -> mapped -> assembled -> {skipped | rejected |
// committed | failed}.
type RecordState string

const (
	StateReceived  RecordState = "received"
	StateMapped    RecordState = "mapped"
	StateAssembled RecordState = "assembled"

	// StateSkipped means the external id already exists. Not an error.
	StateSkipped RecordState = "skipped"
	// StateRejected means validation failed before any write.
	StateRejected RecordState = "rejected"
	// StateCommitted means all rows for the record were written atomically.
	StateCommitted RecordState = "committed"
	// StateFailed means the write transaction rolled back.
	StateFailed RecordState = "failed"
)

// IngestOutcome reports what happened to a single record.
type IngestOutcome struct {
	State        RecordState
	ExternalID   int64
	SubmissionID int64
	Err          error
}

// BatchSummary accumulates outcomes over one ingestion run.
type BatchSummary struct {
	Committed int
	Skipped   int
	Rejected  int
	Failed    int
}

// Add records one outcome in the summary.
func (s *BatchSummary) Add(o IngestOutcome) {
	switch o.State {
	case StateCommitted:
		s.Committed++
	case StateSkipped:
		s.Skipped++
	case StateRejected:
		s.Rejected++
	case StateFailed:
		s.Failed++
	}
}

// Total returns the number of records the summary has seen.
func (s *BatchSummary) Total() int {
	return s.Committed + s.Skipped + s.Rejected + s.Failed
}
