package types

// OutcomeStatus is the final classification of a reassembly session.
type OutcomeStatus string

const (
	// OutcomeComplete means the stream closed and every byte was delivered.
	OutcomeComplete OutcomeStatus = "complete"
	// OutcomeIncomplete means input ended before the stream could close.
	OutcomeIncomplete OutcomeStatus = "incomplete"
	// OutcomeSizeMismatch means the stream closed but its length disagrees
	// with the sender's stream_end declaration.
	OutcomeSizeMismatch OutcomeStatus = "size_mismatch"
	// OutcomeStreamError means the frame stream was corrupt or the output
	// could not be written.
	OutcomeStreamError OutcomeStatus = "stream_error"
	// OutcomeCanceled means the session was canceled.
	OutcomeCanceled OutcomeStatus = "canceled"
)

// IsSuccess reports whether the status is a clean completion.
func (s OutcomeStatus) IsSuccess() bool {
	return s == OutcomeComplete
}

// Outcome is the final result of a session.
type Outcome struct {
	// Status is the outcome classification.
	Status OutcomeStatus `json:"status"`
	// Message is a human-readable description.
	Message string `json:"message"`
	// Error is the underlying error, if any.
	Error error `json:"-"`
}
