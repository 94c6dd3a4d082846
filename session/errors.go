package session

import "errors"

// ErrorKind classifies session errors for outcome determination.
type ErrorKind int

const (
	// ErrorStream indicates a frame read or decode failure.
	ErrorStream ErrorKind = iota
	// ErrorOutput indicates the output writer failed.
	ErrorOutput
	// ErrorCanceled indicates context cancellation.
	ErrorCanceled
)

// Error is a session failure with a classification.
type Error struct {
	// Kind classifies the failure.
	Kind ErrorKind
	// Err is the underlying error.
	Err error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsStreamError returns true if the error is a frame/stream error.
func IsStreamError(err error) bool {
	var sessErr *Error
	if errors.As(err, &sessErr) {
		return sessErr.Kind == ErrorStream
	}
	return false
}

// IsOutputError returns true if the error came from the output writer.
func IsOutputError(err error) bool {
	var sessErr *Error
	if errors.As(err, &sessErr) {
		return sessErr.Kind == ErrorOutput
	}
	return false
}

// IsCanceledError returns true if the error is due to context cancellation.
func IsCanceledError(err error) bool {
	var sessErr *Error
	if errors.As(err, &sessErr) {
		return sessErr.Kind == ErrorCanceled
	}
	return false
}
