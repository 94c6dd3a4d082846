package lode

import (
	"errors"
	"fmt"
	"strings"
)

// Op names a storage operation run against a session partition.
type Op string

const (
	// OpOpen opens the dataset, its store or the AWS configuration.
	OpOpen Op = "open"
	// OpWriteSummary writes the session_summary record.
	OpWriteSummary Op = "write_summary"
	// OpPutFile writes a sidecar file such as payload.bin.
	OpPutFile Op = "put_file"
	// OpQuerySummary lists snapshots and reads summaries back.
	OpQuerySummary Op = "query_summary"
)

// Failure kinds. Match with errors.Is.
var (
	// ErrDenied means the store refused the operation (EACCES, AccessDenied, 403).
	ErrDenied = errors.New("storage access denied")
	// ErrCredentials means no usable credentials were found or they were rejected.
	ErrCredentials = errors.New("storage credentials rejected")
	// ErrMissing means the storage root, bucket or object does not exist.
	ErrMissing = errors.New("storage location missing")
	// ErrFull means the store is out of space or quota.
	ErrFull = errors.New("storage full")
	// ErrThrottled means the store asked the client to slow down.
	ErrThrottled = errors.New("storage throttled")
	// ErrUnreachable means the store endpoint could not be reached.
	ErrUnreachable = errors.New("storage unreachable")
	// ErrTimeout means the operation ran out of time.
	ErrTimeout = errors.New("storage timed out")
	// ErrUnclassified is the kind of failures no pattern recognizes.
	ErrUnclassified = errors.New("storage error")
)

// StorageError is a classified failure of one storage operation.
type StorageError struct {
	// Kind is one of the failure kinds above.
	Kind error
	// Op is the operation that failed.
	Op Op
	// Path is the dataset or store path involved, if any.
	Path string
	// Err is the underlying error.
	Err error
}

func (e *StorageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is matches the failure kind as well as the wrapped chain.
func (e *StorageError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// Retryable reports whether running the same operation again may succeed.
func (e *StorageError) Retryable() bool {
	return e.Kind == ErrTimeout || e.Kind == ErrThrottled || e.Kind == ErrUnreachable
}

// NewStorageError creates a classified storage error.
func NewStorageError(kind error, op Op, path string, err error) *StorageError {
	return &StorageError{
		Kind: kind,
		Op:   op,
		Path: path,
		Err:  err,
	}
}

// wrapStorageError classifies err as a failure of op on path.
// Returns nil if err is nil.
func wrapStorageError(op Op, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewStorageError(classifyError(err), op, path, err)
}

// failurePatterns maps message fragments of the FS and S3 stores to kinds.
// Order matters: the first matching kind wins.
var failurePatterns = []struct {
	kind      error
	fragments []string
}{
	{ErrFull, []string{"no space left", "ENOSPC", "quota exceeded", "disk full"}},
	{ErrThrottled, []string{"SlowDown", "TooManyRequests", "RequestLimitExceeded", "429", "throttl"}},
	{ErrCredentials, []string{"NoCredentialProviders", "failed to retrieve credentials", "InvalidAccessKeyId",
		"SignatureDoesNotMatch", "ExpiredToken", "Unauthorized", "401"}},
	{ErrDenied, []string{"permission denied", "EACCES", "AccessDenied", "access denied", "Forbidden", "403",
		"read-only file system"}},
	{ErrMissing, []string{"no such file", "NoSuchBucket", "NoSuchKey", "does not exist", "404"}},
	{ErrTimeout, []string{"deadline exceeded", "timed out", "timeout"}},
	{ErrUnreachable, []string{"connection refused", "connection reset", "no such host", "no route to host",
		"network is unreachable", "dial tcp"}},
}

// classifyError determines the failure kind of err.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return ErrTimeout
	}

	msg := strings.ToLower(err.Error())
	for _, p := range failurePatterns {
		for _, fragment := range p.fragments {
			if strings.Contains(msg, strings.ToLower(fragment)) {
				return p.kind
			}
		}
	}
	return ErrUnclassified
}
