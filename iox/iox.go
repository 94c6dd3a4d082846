// Package iox provides I/O helpers for resource cleanup and for the
// "-" convention of CLI paths.
package iox

import (
	"io"
	"os"
)

// StdioPath is the path that selects stdin or stdout.
const StdioPath = "-"

// DiscardClose closes c and discards the error.
// Use in defer statements where close errors are unactionable:
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a cleanup function that closes c.
// Designed for t.Cleanup and b.Cleanup registration:
//
//	t.Cleanup(iox.CloseFunc(client))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr calls fn and discards the returned error.
// Use for non-Close cleanup calls (e.g. Sync) where errors are unactionable:
//
//	defer iox.DiscardErr(logger.Sync)
func DiscardErr(fn func() error) { _ = fn() }

// OpenInput opens path for reading. StdioPath selects stdin, whose Close
// is a no-op.
func OpenInput(path string) (io.ReadCloser, error) {
	if path == StdioPath {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// CreateOutput creates or truncates path for writing. StdioPath selects
// stdout, whose Close is a no-op.
func CreateOutput(path string) (io.WriteCloser, error) {
	if path == StdioPath {
		return nopWriteCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
