package types

import (
	"errors"
	"fmt"
)

// MaxCapacity bounds the byte pipe capacity (1 GiB). The reassembler
// allocates per-byte bookkeeping for the whole window.
const MaxCapacity = 1 << 30

// SessionMeta identifies one reassembly session.
type SessionMeta struct {
	// SessionID is the canonical session identifier (UUID).
	SessionID string
	// StreamID identifies the stream being reassembled.
	StreamID string
	// Capacity is the byte pipe capacity for the session.
	Capacity uint64
}

// Validate checks that the metadata can identify a session.
func (m *SessionMeta) Validate() error {
	if m.SessionID == "" {
		return errors.New("session_id must not be empty")
	}
	if m.Capacity == 0 {
		return errors.New("capacity must be positive")
	}
	if m.Capacity > MaxCapacity {
		return fmt.Errorf("capacity %d exceeds maximum %d", m.Capacity, MaxCapacity)
	}
	return nil
}
