package session

import (
	"fmt"

	"github.com/hby-star/minnow/types"
)

// Exit codes for the reassemble command.
const (
	ExitCodeComplete      = 0   // stream closed and drained
	ExitCodeIncomplete    = 1   // input ended early, or size mismatch
	ExitCodeStreamError   = 2   // corrupt frames or output failure
	ExitCodeInvalidConfig = 3   // invalid arguments or configuration
	ExitCodeCanceled      = 130 // interrupted
)

// ExitCode maps an outcome status to a process exit code.
func ExitCode(status types.OutcomeStatus) int {
	switch status {
	case types.OutcomeComplete:
		return ExitCodeComplete
	case types.OutcomeIncomplete, types.OutcomeSizeMismatch:
		return ExitCodeIncomplete
	case types.OutcomeCanceled:
		return ExitCodeCanceled
	default:
		return ExitCodeStreamError
	}
}

// Progress is the reassembly state an outcome is derived from.
type Progress struct {
	// Finished is true if the output stream is closed and drained.
	Finished bool
	// Delivered is the number of bytes written to the output.
	Delivered uint64
	// FirstUnassembled is the offset of the first missing byte.
	FirstUnassembled uint64
	// EOF is the end-of-stream offset, nil if never received.
	EOF *uint64
	// Declared is the stream_end total, nil if never received.
	Declared *uint64
	// Pending is the number of bytes held past a gap.
	Pending uint64
}

// DetermineOutcome determines the session outcome.
//
// Precedence:
//  1. A session error (canceled, stream, output) decides the outcome.
//  2. A finished stream is complete, unless a stream_end declaration
//     disagrees with the delivered length.
//  3. Anything else is incomplete.
func DetermineOutcome(runErr error, p Progress) *types.Outcome {
	switch {
	case IsCanceledError(runErr):
		return &types.Outcome{
			Status:  types.OutcomeCanceled,
			Message: "session canceled",
			Error:   runErr,
		}
	case runErr != nil:
		return &types.Outcome{
			Status:  types.OutcomeStreamError,
			Message: runErr.Error(),
			Error:   runErr,
		}
	}

	if p.Finished {
		if p.Declared != nil && *p.Declared != p.Delivered {
			return &types.Outcome{
				Status: types.OutcomeSizeMismatch,
				Message: fmt.Sprintf("stream_end declared %d bytes, delivered %d",
					*p.Declared, p.Delivered),
			}
		}
		return &types.Outcome{
			Status:  types.OutcomeComplete,
			Message: fmt.Sprintf("stream complete, %d bytes delivered", p.Delivered),
		}
	}

	if p.EOF == nil {
		return &types.Outcome{
			Status: types.OutcomeIncomplete,
			Message: fmt.Sprintf("input ended without a last segment, %d bytes delivered, %d pending",
				p.Delivered, p.Pending),
		}
	}
	return &types.Outcome{
		Status: types.OutcomeIncomplete,
		Message: fmt.Sprintf("input ended with bytes [%d, %d) missing, %d pending",
			p.FirstUnassembled, *p.EOF, p.Pending),
	}
}
