package treewalk

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyExecuted   = errors.New("walker already executed")
	ErrUnexpectedMessage = errors.New("unexpected message")
	ErrNoTransport       = errors.New("no transport configured")
	ErrNoFS              = errors.New("no filesystem configured")
	ErrEmptyRoot         = errors.New("empty root path on rank 0")
	ErrMeshClosed        = errors.New("mesh closed")
	ErrBadRank           = errors.New("rank out of range")
)

// WalkError reports a fatal failure of one rank. Per-node filesystem errors
// never surface as a WalkError; they are logged and the node is skipped.
type WalkError struct {
	Op    string
	Rank  int
	Cause error
}

func (e *WalkError) Error() string {
	return fmt.Sprintf("treewalk rank %d %s: %v", e.Rank, e.Op, e.Cause)
}

func (e *WalkError) Unwrap() error {
	return e.Cause
}

func newWalkError(op string, rank int, cause error) *WalkError {
	return &WalkError{
		Op:    op,
		Rank:  rank,
		Cause: cause,
	}
}
