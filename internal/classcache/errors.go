package classcache

import (
	"errors"
	"fmt"
)

// Sentinel errors for the class cache.
var (
	// ErrModification is matched by every error returned from Merge.
	ErrModification = errors.New("classcache: invalid modification")

	// ErrUnknownKind indicates a description with a kind outside
	// class/interface/annotation.
	ErrUnknownKind = errors.New("classcache: unknown type kind")
)

// ModificationError rejects a merge input. It is returned before any lock is
// taken, so the graph is untouched and the caller may retry with corrected
// input.
type ModificationError struct {
	FQN    string
	Reason string
	Err    error
}

func (e *ModificationError) Error() string {
	if e.FQN == "" {
		return fmt.Sprintf("classcache: invalid modification: %s", e.Reason)
	}
	return fmt.Sprintf("classcache: invalid modification of %s: %s", e.FQN, e.Reason)
}

func (e *ModificationError) Unwrap() error {
	return e.Err
}

// Is makes every ModificationError match ErrModification.
func (e *ModificationError) Is(target error) bool {
	return target == ErrModification
}
