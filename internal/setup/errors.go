package setup

import (
	"errors"
	"fmt"
	"strings"

	"stocksetup/pkg/contracts/domain"
)

// ErrInvalidTransition marks a step advance that violates the wizard's
// monotonic ordering. It is never retried automatically and leaves the
// stored progress untouched.
var ErrInvalidTransition = errors.New("invalid step transition")

// AlreadySetupError short-circuits detection for a user whose Configuration
// is already committed. It carries the existing mapping so callers can
// return it without re-running classification.
type AlreadySetupError struct {
	Config domain.Configuration
}

func (e *AlreadySetupError) Error() string {
	return "setup already completed for this workspace"
}

// ValidationErrors aggregates per-field rejections from the Confirmation
// Gate. It never accompanies a partial commit.
type ValidationErrors []domain.FieldError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	fields := make([]string, len(e))
	for i, fe := range e {
		fields[i] = fe.Field
	}
	return fmt.Sprintf("validation failed for %s", strings.Join(fields, ", "))
}

// RemoteError wraps a remote collaborator failure (search or lookup
// transport errors, timeouts). It is retryable: the failed operation can be
// re-invoked and no progress or configuration was mutated.
type RemoteError struct {
	Op  string // "search" or "lookup"
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }
