package tracking

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Sentinel errors. They are wrapped with the offending path and a hint for
// the operator; test with errors.Is.
var (
	ErrAlreadyWrapped    = errors.New("already wrapped")
	ErrDirtyWorkingState = errors.New("working state has uncommitted changes")
	ErrNotTracked        = errors.New("not tracked")
	ErrTokenSubstitution = errors.New("token substitution failed")
	ErrUnsupportedRecord = errors.New("unsupported record")
	ErrStale             = errors.New("wrapped sources changed since generation")
	ErrPendingUpdate     = errors.New("update branch is checked out")
)

// TokenSubstitutionError reports a head token that does not occur exactly
// once in an artifact. The artifact is left untouched.
type TokenSubstitutionError struct {
	Path  string
	Token string
	Count int
}

func (e *TokenSubstitutionError) Error() string {
	return fmt.Sprintf("%s: expected exactly one %q, found %d", e.Path, e.Token, e.Count)
}

// Is makes errors.Is(err, ErrTokenSubstitution) hold.
func (e *TokenSubstitutionError) Is(target error) bool { return target == ErrTokenSubstitution }

func dirtyError() error {
	return errors.WithHint(errors.WithStack(ErrDirtyWorkingState),
		"commit or stash your changes and run the command again")
}

func notTrackedError(path, hint string) error {
	return errors.WithHint(errors.Wrapf(ErrNotTracked, "%s", path), hint)
}
