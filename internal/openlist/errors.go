package openlist

import (
	"fmt"

	"github.com/cloudgather/cloudgather/internal/cgerrors"
)

// apiError wraps an OpenList API failure with enough context to diagnose
// it, while still satisfying errors.Is(err, cgerrors.ErrRemote) or
// errors.Is(err, cgerrors.ErrAuth).
type apiError struct {
	op      string
	path    string
	code    int
	message string
	auth    bool
}

func (e *apiError) Error() string {
	return fmt.Sprintf("openlist: %s %s: code %d: %s", e.op, e.path, e.code, e.message)
}

func (e *apiError) Unwrap() error {
	if e.auth {
		return cgerrors.ErrAuth
	}

	return cgerrors.ErrRemote
}
