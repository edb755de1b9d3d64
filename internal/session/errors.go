package session

import (
	"errors"

	"github.com/park285/checkmate-ai/internal/engineclient"
)

var (
	ErrIllegalMove       = errors.New("illegal move")
	ErrTurnViolation     = errors.New("not your turn")
	ErrRemoteUnavailable = errors.New("remote engine unavailable")
	ErrRemoteMoveFailure = errors.New("remote move failed")

	ErrNoSession        = errors.New("no active session")
	ErrGameOver         = errors.New("game is over")
	ErrUndoUnavailable  = errors.New("undo not available")
	ErrLevelLocked      = errors.New("level is locked")
	ErrUnknownLevel     = errors.New("unknown level")
	ErrRemoteNotPending = errors.New("no remote move pending")
	ErrClosed           = errors.New("controller closed")
)

// errorDetail extracts a user-facing reason from a collaborator error.
func errorDetail(err error) string {
	var apiErr *engineclient.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
