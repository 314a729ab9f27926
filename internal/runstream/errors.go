package runstream

import (
	"errors"
	"fmt"

	"github.com/agentdeck/agentctl/internal/backend/entities"
)

var (
	// ErrRunNotRunning is the sentinel behind every NotRunningError.
	ErrRunNotRunning = errors.New("agent run is not running")

	// ErrRunNotInActiveRuns is reported when the stream says the backend
	// has dropped the run from its active set.
	ErrRunNotInActiveRuns = errors.New("agent run not found in active runs; it may have finished or been stopped")

	// ErrClientClosed is reported by Open after Close.
	ErrClientClosed = errors.New("run stream client is closed")
)

// NotRunningError reports a run whose backend status is not running. Status
// is empty when the run was already known to be over.
type NotRunningError struct {
	RunID  string
	Status entities.RunStatus
}

func (e *NotRunningError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("agent run %s is no longer running", e.RunID)
	}
	return fmt.Sprintf("agent run %s is not running (status: %s)", e.RunID, e.Status)
}

// Is makes errors.Is(err, ErrRunNotRunning) match.
func (e *NotRunningError) Is(target error) bool {
	return target == ErrRunNotRunning
}
