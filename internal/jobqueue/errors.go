package jobqueue

import "fmt"

// InvalidStateError reports a job operation attempted against a job
// whose current status does not allow it. It is distinct from not-found
// so callers can map the two to different API responses.
type InvalidStateError struct {
	JobID  string
	Status string
	Action string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s job %s in status %q", e.Action, e.JobID, e.Status)
}
