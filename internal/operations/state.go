package operations

// State is the machine lifecycle state
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StatePolling    State = "polling"
	StateCompleting State = "completing"
	StateErrored    State = "errored"
)

// Busy reports whether a job is in flight. Submission and data replacement
// are refused while busy.
func (s State) Busy() bool {
	switch s {
	case StateSubmitting, StatePolling, StateCompleting:
		return true
	}
	return false
}

// Terminal reports whether s ends a job
func (s State) Terminal() bool {
	return s == StateIdle || s == StateErrored
}

// User facing messages outside the per-stage ones
const (
	MessageFetchingResult = "Result will be shown. Please wait."
	MessageResultShown    = "Result data is shown blue dot."
)
