package console

import "fmt"

// apiError carries the failing operation, the HTTP status (0 when the
// request never produced a response) and the underlying cause.
type apiError struct {
	op     string
	status int
	err    error
}

func (e *apiError) Error() string {
	if e.status != 0 {
		return fmt.Sprintf("console %s failed: status %d", e.op, e.status)
	}
	return fmt.Sprintf("console %s failed: %v", e.op, e.err)
}

func (e *apiError) Unwrap() error { return e.err }

// RegistrationError indicates the console rejected or never answered a
// registration attempt. The agent cannot operate without an identity.
type RegistrationError struct{ apiError }

// HeartbeatError indicates a failed liveness announcement. Non-fatal.
type HeartbeatError struct{ apiError }

// PollError indicates a failed task poll. Non-fatal; the loop polls again
// on its next cycle.
type PollError struct{ apiError }

// SubmitError indicates a scan result could not be delivered after all
// retries were exhausted.
type SubmitError struct{ apiError }

// UpdateError indicates a task status update could not be delivered.
type UpdateError struct{ apiError }

func newRegistrationError(status int, err error) *RegistrationError {
	return &RegistrationError{apiError{op: "register", status: status, err: err}}
}

func newHeartbeatError(status int, err error) *HeartbeatError {
	return &HeartbeatError{apiError{op: "heartbeat", status: status, err: err}}
}

func newPollError(status int, err error) *PollError {
	return &PollError{apiError{op: "poll", status: status, err: err}}
}

func newSubmitError(status int, err error) *SubmitError {
	return &SubmitError{apiError{op: "submit", status: status, err: err}}
}

func newUpdateError(status int, err error) *UpdateError {
	return &UpdateError{apiError{op: "update", status: status, err: err}}
}
