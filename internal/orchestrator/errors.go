package orchestrator

import "errors"

// Failure kinds raised by a run. All of them end the run with a best-effort
// Status="Failed" write; classify with errors.Is.
var (
	// ErrValidation means a required input was missing from the record. No
	// submission is attempted.
	ErrValidation = errors.New("validation failed")

	// ErrSubmission covers transport failures and malformed or rejected
	// submission responses. No job id exists when this is raised.
	ErrSubmission = errors.New("submission failed")

	// ErrResult means the job reported completion without a usable output.
	ErrResult = errors.New("malformed completion result")

	// ErrGenerationFailed means the remote job reached its failed state.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrTimeout means the poll budget was exhausted before a terminal state.
	ErrTimeout = errors.New("generation timed out")
)
