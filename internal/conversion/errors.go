package conversion

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled indicates the task was cancelled before it finished.
	ErrCancelled = errors.New("conversion cancelled")

	// ErrTaskNotFound indicates no task has the given ID.
	ErrTaskNotFound = errors.New("conversion task not found")

	// ErrTaskFinished indicates the task already reached a terminal state.
	ErrTaskFinished = errors.New("conversion task already finished")

	// ErrEngineClosed indicates the engine no longer accepts work.
	ErrEngineClosed = errors.New("conversion engine closed")

	// ErrInvalidOptions indicates encoding options are out of range.
	ErrInvalidOptions = errors.New("invalid conversion options")

	// ErrMissingEncoder indicates ffmpeg was built without a required encoder.
	ErrMissingEncoder = errors.New("required encoder not available")
)

// SpawnError means the transcoder process could not be started.
type SpawnError struct {
	Binary string
	Err    error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("start %s: %v", e.Binary, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ProcessError means the transcoder exited abnormally.
type ProcessError struct {
	ExitCode int    // -1 when killed by a signal
	Stderr   string // tail of the process output
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("ffmpeg exited with code %d: %s", e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("ffmpeg exited with code %d: %v", e.ExitCode, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}
