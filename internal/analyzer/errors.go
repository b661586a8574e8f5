package analyzer

import (
	"errors"
	"fmt"
)

var (
	// ErrNoVideoStream indicates the file has no video stream.
	ErrNoVideoStream = errors.New("no video stream found")

	// ErrNoStreams indicates ffprobe reported no streams at all.
	ErrNoStreams = errors.New("no streams found")
)

// AnalysisError wraps any failure to analyze a file.
type AnalysisError struct {
	Path string
	Err  error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analyze %s: %v", e.Path, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}
