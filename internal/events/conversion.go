package events

const (
	EventConversionQueued    = "conversion.queued"
	EventConversionStarted   = "conversion.started"
	EventConversionProgress  = "conversion.progress"
	EventConversionCompleted = "conversion.completed"
	EventConversionFailed    = "conversion.failed"
)

// ConversionQueued is emitted when a task enters the queue.
type ConversionQueued struct {
	BaseEvent
	InputPath  string `json:"input_path"`
	OutputPath string `json:"output_path"`
}

// ConversionStarted is emitted when a task takes a concurrency slot.
type ConversionStarted struct {
	BaseEvent
	InputPath string `json:"input_path"`
}

// ConversionProgressed reports transcode progress.
type ConversionProgressed struct {
	BaseEvent
	Percent  float64 `json:"percent"`  // 0.0 - 100.0
	Timemark string  `json:"timemark"` // position in the output, e.g. "00:01:23.45"
}

// ConversionCompleted is emitted when the output file is in place.
type ConversionCompleted struct {
	BaseEvent
	InputPath  string `json:"input_path"`
	OutputPath string `json:"output_path"`
}

// ConversionFailed is emitted when a task ends without output.
type ConversionFailed struct {
	BaseEvent
	InputPath string `json:"input_path"`
	Reason    string `json:"reason"`
	Cancelled bool   `json:"cancelled,omitempty"`
}
