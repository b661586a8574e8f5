// internal/events/organize.go
package events

// Entity types
const (
	EntityFile    = "file"
	EntityTask    = "task"
	EntityBatch   = "batch"
	EntityLibrary = "library"
)

// Event type constants
const (
	EventFileCompleted     = "file.completed"
	EventOrganizeFile      = "organize.file"
	EventOrganizeCompleted = "organize.completed"
	EventLibraryRefreshed  = "library.refreshed"
)

// FileCompleted is emitted when a finished download file is detected.
type FileCompleted struct {
	BaseEvent
	Path       string `json:"path"`
	Name       string `json:"name"`
	Size       int64  `json:"size_bytes"`
	DownloadID string `json:"download_id,omitempty"` // torrent hash, if known
}

// FileOrganized is emitted once per file after the organizer decides on it.
type FileOrganized struct {
	BaseEvent
	Path        string `json:"path"`
	LibraryPath string `json:"library_path,omitempty"`
	Action      string `json:"action"` // symlink, convert, skip
	Success     bool   `json:"success"`
	TaskID      string `json:"task_id,omitempty"` // convert only
	Error       string `json:"error,omitempty"`
	Note        string `json:"note,omitempty"`
}

// OrganizeCompleted is emitted after a batch of files has been organized.
type OrganizeCompleted struct {
	BaseEvent
	Total        int      `json:"total"`
	Symlinked    int      `json:"symlinked"`
	Converting   int      `json:"converting"`
	Skipped      int      `json:"skipped"`
	Failed       int      `json:"failed"`
	LibraryPaths []string `json:"library_paths,omitempty"` // directories that changed
}

// LibraryRefreshed is emitted after Plex has been asked to rescan a path.
type LibraryRefreshed struct {
	BaseEvent
	Section string `json:"section"`
	Path    string `json:"path"`
}
