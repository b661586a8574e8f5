package symlink

import (
	"errors"
	"fmt"
)

var (
	// ErrNotSymlink indicates the target exists but is a regular file or directory.
	ErrNotSymlink = errors.New("target exists and is not a symlink")

	// ErrPathTraversal indicates a path would escape its root directory.
	ErrPathTraversal = errors.New("path traversal detected")
)

// SymlinkError describes a failed filesystem operation while placing a link.
type SymlinkError struct {
	Source string
	Target string
	Op     string // mkdir, lstat, readlink, symlink, rename
	Err    error
}

func (e *SymlinkError) Error() string {
	return fmt.Sprintf("symlink %s -> %s: %s: %v", e.Target, e.Source, e.Op, e.Err)
}

func (e *SymlinkError) Unwrap() error {
	return e.Err
}
