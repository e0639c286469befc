package watcher

import (
	"context"
	"hash/fnv"
)

// ChangeKind classifies a normalized filesystem change.
type ChangeKind int

const (
	Created ChangeKind = iota + 1
	Modified
	Deleted
	Moved
	// DeletedDir is a watched directory removed or moved away. Everything
	// recorded at or below Path is gone.
	DeletedDir
)

func (k ChangeKind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	case Moved:
		return "moved"
	case DeletedDir:
		return "deleted_dir"
	default:
		return "unknown"
	}
}

// MarshalText lets ChangeKind print by name in JSON and slog output.
func (k ChangeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Event is one change delivered to the Handler. NewPath is set only for Moved.
type Event struct {
	Kind    ChangeKind `json:"kind"`
	Path    string     `json:"path"`
	NewPath string     `json:"new_path,omitempty"`
}

// paths returns every path the event touches.
func (e Event) paths() []string {
	if e.Kind == Moved && e.NewPath != e.Path {
		return []string{e.Path, e.NewPath}
	}
	return []string{e.Path}
}

// primary is the path the event is partitioned by: the destination of a move,
// so that later edits of the moved file queue behind the move itself. A
// Modified of the source still queued on its own partition may run after the
// move; it finds no file and deletes the already deleted source note.
func (e Event) primary() string {
	if e.Kind == Moved {
		return e.NewPath
	}
	return e.Path
}

func partition(path string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(path))
	return int(h.Sum32() % uint32(n))
}

// Handler processes dispatched events. Calls for the same path never overlap.
type Handler interface {
	HandleEvent(ctx context.Context, ev Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev Event) error

func (f HandlerFunc) HandleEvent(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}
