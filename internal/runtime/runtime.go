// Package runtime drives the external container runtime for an environment.
package runtime

import (
	"context"
	"io"
)

// Status is the liveness of an environment's workload as reported by the
// runtime.
type Status string

const (
	StatusRunning Status = "running"
	StatusExited  Status = "exited"
	StatusUnknown Status = "unknown"
)

// Project identifies the rendered manifest of one environment.
type Project struct {
	// Name is the compose project name, unique per environment.
	Name string
	// Manifest is the absolute path of the compose file.
	Manifest string
	// Dir is the project directory that relative paths resolve against.
	Dir string
}

// Handle refers to a started project. It carries everything needed to
// address the project again, so it can be rebuilt from a persisted record.
type Handle struct {
	Project Project
}

// HandleFor returns the handle of an already started project.
func HandleFor(p Project) Handle {
	return Handle{Project: p}
}

// DownOptions controls teardown.
type DownOptions struct {
	// Volumes also removes named volumes declared by the manifest.
	Volumes bool
}

// Driver is the boundary to the container runtime. Implementations must be
// safe for concurrent use across different projects.
type Driver interface {
	// Name returns the runtime identifier (e.g. "docker", "podman").
	Name() string

	// Ping checks that the runtime can be reached at all.
	Ping(ctx context.Context) error

	// Up starts the project detached. It returns once the runtime has
	// accepted the project; workload failures surface through Status.
	Up(ctx context.Context, p Project) (Handle, error)

	// Down stops the project and removes its containers.
	Down(ctx context.Context, h Handle, opts DownOptions) error

	// Status reports whether the project's workload is running.
	Status(ctx context.Context, h Handle) (Status, error)

	// Logs follows the project's output until the reader is closed or the
	// runtime ends the stream.
	Logs(ctx context.Context, h Handle) (io.ReadCloser, error)
}
