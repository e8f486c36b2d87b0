// Package executor runs external processes for the rest of the system: whole
// run-to-completion invocations and detached long-lived servers.
package executor

import (
	"context"

	"github.com/buildgrid/ngexec/internal/process"
)

// Runner executes a request to completion and reports its result.
type Runner interface {
	Run(ctx context.Context, req process.Request) (process.Result, error)
}

// Starter spawns a request as a detached long-lived process rooted in
// workdir. The caller owns the returned Process and must terminate it when
// it is replaced.
type Starter interface {
	Start(ctx context.Context, req process.Request, workdir string) (Process, error)
}

// Process is a handle to a spawned server process.
type Process interface {
	// Pid of the underlying OS process.
	Pid() int
	// Alive reports whether the process is still running. It must probe
	// the process, not cached state.
	Alive() bool
	// AwaitPort blocks until the process announces its listening port or
	// ctx expires.
	AwaitPort(ctx context.Context) (int, error)
	// Terminate asks the process to exit, escalating if it does not.
	Terminate() error
}
