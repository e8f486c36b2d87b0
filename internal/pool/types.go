package pool

import (
	"time"

	"github.com/buildgrid/ngexec/internal/executor"
	"github.com/buildgrid/ngexec/internal/process"
)

// Entry is one resident nailgun server. The pool is its sole owner and
// mutator; at most one entry exists per logical name at any instant.
type Entry struct {
	Name        string         `json:"name"`
	Fingerprint process.Digest `json:"fingerprint"`
	Port        int            `json:"port"`
	Pid         int            `json:"pid"`
	Workdir     string         `json:"workdir"`
	StartedAt   time.Time      `json:"startedAt"`

	proc executor.Process
}

// Alive probes the entry's process. A port is only meaningful together with
// a live process, so callers must never trust an Entry without this check.
func (e *Entry) Alive() bool {
	return e.proc != nil && e.proc.Alive()
}

// ConnectArgs is everything Connect needs to hand back a port for a logical
// server name.
type ConnectArgs struct {
	Name           string
	ServerRequest  process.Request
	Workdir        string
	Fingerprint    process.Digest
	CorrelationID  string
	RequiredInputs process.Digest
}
