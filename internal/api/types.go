package api

import (
	"time"

	"github.com/buildgrid/ngexec/internal/process"
)

// RunRequest is sent from ngexec to ngexecd to execute one process.
type RunRequest struct {
	Request       process.Request `json:"request"`
	CorrelationID string          `json:"correlationID,omitempty"`
}

// RunResponse carries the execution result back.
type RunResponse struct {
	Result process.Result `json:"result"`
	Error  string         `json:"error,omitempty"`
}

// ServerStatus describes one resident nailgun server.
type ServerStatus struct {
	Name        string    `json:"name"`
	Fingerprint string    `json:"fingerprint"`
	Port        int       `json:"port"`
	Pid         int       `json:"pid"`
	Alive       bool      `json:"alive"`
	Workdir     string    `json:"workdir"`
	StartedAt   time.Time `json:"startedAt"`
}
