package process

import (
	"time"
)

// Request describes one executable process: what to run, what it needs on
// disk, and what it is expected to produce. Treat a constructed Request as
// a value; components that need a variation build a new one.
type Request struct {
	Argv         []string          `json:"argv"`
	Env          map[string]string `json:"env,omitempty"`
	InputFiles   Digest            `json:"inputFiles"`
	OutputFiles  []string          `json:"outputFiles,omitempty"`
	OutputDirs   []string          `json:"outputDirs,omitempty"`
	Timeout      time.Duration     `json:"timeout"`
	Description  string            `json:"description"`
	JDKHome      string            `json:"jdkHome,omitempty"`
	Platform     string            `json:"platform,omitempty"`
	Nailgunnable bool              `json:"nailgunnable,omitempty"`
}

// Result is what the local executor reports back for a finished process.
type Result struct {
	Stdout       []byte `json:"stdout,omitempty"`
	Stderr       []byte `json:"stderr,omitempty"`
	ExitCode     int    `json:"exitCode"`
	OutputDigest Digest `json:"outputDigest"`
}

// CloneEnv returns a copy of the request's environment so callers can extend
// it without mutating the original.
func (r Request) CloneEnv() map[string]string {
	env := make(map[string]string, len(r.Env))
	for k, v := range r.Env {
		env[k] = v
	}
	return env
}
