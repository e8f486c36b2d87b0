// Package runner is the public entry point of the nailgun execution
// subsystem. It decides whether a request runs under a resident server and
// orchestrates the split, the pool, and the delegate executor.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"golang.org/x/sync/semaphore"

	"github.com/buildgrid/ngexec/internal/executor"
	"github.com/buildgrid/ngexec/internal/jvm"
	"github.com/buildgrid/ngexec/internal/nailgun"
	"github.com/buildgrid/ngexec/internal/pool"
	"github.com/buildgrid/ngexec/internal/process"
	"github.com/buildgrid/ngexec/internal/telemetry"
)

// ErrMissingJDKHome is a caller contract violation: a nailgunnable request
// arrived without a JDK. Fatal, never retried here.
var ErrMissingJDKHome = errors.New("JDK home must be specified for all nailgunnable requests")

// CommandRunner runs requests, routing nailgunnable ones through the pool
// and passing everything else straight to the inner executor.
type CommandRunner struct {
	inner        executor.Runner
	pool         *pool.Pool
	sink         telemetry.Sink
	workdirBase  string
	distribution string

	// Capacity one: all start-or-reuse decisions across the whole pool
	// queue behind each other, so a server for a given name is never
	// started twice concurrently and replacements never race.
	permit *semaphore.Weighted
}

func New(inner executor.Runner, p *pool.Pool, sink telemetry.Sink, workdirBase, distribution string) *CommandRunner {
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	return &CommandRunner{
		inner:        inner,
		pool:         p,
		sink:         sink,
		workdirBase:  workdirBase,
		distribution: distribution,
		permit:       semaphore.NewWeighted(1),
	}
}

// Run executes a request. correlationID ties the resulting telemetry back
// to the build invocation; pass "" when there is none.
func (r *CommandRunner) Run(ctx context.Context, req process.Request, correlationID string) (process.Result, error) {
	if !req.Nailgunnable {
		// Complete pass-through, the dominant path.
		return r.inner.Run(ctx, req)
	}

	parsed, err := jvm.Parse(req.Argv)
	if err != nil {
		return process.Result{}, err
	}

	name := nailgun.ServerName(parsed.MainClass)

	if req.JDKHome == "" {
		return process.Result{}, ErrMissingJDKHome
	}

	serverReq := nailgun.ServerRequest(name, parsed.NailgunArgs, req.JDKHome, req.Platform)
	fingerprint := process.Fingerprint(serverReq)

	workdir, err := r.ensureWorkdir(name)
	if err != nil {
		return process.Result{}, err
	}

	port, err := r.connect(ctx, pool.ConnectArgs{
		Name:           name,
		ServerRequest:  serverReq,
		Workdir:        workdir,
		Fingerprint:    fingerprint,
		CorrelationID:  correlationID,
		RequiredInputs: req.InputFiles,
	})
	if err != nil {
		return process.Result{}, fmt.Errorf("failed to connect to nailgun: %w", err)
	}

	ev := telemetry.NewEvent(telemetry.EventClientRun, name, correlationID)
	ev.Port = port
	r.sink.Emit(ev)

	clientReq := nailgun.ClientRequest(req, r.distribution, parsed.MainClass, parsed.ClientArgs, port)
	return r.inner.Run(ctx, clientReq)
}

// connect holds the permit only for the start-or-reuse decision, not for
// the client's execution.
func (r *CommandRunner) connect(ctx context.Context, args pool.ConnectArgs) (int, error) {
	if err := r.permit.Acquire(ctx, 1); err != nil {
		return 0, err
	}
	defer r.permit.Release(1)
	return r.pool.Connect(ctx, args)
}

// ensureWorkdir creates the per-name working directory if needed, reusing
// it if already present. Never destructive.
func (r *CommandRunner) ensureWorkdir(name string) (string, error) {
	workdir := filepath.Join(r.workdirBase, name)
	if _, err := os.Stat(workdir); err == nil {
		log.Printf("Nailgun workdir %s exists, reusing", workdir)
		return workdir, nil
	}
	if err := os.MkdirAll(workdir, 0755); err != nil {
		return "", fmt.Errorf("creating nailgun workdir %s: %w", workdir, err)
	}
	return workdir, nil
}
