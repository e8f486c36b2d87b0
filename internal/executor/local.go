package executor

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/buildgrid/ngexec/internal/process"
	"github.com/buildgrid/ngexec/internal/store"
)

// Local runs requests as OS processes. Run-to-completion invocations get a
// fresh scratch directory with inputs materialized from the store; server
// starts run detached in the caller-provided workdir.
type Local struct {
	store       *store.Local
	scratchBase string
}

func NewLocal(st *store.Local, scratchBase string) (*Local, error) {
	if err := os.MkdirAll(scratchBase, 0755); err != nil {
		return nil, fmt.Errorf("creating scratch base %s: %w", scratchBase, err)
	}
	return &Local{store: st, scratchBase: scratchBase}, nil
}

func (l *Local) Run(ctx context.Context, req process.Request) (process.Result, error) {
	if len(req.Argv) == 0 {
		return process.Result{}, fmt.Errorf("empty argv in request %q", req.Description)
	}

	scratch, err := os.MkdirTemp(l.scratchBase, "run-")
	if err != nil {
		return process.Result{}, fmt.Errorf("creating scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	if err := l.store.Materialize(ctx, req.InputFiles, scratch); err != nil {
		return process.Result{}, fmt.Errorf("materializing inputs: %w", err)
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, req.Argv[0], req.Argv[1:]...)
	cmd.Dir = scratch
	cmd.Env = requestEnv(req)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Printf("Executing %q: %v", req.Description, req.Argv)
	err = cmd.Run()

	exitCode := 0
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return process.Result{}, fmt.Errorf("running %q: %w", req.Description, err)
		}
		exitCode = exitErr.ExitCode()
	}

	outputDigest, err := l.captureOutputs(req, scratch)
	if err != nil {
		return process.Result{}, err
	}

	return process.Result{
		Stdout:       stdout.Bytes(),
		Stderr:       stderr.Bytes(),
		ExitCode:     exitCode,
		OutputDigest: outputDigest,
	}, nil
}

func (l *Local) Start(ctx context.Context, req process.Request, workdir string) (Process, error) {
	if len(req.Argv) == 0 {
		return nil, fmt.Errorf("empty argv in request %q", req.Description)
	}

	// Deliberately not CommandContext: the server's life exceeds the
	// caller's, so cancellation must not kill it.
	cmd := exec.Command(req.Argv[0], req.Argv[1:]...)
	cmd.Dir = workdir
	cmd.Env = requestEnv(req)

	return startProc(cmd, req.Description)
}

// captureOutputs snapshots the declared outputs present in scratch. Missing
// declared outputs are not an error here; the caller judges exit codes.
func (l *Local) captureOutputs(req process.Request, scratch string) (process.Digest, error) {
	if len(req.OutputFiles) == 0 && len(req.OutputDirs) == 0 {
		return process.EmptyDigest, nil
	}

	outDir, err := os.MkdirTemp(l.scratchBase, "out-")
	if err != nil {
		return process.Digest{}, err
	}
	defer os.RemoveAll(outDir)

	for _, rel := range req.OutputFiles {
		src := filepath.Join(scratch, rel)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		dst := filepath.Join(outDir, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return process.Digest{}, err
		}
		if err := os.Rename(src, dst); err != nil {
			return process.Digest{}, fmt.Errorf("collecting output %s: %w", rel, err)
		}
	}
	for _, rel := range req.OutputDirs {
		src := filepath.Join(scratch, rel)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		dst := filepath.Join(outDir, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return process.Digest{}, err
		}
		if err := os.Rename(src, dst); err != nil {
			return process.Digest{}, fmt.Errorf("collecting output dir %s: %w", rel, err)
		}
	}

	return l.store.Snapshot(outDir)
}

// requestEnv builds the child environment. Requests carry their environment
// explicitly; JAVA_HOME and PATH are derived from jdk_home when present so
// a bare "java" argv resolves inside the configured JDK.
func requestEnv(req process.Request) []string {
	env := make([]string, 0, len(req.Env)+2)
	for k, v := range req.Env {
		env = append(env, k+"="+v)
	}
	if req.JDKHome != "" {
		env = append(env,
			"JAVA_HOME="+req.JDKHome,
			"PATH="+filepath.Join(req.JDKHome, "bin")+string(os.PathListSeparator)+os.Getenv("PATH"),
		)
	} else {
		env = append(env, "PATH="+os.Getenv("PATH"))
	}
	return env
}
