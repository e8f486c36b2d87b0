package pool

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/buildgrid/ngexec/internal/executor"
)

// adoptedProcess wraps a server inherited from a previous daemon via its
// pid. It supports the probe and terminate halves of executor.Process; the
// startup of an adopted server was observed by whoever started it.
type adoptedProcess struct {
	pid  int
	proc *os.Process
}

func adopt(pid int) executor.Process {
	if pid <= 0 {
		return nil
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	return &adoptedProcess{pid: pid, proc: proc}
}

func (a *adoptedProcess) Pid() int {
	return a.pid
}

func (a *adoptedProcess) Alive() bool {
	return a.proc.Signal(syscall.Signal(0)) == nil
}

func (a *adoptedProcess) AwaitPort(ctx context.Context) (int, error) {
	return 0, fmt.Errorf("adopted process %d has no startup observation", a.pid)
}

func (a *adoptedProcess) Terminate() error {
	if !a.Alive() {
		return nil
	}
	if err := a.proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("terminating adopted pid %d: %w", a.pid, err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if !a.Alive() {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	if err := a.proc.Kill(); err != nil {
		return fmt.Errorf("killing adopted pid %d: %w", a.pid, err)
	}
	return nil
}
