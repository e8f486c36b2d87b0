package executor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os/exec"
	"regexp"
	"strconv"
	"sync"
	"syscall"
	"time"
)

// portRe matches the NGServer startup banner, e.g.
// "NGServer 1.0.0 started on all interfaces, port 53421."
var portRe = regexp.MustCompile(`port[^0-9]*([0-9]+)`)

const terminateGrace = 5 * time.Second

// proc is a handle to a detached server process. The spawn goroutine reaps
// the child exactly once; everything else observes it through done.
type proc struct {
	cmd         *exec.Cmd
	description string

	portCh chan int
	done   chan struct{}

	mu      sync.Mutex
	output  bytes.Buffer
	waitErr error
}

func startProc(cmd *exec.Cmd, description string) (*proc, error) {
	p := &proc{
		cmd:         cmd,
		description: description,
		portCh:      make(chan int, 1),
		done:        make(chan struct{}),
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = cmd.Stdout // announced port may land on either stream

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawning %q: %w", description, err)
	}
	log.Printf("Spawned %q (pid %d)", description, cmd.Process.Pid)

	go p.scan(stdout)
	return p, nil
}

func (p *proc) scan(r io.Reader) {
	scanner := bufio.NewScanner(r)
	announced := false
	for scanner.Scan() {
		line := scanner.Text()
		p.mu.Lock()
		p.output.WriteString(line)
		p.output.WriteByte('\n')
		p.mu.Unlock()

		if !announced {
			if m := portRe.FindStringSubmatch(line); m != nil {
				if port, err := strconv.Atoi(m[1]); err == nil && port > 0 {
					announced = true
					p.portCh <- port
				}
			}
		}
	}

	err := p.cmd.Wait()
	p.mu.Lock()
	p.waitErr = err
	p.mu.Unlock()
	close(p.done)
}

func (p *proc) Pid() int {
	return p.cmd.Process.Pid
}

// Alive probes the process with signal 0. The reaper goroutine makes the
// done channel authoritative once the child exits; the signal probe covers
// the window before the reaper notices.
func (p *proc) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
	}
	return p.cmd.Process.Signal(syscall.Signal(0)) == nil
}

func (p *proc) AwaitPort(ctx context.Context) (int, error) {
	select {
	case port := <-p.portCh:
		return port, nil
	case <-p.done:
		return 0, fmt.Errorf("%q exited before announcing a port: %s", p.description, p.tail())
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (p *proc) Terminate() error {
	select {
	case <-p.done:
		return nil
	default:
	}

	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("terminating %q (pid %d): %w", p.description, p.Pid(), err)
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(terminateGrace):
	}

	log.Printf("Process %q (pid %d) ignored SIGTERM, killing", p.description, p.Pid())
	if err := p.cmd.Process.Kill(); err != nil {
		return fmt.Errorf("killing %q (pid %d): %w", p.description, p.Pid(), err)
	}
	<-p.done
	return nil
}

// tail returns the last chunk of combined output for error messages.
func (p *proc) tail() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	const max = 512
	out := p.output.Bytes()
	if len(out) > max {
		out = out[len(out)-max:]
	}
	return string(bytes.TrimSpace(out))
}
