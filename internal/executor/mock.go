package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/buildgrid/ngexec/internal/process"
)

// MockRunner implements Runner for testing.
type MockRunner struct {
	mu       sync.Mutex
	RunFn    func(ctx context.Context, req process.Request) (process.Result, error)
	Requests []process.Request
}

func NewMockRunner() *MockRunner {
	return &MockRunner{}
}

func (m *MockRunner) Run(ctx context.Context, req process.Request) (process.Result, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	fn := m.RunFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return process.Result{ExitCode: 0, OutputDigest: process.EmptyDigest}, nil
}

// Ran returns a copy of the requests seen so far.
func (m *MockRunner) Ran() []process.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]process.Request, len(m.Requests))
	copy(out, m.Requests)
	return out
}

// MockStarter implements Starter for testing. By default every Start
// produces a live MockProcess announcing sequential ports.
type MockStarter struct {
	mu       sync.Mutex
	StartFn  func(ctx context.Context, req process.Request, workdir string) (Process, error)
	StartErr error
	Started  []process.Request
	nextPort int
	procs    []*MockProcess
}

func NewMockStarter() *MockStarter {
	return &MockStarter{nextPort: 40000}
}

func (m *MockStarter) Start(ctx context.Context, req process.Request, workdir string) (Process, error) {
	m.mu.Lock()
	m.Started = append(m.Started, req)
	fn := m.StartFn
	startErr := m.StartErr
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req, workdir)
	}
	if startErr != nil {
		return nil, startErr
	}

	m.mu.Lock()
	m.nextPort++
	p := &MockProcess{pid: 1000 + len(m.procs), port: m.nextPort, alive: true}
	m.procs = append(m.procs, p)
	m.mu.Unlock()
	return p, nil
}

// SpawnCount reports how many processes were started.
func (m *MockStarter) SpawnCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Started)
}

// Procs returns the processes handed out so far.
func (m *MockStarter) Procs() []*MockProcess {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*MockProcess, len(m.procs))
	copy(out, m.procs)
	return out
}

// MockProcess implements Process for testing.
type MockProcess struct {
	mu           sync.Mutex
	pid          int
	port         int
	alive        bool
	terminations int

	AwaitPortFn  func(ctx context.Context) (int, error)
	TerminateErr error
}

func NewMockProcess(pid, port int) *MockProcess {
	return &MockProcess{pid: pid, port: port, alive: true}
}

func (p *MockProcess) Pid() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

func (p *MockProcess) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

func (p *MockProcess) AwaitPort(ctx context.Context) (int, error) {
	if p.AwaitPortFn != nil {
		return p.AwaitPortFn(ctx)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.alive {
		return 0, fmt.Errorf("process %d exited before announcing a port", p.pid)
	}
	return p.port, nil
}

func (p *MockProcess) Terminate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terminations++
	if p.TerminateErr != nil {
		return p.TerminateErr
	}
	p.alive = false
	return nil
}

// Kill marks the process dead without going through Terminate, simulating
// an external crash.
func (p *MockProcess) Kill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alive = false
}

// Terminations reports how many times Terminate was called.
func (p *MockProcess) Terminations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminations
}
