// Package pool owns the resident nailgun server processes. Obtaining a port
// for a logical name either reuses an existing healthy, fingerprint-matching
// server or transparently starts a replacement.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/buildgrid/ngexec/internal/executor"
	"github.com/buildgrid/ngexec/internal/store"
	"github.com/buildgrid/ngexec/internal/telemetry"
)

// ErrStartupTimeout is returned when a spawned server does not announce its
// port within the startup window. The half-started process is terminated and
// no entry is installed.
var ErrStartupTimeout = errors.New("nailgun server startup timed out")

const DefaultStartupTimeout = 30 * time.Second

type Pool struct {
	starter        executor.Starter
	store          store.Store
	sink           telemetry.Sink
	startupTimeout time.Duration
	state          *stateStore

	// connectMu serializes whole start-or-reuse decisions; mu guards the
	// entry map for observers (Status, the monitor) while a connect is in
	// flight.
	connectMu sync.Mutex
	mu        sync.Mutex
	entries   map[string]*Entry
}

// New builds a pool. baseDir holds the advisory state snapshot; servers from
// a previous daemon found alive there are adopted, dead ones dropped.
func New(starter executor.Starter, st store.Store, sink telemetry.Sink, baseDir string, startupTimeout time.Duration) (*Pool, error) {
	if startupTimeout <= 0 {
		startupTimeout = DefaultStartupTimeout
	}
	if sink == nil {
		sink = telemetry.NopSink{}
	}

	state := newStateStore(baseDir)
	persisted, err := state.Load()
	if err != nil {
		return nil, fmt.Errorf("loading pool state: %w", err)
	}

	p := &Pool{
		starter:        starter,
		store:          st,
		sink:           sink,
		startupTimeout: startupTimeout,
		state:          state,
		entries:        make(map[string]*Entry),
	}

	for _, e := range persisted {
		adopted := adopt(e.Pid)
		if adopted == nil || !adopted.Alive() {
			log.Printf("Dropping stale pool entry %s (pid %d)", e.Name, e.Pid)
			continue
		}
		entry := e
		entry.proc = adopted
		p.entries[e.Name] = &entry
		log.Printf("Adopted resident server %s (pid %d, port %d)", e.Name, e.Pid, e.Port)
	}
	p.mu.Lock()
	p.persistLocked()
	p.mu.Unlock()

	return p, nil
}

// Connect returns the port of a healthy server matching args.Fingerprint
// under args.Name, starting or replacing one as needed. Callers additionally
// serialize through the runner's pool-wide permit; connectMu keeps the pool
// safe for direct use too.
func (p *Pool) Connect(ctx context.Context, args ConnectArgs) (int, error) {
	p.connectMu.Lock()
	defer p.connectMu.Unlock()

	p.mu.Lock()
	existing := p.entries[args.Name]
	p.mu.Unlock()

	if existing != nil {
		alive := existing.Alive()
		if alive && existing.Fingerprint == args.Fingerprint {
			ev := telemetry.NewEvent(telemetry.EventServerReuse, args.Name, args.CorrelationID)
			ev.Port = existing.Port
			ev.Pid = existing.Pid
			p.sink.Emit(ev)
			return existing.Port, nil
		}

		// Stale fingerprint or dead process: the old server must be
		// gone before a replacement is installed, never after.
		if alive {
			log.Printf("Server %s is stale (fingerprint changed), terminating pid %d", args.Name, existing.Pid)
			ev := telemetry.NewEvent(telemetry.EventServerTerminate, args.Name, args.CorrelationID)
			ev.Pid = existing.Pid
			ev.Detail = "fingerprint mismatch"
			p.sink.Emit(ev)
		} else {
			log.Printf("Server %s (pid %d) found dead, replacing", args.Name, existing.Pid)
			ev := telemetry.NewEvent(telemetry.EventServerDead, args.Name, args.CorrelationID)
			ev.Pid = existing.Pid
			p.sink.Emit(ev)
		}
		if err := existing.proc.Terminate(); err != nil {
			return 0, fmt.Errorf("terminating stale server %s: %w", args.Name, err)
		}
		p.remove(args.Name)
	}

	if err := p.store.Materialize(ctx, args.RequiredInputs, args.Workdir); err != nil {
		return 0, fmt.Errorf("materializing inputs for %s: %w", args.Name, err)
	}

	proc, err := p.starter.Start(ctx, args.ServerRequest, args.Workdir)
	if err != nil {
		return 0, fmt.Errorf("spawning server %s: %w", args.Name, err)
	}

	ev := telemetry.NewEvent(telemetry.EventServerSpawn, args.Name, args.CorrelationID)
	ev.Pid = proc.Pid()
	p.sink.Emit(ev)

	// The startup window is detached from the caller's context: a
	// cancelled caller must not abort a start other waiters may reuse.
	startCtx, cancel := context.WithTimeout(context.Background(), p.startupTimeout)
	defer cancel()

	port, err := proc.AwaitPort(startCtx)
	if err != nil {
		if terr := proc.Terminate(); terr != nil {
			log.Printf("Failed to clean up half-started server %s: %v", args.Name, terr)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, fmt.Errorf("%w: %s did not announce a port within %s", ErrStartupTimeout, args.Name, p.startupTimeout)
		}
		return 0, fmt.Errorf("starting server %s: %w", args.Name, err)
	}

	entry := &Entry{
		Name:        args.Name,
		Fingerprint: args.Fingerprint,
		Port:        port,
		Pid:         proc.Pid(),
		Workdir:     args.Workdir,
		StartedAt:   time.Now(),
		proc:        proc,
	}

	p.mu.Lock()
	p.entries[args.Name] = entry
	p.persistLocked()
	p.mu.Unlock()

	log.Printf("Server %s ready on port %d (pid %d)", args.Name, port, entry.Pid)
	return port, nil
}

// Entries returns a snapshot of the resident servers.
func (p *Pool) Entries() []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Entry, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, *e)
	}
	return out
}

// Prune drops entries whose process has died. Dead servers are replaced on
// the next Connect; pruning them early just keeps the map and snapshot
// honest. Not a user-visible error path.
func (p *Pool) Prune() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	pruned := 0
	for name, e := range p.entries {
		if e.Alive() {
			continue
		}
		log.Printf("Pruning dead server %s (pid %d)", name, e.Pid)
		ev := telemetry.NewEvent(telemetry.EventServerDead, name, "")
		ev.Pid = e.Pid
		p.sink.Emit(ev)
		delete(p.entries, name)
		pruned++
	}
	if pruned > 0 {
		p.persistLocked()
	}
	return pruned
}

// Shutdown terminates every resident server. Used by the daemon on exit;
// build callers never do this.
func (p *Pool) Shutdown() {
	p.connectMu.Lock()
	defer p.connectMu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	for name, e := range p.entries {
		if err := e.proc.Terminate(); err != nil {
			log.Printf("Failed to terminate server %s (pid %d): %v", name, e.Pid, err)
		}
		delete(p.entries, name)
	}
	p.persistLocked()
}

func (p *Pool) remove(name string) {
	p.mu.Lock()
	delete(p.entries, name)
	p.persistLocked()
	p.mu.Unlock()
}

// persistLocked writes the advisory snapshot. Callers hold mu.
func (p *Pool) persistLocked() {
	if p.state == nil {
		return
	}
	entries := make([]Entry, 0, len(p.entries))
	for _, e := range p.entries {
		entries = append(entries, *e)
	}
	if err := p.state.Save(entries); err != nil {
		log.Printf("Warning: failed to persist pool state: %v", err)
	}
}
