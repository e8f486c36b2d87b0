package pool

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildgrid/ngexec/internal/executor"
	"github.com/buildgrid/ngexec/internal/nailgun"
	"github.com/buildgrid/ngexec/internal/process"
	"github.com/buildgrid/ngexec/internal/store"
	"github.com/buildgrid/ngexec/internal/telemetry"
)

func setupPool(t *testing.T) (*Pool, *executor.MockStarter, *store.MockStore) {
	t.Helper()
	starter := executor.NewMockStarter()
	st := store.NewMockStore()
	p, err := New(starter, st, telemetry.NopSink{}, t.TempDir(), 2*time.Second)
	require.NoError(t, err)
	return p, starter, st
}

func serverArgs(t *testing.T, name string, jvmArgs ...string) ConnectArgs {
	t.Helper()
	req := nailgun.ServerRequest(name, jvmArgs, "/opt/jdk", "linux_x86_64")
	return ConnectArgs{
		Name:           name,
		ServerRequest:  req,
		Workdir:        t.TempDir(),
		Fingerprint:    process.Fingerprint(req),
		CorrelationID:  "build-1",
		RequiredInputs: process.EmptyDigest,
	}
}

func TestConnect_StartsServerOnce(t *testing.T) {
	p, starter, st := setupPool(t)
	args := serverArgs(t, "nailgun_server_com.example.Main", "-Xmx1g")

	port1, err := p.Connect(context.Background(), args)
	require.NoError(t, err)
	assert.Greater(t, port1, 0)
	assert.Equal(t, 1, starter.SpawnCount())
	assert.Equal(t, 1, st.Calls())

	// Same fingerprint, same name: fast path, zero spawns, same port.
	port2, err := p.Connect(context.Background(), args)
	require.NoError(t, err)
	assert.Equal(t, port1, port2)
	assert.Equal(t, 1, starter.SpawnCount())
}

func TestConnect_FingerprintMismatchReplacesServer(t *testing.T) {
	p, starter, _ := setupPool(t)

	args := serverArgs(t, "nailgun_server_com.example.Main", "-Xmx1g")
	port1, err := p.Connect(context.Background(), args)
	require.NoError(t, err)
	oldProc := starter.Procs()[0]

	// Classpath changed: same name, new fingerprint.
	changed := serverArgs(t, "nailgun_server_com.example.Main", "-Xmx2g")
	port2, err := p.Connect(context.Background(), changed)
	require.NoError(t, err)

	assert.Equal(t, 2, starter.SpawnCount())
	assert.Equal(t, 1, oldProc.Terminations())
	assert.False(t, oldProc.Alive())
	assert.NotEqual(t, port1, port2)

	entries := p.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, changed.Fingerprint, entries[0].Fingerprint)
}

func TestConnect_DeadServerIsReplaced(t *testing.T) {
	p, starter, _ := setupPool(t)
	args := serverArgs(t, "nailgun_server_com.example.Main", "-Xmx1g")

	_, err := p.Connect(context.Background(), args)
	require.NoError(t, err)

	// Simulate a crash: same fingerprint must still respawn.
	starter.Procs()[0].Kill()

	port, err := p.Connect(context.Background(), args)
	require.NoError(t, err)
	assert.Greater(t, port, 0)
	assert.Equal(t, 2, starter.SpawnCount())
}

func TestConnect_SpawnFailureInstallsNothing(t *testing.T) {
	p, starter, _ := setupPool(t)
	starter.StartFn = func(ctx context.Context, req process.Request, workdir string) (executor.Process, error) {
		return nil, errors.New("executable not found")
	}

	_, err := p.Connect(context.Background(), serverArgs(t, "nailgun_server_X"))
	require.Error(t, err)
	assert.Empty(t, p.Entries())
}

func TestConnect_MaterializeFailureHappensBeforeSpawn(t *testing.T) {
	p, starter, st := setupPool(t)
	st.MaterializeFn = func(ctx context.Context, d process.Digest, dir string) error {
		return errors.New("store unavailable")
	}

	_, err := p.Connect(context.Background(), serverArgs(t, "nailgun_server_X"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "materializing inputs")
	assert.Equal(t, 0, starter.SpawnCount())
	assert.Empty(t, p.Entries())
}

func TestConnect_StartupTimeout(t *testing.T) {
	starter := executor.NewMockStarter()
	st := store.NewMockStore()
	p, err := New(starter, st, telemetry.NopSink{}, t.TempDir(), 50*time.Millisecond)
	require.NoError(t, err)

	var silent *executor.MockProcess
	starter.StartFn = func(ctx context.Context, req process.Request, workdir string) (executor.Process, error) {
		silent = executor.NewMockProcess(999, 0)
		silent.AwaitPortFn = func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		}
		return silent, nil
	}

	args := serverArgs(t, "nailgun_server_Slow")
	_, err = p.Connect(context.Background(), args)
	require.ErrorIs(t, err, ErrStartupTimeout)

	// The half-started process is terminated and no entry installed.
	assert.Equal(t, 1, silent.Terminations())
	assert.Empty(t, p.Entries())

	// No poisoned state: a healthy retry succeeds.
	starter.StartFn = nil
	port, err := p.Connect(context.Background(), args)
	require.NoError(t, err)
	assert.Greater(t, port, 0)
}

func TestConnect_ConcurrentSameNameSpawnsOnce(t *testing.T) {
	p, starter, _ := setupPool(t)
	args := serverArgs(t, "nailgun_server_com.example.Main", "-Xmx1g")

	const callers = 8
	ports := make(chan int, callers)
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			port, err := p.Connect(context.Background(), args)
			ports <- port
			errs <- err
		}()
	}

	first := 0
	for i := 0; i < callers; i++ {
		require.NoError(t, <-errs)
		port := <-ports
		if first == 0 {
			first = port
		}
		assert.Equal(t, first, port)
	}
	assert.Equal(t, 1, starter.SpawnCount())
}

func TestPrune_DropsDeadEntries(t *testing.T) {
	p, starter, _ := setupPool(t)

	_, err := p.Connect(context.Background(), serverArgs(t, "nailgun_server_A", "-Xmx1g"))
	require.NoError(t, err)
	_, err = p.Connect(context.Background(), serverArgs(t, "nailgun_server_B", "-Xmx1g"))
	require.NoError(t, err)
	require.Len(t, p.Entries(), 2)

	starter.Procs()[0].Kill()

	assert.Equal(t, 1, p.Prune())
	entries := p.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "nailgun_server_B", entries[0].Name)
}

func TestShutdown_TerminatesEverything(t *testing.T) {
	p, starter, _ := setupPool(t)

	for i := 0; i < 3; i++ {
		_, err := p.Connect(context.Background(), serverArgs(t, fmt.Sprintf("nailgun_server_%d", i)))
		require.NoError(t, err)
	}
	p.Shutdown()

	assert.Empty(t, p.Entries())
	for _, proc := range starter.Procs() {
		assert.False(t, proc.Alive())
	}
}

func TestConnect_EmitsLifecycleEvents(t *testing.T) {
	starter := executor.NewMockStarter()
	rec := telemetry.NewRecorder()
	p, err := New(starter, store.NewMockStore(), rec, t.TempDir(), time.Second)
	require.NoError(t, err)

	args := serverArgs(t, "nailgun_server_com.example.Main", "-Xmx1g")
	_, err = p.Connect(context.Background(), args)
	require.NoError(t, err)
	_, err = p.Connect(context.Background(), args)
	require.NoError(t, err)

	var types []telemetry.EventType
	for _, e := range rec.Events() {
		types = append(types, e.Type)
		assert.Equal(t, "build-1", e.CorrelationID)
	}
	assert.Equal(t, []telemetry.EventType{telemetry.EventServerSpawn, telemetry.EventServerReuse}, types)
}
