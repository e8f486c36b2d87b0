package pool

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildgrid/ngexec/internal/executor"
	"github.com/buildgrid/ngexec/internal/process"
	"github.com/buildgrid/ngexec/internal/store"
	"github.com/buildgrid/ngexec/internal/telemetry"
)

func TestStateStore_RoundTrip(t *testing.T) {
	s := newStateStore(t.TempDir())

	entries := []Entry{{
		Name:        "nailgun_server_com.example.Main",
		Fingerprint: process.NewDigest([]byte("fp")),
		Port:        40001,
		Pid:         1234,
		Workdir:     "/tmp/ng",
		StartedAt:   time.Now().Truncate(time.Second),
	}}
	require.NoError(t, s.Save(entries))

	loaded, err := s.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, entries[0].Name, loaded[0].Name)
	assert.Equal(t, entries[0].Fingerprint, loaded[0].Fingerprint)
	assert.Equal(t, entries[0].Port, loaded[0].Port)
	assert.Equal(t, entries[0].Pid, loaded[0].Pid)
}

func TestStateStore_LoadMissingFile(t *testing.T) {
	s := newStateStore(t.TempDir())
	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestNew_DropsDeadPersistedEntries(t *testing.T) {
	base := t.TempDir()
	s := newStateStore(base)
	require.NoError(t, s.Save([]Entry{{
		Name: "nailgun_server_Gone",
		Port: 40002,
		Pid:  1 << 22, // beyond any real pid
	}}))

	p, err := New(executor.NewMockStarter(), store.NewMockStore(), telemetry.NopSink{}, base, time.Second)
	require.NoError(t, err)
	assert.Empty(t, p.Entries())
}

func TestNew_AdoptsLivePersistedEntries(t *testing.T) {
	base := t.TempDir()
	s := newStateStore(base)
	require.NoError(t, s.Save([]Entry{{
		Name: "nailgun_server_Survivor",
		Port: 40003,
		Pid:  os.Getpid(), // certainly alive
	}}))

	p, err := New(executor.NewMockStarter(), store.NewMockStore(), telemetry.NopSink{}, base, time.Second)
	require.NoError(t, err)

	entries := p.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "nailgun_server_Survivor", entries[0].Name)
	assert.Equal(t, 40003, entries[0].Port)
	assert.True(t, entries[0].Alive())
}
