package pool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_PrunesDeadServers(t *testing.T) {
	p, starter, _ := setupPool(t)

	_, err := p.Connect(context.Background(), serverArgs(t, "nailgun_server_com.example.Main"))
	require.NoError(t, err)

	starter.Procs()[0].Kill()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMonitor(p, 10*time.Millisecond)
	m.Start(ctx)
	defer m.Stop()

	assert.Eventually(t, func() bool {
		return len(p.Entries()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
