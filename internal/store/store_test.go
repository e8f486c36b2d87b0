package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildgrid/ngexec/internal/process"
)

func TestSnapshotAndMaterialize(t *testing.T) {
	base := t.TempDir()
	l, err := NewLocal(base)
	require.NoError(t, err)

	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "lib"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "lib", "a.jar"), []byte("jar bytes"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "run.sh"), []byte("#!/bin/sh\n"), 0755))

	digest, err := l.Snapshot(src)
	require.NoError(t, err)

	dst := t.TempDir()
	require.NoError(t, l.Materialize(context.Background(), digest, dst))

	data, err := os.ReadFile(filepath.Join(dst, "lib", "a.jar"))
	require.NoError(t, err)
	assert.Equal(t, []byte("jar bytes"), data)

	info, err := os.Stat(filepath.Join(dst, "run.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
}

func TestSnapshot_Deterministic(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "f"), []byte("x"), 0644))

	d1, err := l.Snapshot(src)
	require.NoError(t, err)
	d2, err := l.Snapshot(src)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestMaterialize_EmptyDigestIsNoop(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	dst := t.TempDir()
	require.NoError(t, l.Materialize(context.Background(), process.EmptyDigest, dst))

	entries, err := os.ReadDir(dst)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMaterialize_UnknownDigest(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	err = l.Materialize(context.Background(), process.NewDigest([]byte("never stored")), t.TempDir())
	assert.Error(t, err)
}
