// Package store is the content-addressed file store the pool materializes
// server inputs from. The interface is the collaborator contract; Local is a
// directory-backed implementation good enough for daemons and tests.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/buildgrid/ngexec/internal/process"
)

// Store materializes the file tree identified by a digest into dir.
type Store interface {
	Materialize(ctx context.Context, d process.Digest, dir string) error
}

// manifestEntry is one file inside a stored tree.
type manifestEntry struct {
	Path string      `json:"path"`
	Hash string      `json:"hash"`
	Size int64       `json:"size"`
	Mode fs.FileMode `json:"mode"`
}

// Local stores file blobs and tree manifests under a base directory.
type Local struct {
	base string
}

func NewLocal(base string) (*Local, error) {
	for _, d := range []string{filepath.Join(base, "blobs"), filepath.Join(base, "trees")} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("creating store dir %s: %w", d, err)
		}
	}
	return &Local{base: base}, nil
}

// Snapshot captures dir's contents and returns the digest that will
// materialize them again.
func (l *Local) Snapshot(dir string) (process.Digest, error) {
	var entries []manifestEntry

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hash, err := l.storeBlob(path)
		if err != nil {
			return err
		}
		entries = append(entries, manifestEntry{
			Path: filepath.ToSlash(rel),
			Hash: hash,
			Size: info.Size(),
			Mode: info.Mode().Perm(),
		})
		return nil
	})
	if err != nil {
		return process.Digest{}, fmt.Errorf("snapshotting %s: %w", dir, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	data, err := json.Marshal(entries)
	if err != nil {
		return process.Digest{}, err
	}
	digest := process.NewDigest(data)
	manifestPath := filepath.Join(l.base, "trees", digest.Hash)
	if err := os.WriteFile(manifestPath, data, 0644); err != nil {
		return process.Digest{}, fmt.Errorf("writing manifest: %w", err)
	}
	return digest, nil
}

// Materialize copies the tree behind d into dir. The empty digest is a
// no-op; the pool passes it for servers with no declared inputs.
func (l *Local) Materialize(ctx context.Context, d process.Digest, dir string) error {
	if d.IsZero() || d == process.EmptyDigest {
		return nil
	}

	data, err := os.ReadFile(filepath.Join(l.base, "trees", d.Hash))
	if err != nil {
		return fmt.Errorf("unknown tree %s: %w", d, err)
	}
	var entries []manifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parsing manifest %s: %w", d, err)
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		dst := filepath.Join(dir, filepath.FromSlash(e.Path))
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return err
		}
		if err := copyFile(filepath.Join(l.base, "blobs", e.Hash), dst, e.Mode); err != nil {
			return fmt.Errorf("materializing %s: %w", e.Path, err)
		}
	}
	return nil
}

func (l *Local) storeBlob(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	hash := hex.EncodeToString(h.Sum(nil))

	dst := filepath.Join(l.base, "blobs", hash)
	if _, err := os.Stat(dst); err == nil {
		return hash, nil
	}
	if err := copyFile(path, dst, 0644); err != nil {
		return "", err
	}
	return hash, nil
}

func copyFile(src, dst string, mode fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
