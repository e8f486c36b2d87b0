package pool

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// stateStore persists the pool's entries to a JSON file so the daemon can
// adopt surviving servers after a restart and the CLI can list them. The
// snapshot is advisory; liveness always comes from probing the process.
type stateStore struct {
	path string
}

func newStateStore(baseDir string) *stateStore {
	if baseDir == "" {
		return nil
	}
	return &stateStore{path: filepath.Join(baseDir, "pool-state.json")}
}

func (s *stateStore) Load() ([]Entry, error) {
	if s == nil {
		return nil, nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading pool state: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing pool state: %w", err)
	}
	return entries, nil
}

func (s *stateStore) Save(entries []Entry) error {
	if s == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}
