package sandbox

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"
)

// StateFile is written into each prepared root.
const StateFile = ".sandshell-root.json"

// State records what has been done to a root.
type State struct {
	PreparedAt  time.Time `json:"prepared_at"`
	Skeleton    []string  `json:"skeleton"`
	Runs        int       `json:"runs"`
	LastCommand string    `json:"last_command,omitempty"`
	LastOutcome string    `json:"last_outcome,omitempty"`
	LastRunAt   time.Time `json:"last_run_at,omitzero"`
}

func statePath(root string) string {
	return filepath.Join(root, StateFile)
}

func loadState(root string) (*State, error) {
	data, err := os.ReadFile(statePath(root))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading root state: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing root state: %w", err)
	}
	return &s, nil
}

func saveState(root string, s *State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling root state: %w", err)
	}
	return os.WriteFile(statePath(root), data, 0o644)
}

// covers reports whether the recorded skeleton matches the current one.
func (s *State) covers() bool {
	return s != nil && slices.Equal(s.Skeleton, SkeletonDirs())
}
