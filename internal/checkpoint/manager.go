package checkpoint

import (
	"errors"
	"fmt"
	"time"

	"github.com/graphmine/coocscan/pkg/persist"
)

// stateBasename names the checkpoint file inside the output directory.
const stateBasename = "scan_state"

// Sentinel errors for checkpoint loading.
var (
	// ErrVersionMismatch indicates a checkpoint written under a different
	// schema version.
	ErrVersionMismatch = errors.New("checkpoint schema version mismatch")

	// ErrParameterDrift indicates a checkpoint written under different scan
	// parameters than the current run.
	ErrParameterDrift = errors.New("checkpoint parameters differ from current run")
)

// Manager saves and restores checkpoint state under one output directory.
// Saves are atomic: readers never observe a torn state file.
type Manager struct {
	dir       string
	persister *persist.Persister[State]
}

// NewManager creates a checkpoint manager rooted at dir. State is stored
// gob-encoded and lz4-compressed.
func NewManager(dir string) *Manager {
	codec := persist.NewLZ4Codec(persist.NewGobCodec())

	return &Manager{
		dir:       dir,
		persister: persist.NewPersister[State](stateBasename, codec),
	}
}

// Path returns the checkpoint file location.
func (m *Manager) Path() string {
	return m.persister.Path(m.dir)
}

// Save writes the state atomically, stamping the save time first.
func (m *Manager) Save(state *State) error {
	state.Stats.SavedAt = time.Now().UTC()

	err := m.persister.Save(m.dir, func() *State { return state })
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	return nil
}

// Load restores the checkpoint if one exists. A missing checkpoint returns
// (nil, nil): the caller starts fresh. The loaded state must match the
// current schema version and scan parameters.
func (m *Manager) Load(threshold float64, indexSize int32) (*State, error) {
	if !m.persister.Exists(m.dir) {
		return nil, nil
	}

	var state State

	err := m.persister.Load(m.dir, func(s *State) { state = *s })
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	if state.Version != SchemaVersion {
		return nil, fmt.Errorf("%w: found %d, want %d",
			ErrVersionMismatch, state.Version, SchemaVersion)
	}

	if state.Threshold != threshold || state.IndexSize != indexSize {
		return nil, fmt.Errorf(
			"%w: checkpoint threshold=%g n=%d, run threshold=%g n=%d",
			ErrParameterDrift, state.Threshold, state.IndexSize, threshold, indexSize)
	}

	return &state, nil
}

// Discard removes the checkpoint file. Called after the final outputs are
// durably written; a missing file is not an error.
func (m *Manager) Discard() error {
	err := m.persister.Remove(m.dir)
	if err != nil {
		return fmt.Errorf("discard checkpoint: %w", err)
	}

	return nil
}
