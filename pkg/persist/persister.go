package persist

import "os"

// Persister handles I/O for a specific state type using a Codec.
type Persister[T any] struct {
	basename string
	codec    Codec
}

// NewPersister creates a persister with the given basename and codec.
func NewPersister[T any](basename string, codec Codec) *Persister[T] {
	return &Persister[T]{
		basename: basename,
		codec:    codec,
	}
}

// Save atomically writes state to the given directory using the provided
// build function.
func (p *Persister[T]) Save(dir string, buildState func() *T) error {
	state := buildState()

	return SaveState(dir, p.basename, p.codec, state)
}

// Load restores state from the given directory using the provided restore function.
func (p *Persister[T]) Load(dir string, restoreState func(*T)) error {
	var state T

	err := LoadState(dir, p.basename, p.codec, &state)
	if err != nil {
		return err
	}

	restoreState(&state)

	return nil
}

// Path returns the canonical state file path for the given directory.
func (p *Persister[T]) Path(dir string) string {
	return StatePath(dir, p.basename, p.codec)
}

// Exists reports whether a state file exists in the given directory.
func (p *Persister[T]) Exists(dir string) bool {
	_, err := os.Stat(p.Path(dir))

	return err == nil
}

// Remove deletes the state file in the given directory, if present.
func (p *Persister[T]) Remove(dir string) error {
	err := os.Remove(p.Path(dir))
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}
