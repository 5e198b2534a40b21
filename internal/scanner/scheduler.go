// Package scanner drives the scan pipeline: it discovers units under the
// corpus root, fans them out to workers, folds the results into the shared
// accumulator, checkpoints on a cadence, and assembles the final outputs.
package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoUnits indicates a corpus root with no recognizable unit files.
var ErrNoUnits = errors.New("no units found under corpus root")

// unitExtensions lists the archive suffixes treated as units.
var unitExtensions = []string{".gz", ".lz4"}

// Discover walks the corpus root and returns the relative paths of every
// unit file, sorted lexicographically. The ordering is the unit identity:
// two scans over the same tree always enumerate the same units in the same
// order.
func Discover(root string) ([]string, error) {
	var units []string

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() || !isUnit(entry.Name()) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		units = append(units, filepath.ToSlash(rel))

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover units: %w", err)
	}

	if len(units) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoUnits, root)
	}

	sort.Strings(units)

	return units, nil
}

func isUnit(name string) bool {
	lower := strings.ToLower(name)

	for _, ext := range unitExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}

	return false
}

// Pending filters out units already recorded as completed.
func Pending(units []string, completed func(string) bool) []string {
	pending := make([]string, 0, len(units))

	for _, unit := range units {
		if !completed(unit) {
			pending = append(pending, unit)
		}
	}

	return pending
}
