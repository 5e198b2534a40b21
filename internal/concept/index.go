// Package concept maintains the identifier universe for a scan: the mapping
// between canonical identifier strings and the dense row numbers used by the
// accumulator and the assembled matrix.
//
// The mapping is frozen before any unit is processed. Identifiers are
// assigned rows in lexicographic order, so two scans over the same index and
// universe files always agree on row numbering.
package concept

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Sentinel errors for index construction.
var (
	// ErrEmptyIndex indicates an index file with no usable identifiers.
	ErrEmptyIndex = errors.New("concept index is empty")

	// ErrUnknownIdentifier indicates a row lookup for an identifier outside
	// the frozen mapping.
	ErrUnknownIdentifier = errors.New("identifier not in index")

	// ErrEmptyUniverse indicates a universe file that excluded every
	// identifier in the index.
	ErrEmptyUniverse = errors.New("universe excludes all indexed identifiers")
)

// Meta is the descriptive payload carried for one identifier. It does not
// participate in scanning; it is copied into the output index file.
type Meta struct {
	Label  string `json:"label,omitempty"`
	Domain string `json:"domain,omitempty"`
}

// indexEntry is one identifier as it appears in the index file.
type indexEntry struct {
	ID     string `json:"id"`
	Label  string `json:"label,omitempty"`
	Domain string `json:"domain,omitempty"`
}

// indexFile is the on-disk shape of the concept index.
type indexFile struct {
	Concepts []indexEntry `json:"concepts"`
}

// Index is the frozen identifier-to-row mapping. It is immutable after
// construction and safe for concurrent readers.
type Index struct {
	rows  map[string]int32
	ids   []string
	metas []Meta
}

// LoadIndex reads the concept index at path, validates it against the
// embedded schema, and freezes the identifier-to-row mapping. When
// universePath is non-empty, only identifiers listed there (one per line)
// are admitted.
func LoadIndex(path, universePath string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read concept index: %w", err)
	}

	err = validateIndex(data)
	if err != nil {
		return nil, err
	}

	var file indexFile

	err = json.Unmarshal(data, &file)
	if err != nil {
		return nil, fmt.Errorf("decode concept index: %w", err)
	}

	if len(file.Concepts) == 0 {
		return nil, ErrEmptyIndex
	}

	universe, err := loadUniverse(universePath)
	if err != nil {
		return nil, err
	}

	return buildIndex(file.Concepts, universe)
}

// loadUniverse reads the optional newline-delimited identifier restriction.
// A nil map means no restriction.
func loadUniverse(path string) (map[string]struct{}, error) {
	if path == "" {
		return nil, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open universe file: %w", err)
	}

	defer file.Close()

	universe := make(map[string]struct{})
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		id := strings.TrimSpace(scanner.Text())
		if id == "" || strings.HasPrefix(id, "#") {
			continue
		}

		universe[id] = struct{}{}
	}

	err = scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("read universe file: %w", err)
	}

	return universe, nil
}

// buildIndex dedupes, filters, sorts and numbers the admitted identifiers.
func buildIndex(entries []indexEntry, universe map[string]struct{}) (*Index, error) {
	admitted := make(map[string]Meta, len(entries))

	for _, entry := range entries {
		if entry.ID == "" {
			continue
		}

		if universe != nil {
			_, ok := universe[entry.ID]
			if !ok {
				continue
			}
		}

		// First occurrence wins on duplicate ids.
		_, seen := admitted[entry.ID]
		if seen {
			continue
		}

		admitted[entry.ID] = Meta{Label: entry.Label, Domain: entry.Domain}
	}

	if len(admitted) == 0 {
		if universe != nil {
			return nil, ErrEmptyUniverse
		}

		return nil, ErrEmptyIndex
	}

	ids := make([]string, 0, len(admitted))
	for id := range admitted {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	idx := &Index{
		rows:  make(map[string]int32, len(ids)),
		ids:   ids,
		metas: make([]Meta, len(ids)),
	}

	for row, id := range ids {
		idx.rows[id] = int32(row)
		idx.metas[row] = admitted[id]
	}

	return idx, nil
}

// Size returns the number of identifiers in the mapping.
func (x *Index) Size() int {
	return len(x.ids)
}

// Row returns the dense row for id, or ErrUnknownIdentifier.
func (x *Index) Row(id string) (int32, error) {
	row, ok := x.rows[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownIdentifier, id)
	}

	return row, nil
}

// Contains reports whether id is in the mapping.
func (x *Index) Contains(id string) bool {
	_, ok := x.rows[id]

	return ok
}

// Identifier returns the identifier string for a row. The row must be in
// range; rows only come from this index.
func (x *Index) Identifier(row int32) string {
	return x.ids[row]
}

// Meta returns the descriptive payload for a row.
func (x *Index) Meta(row int32) Meta {
	return x.metas[row]
}

// Identifiers returns the full ordered identifier list. The returned slice
// is shared and must not be mutated.
func (x *Index) Identifiers() []string {
	return x.ids
}
