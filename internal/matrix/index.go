package matrix

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/graphmine/coocscan/internal/checkpoint"
	"github.com/graphmine/coocscan/internal/concept"
)

// RowEntry maps one matrix row back to its identifier, with the per-row
// aggregates consumers need without touching the matrix itself.
type RowEntry struct {
	Row       int32   `json:"row"`
	ID        string  `json:"id"`
	Label     string  `json:"label,omitempty"`
	Domain    string  `json:"domain,omitempty"`
	Diagonal  float64 `json:"diagonal"`
	Degree    int     `json:"degree"`
	RowWeight float64 `json:"row_weight"`
}

// RunSummary captures the scan that produced the matrix.
type RunSummary struct {
	Threshold      float64   `json:"threshold"`
	UnitsOK        int64     `json:"units_ok"`
	UnitsPartial   int64     `json:"units_partial"`
	UnitsFailed    int64     `json:"units_failed"`
	RecordsTotal   int64     `json:"records_total"`
	RecordsSkipped int64     `json:"records_skipped"`
	RecordsMatched int64     `json:"records_matched"`
	NNZ            int64     `json:"nnz"`
	Density        float64   `json:"density"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// IndexFile is the JSON sidecar written next to the matrix.
type IndexFile struct {
	Summary RunSummary `json:"summary"`
	Rows    []RowEntry `json:"rows"`
}

// BuildIndexFile derives the sidecar from the assembled matrix, the frozen
// identifier mapping and the final run stats.
func BuildIndexFile(m *CSR, idx *concept.Index, stats checkpoint.RunStats, threshold float64) *IndexFile {
	rows := make([]RowEntry, m.N)

	for row := int32(0); row < m.N; row++ {
		meta := idx.Meta(row)

		rows[row] = RowEntry{
			Row:       row,
			ID:        idx.Identifier(row),
			Label:     meta.Label,
			Domain:    meta.Domain,
			Diagonal:  m.At(row, row),
			Degree:    m.Degree(row),
			RowWeight: m.RowWeight(row),
		}
	}

	return &IndexFile{
		Summary: RunSummary{
			Threshold:      threshold,
			UnitsOK:        stats.UnitsOK,
			UnitsPartial:   stats.UnitsPartial,
			UnitsFailed:    stats.UnitsFailed,
			RecordsTotal:   stats.RecordsTotal,
			RecordsSkipped: stats.RecordsSkipped,
			RecordsMatched: stats.RecordsMatched,
			NNZ:            m.NNZ(),
			Density:        m.Density(),
			StartedAt:      stats.StartedAt,
			FinishedAt:     time.Now().UTC(),
		},
		Rows: rows,
	}
}

// WriteIndexFile stores the sidecar atomically next to the matrix.
func WriteIndexFile(path string, file *IndexFile) error {
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encode index file: %w", err)
	}

	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".tmp-index-*")
	if err != nil {
		return fmt.Errorf("create index temp file: %w", err)
	}

	_, err = tmp.Write(append(data, '\n'))
	if err == nil {
		err = tmp.Sync()
	}

	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("write index file: %w", err)
	}

	err = tmp.Close()
	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("close index temp file: %w", err)
	}

	err = os.Rename(tmp.Name(), path)
	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("publish index file: %w", err)
	}

	return nil
}

// ReadIndexFile loads a sidecar written by WriteIndexFile.
func ReadIndexFile(path string) (*IndexFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read index file: %w", err)
	}

	var file IndexFile

	err = json.Unmarshal(data, &file)
	if err != nil {
		return nil, fmt.Errorf("decode index file: %w", err)
	}

	return &file, nil
}
