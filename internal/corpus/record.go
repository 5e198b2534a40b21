// Package corpus streams records out of compressed per-record archives.
//
// Each archive (unit) holds one self-describing JSON record per line.
// Decoding is incremental: a unit's decompressed content is never held in
// memory at once.
package corpus

import "encoding/json"

// Annotation is one tagged identifier on a record, with its confidence score.
type Annotation struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Record is one corpus entry. Records are ephemeral: they are parsed,
// handed to extraction, and discarded.
type Record struct {
	ID        string       `json:"id"`
	Retracted bool         `json:"is_retracted"`
	Concepts  []Annotation `json:"concepts"`
}

// parseRecord decodes a single line into a Record. Unknown fields are ignored.
func parseRecord(line []byte) (*Record, error) {
	var rec Record

	err := json.Unmarshal(line, &rec)
	if err != nil {
		return nil, err
	}

	return &rec, nil
}
