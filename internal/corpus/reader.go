package corpus

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pierrec/lz4/v4"
)

// Supported unit extensions.
const (
	ExtGzip = ".gz"
	ExtLZ4  = ".lz4"
)

// maxLineBytes bounds a single record line. Lines beyond this are treated
// as corruption, not records.
const maxLineBytes = 16 * 1024 * 1024

// initialScanBuffer is the starting buffer size for the line scanner.
const initialScanBuffer = 64 * 1024

// ErrUnsupportedUnit indicates a unit file with an unrecognized extension.
var ErrUnsupportedUnit = errors.New("unsupported unit format")

// Reader streams records from one compressed unit. It tolerates malformed
// lines (skipped and counted) and truncated or corrupt compressed streams
// (the sequence ends early and Partial reports true).
type Reader struct {
	file      *os.File
	closer    io.Closer // gzip reader when applicable, nil for lz4.
	scanner   *bufio.Scanner
	partial   bool
	malformed int64
	records   int64
}

// Open opens the unit at path and prepares incremental decoding.
// An error here means the unit could not be opened at all; the caller
// records the unit as failed rather than retrying.
func Open(path string) (*Reader, error) {
	decompressor, err := decompressorFor(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open unit: %w", err)
	}

	stream, closer, err := decompressor(file)
	if err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("open compressed stream: %w", err)
	}

	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, initialScanBuffer), maxLineBytes)

	return &Reader{
		file:    file,
		closer:  closer,
		scanner: scanner,
	}, nil
}

// openFunc wraps a file into a decompressed stream and an optional closer.
type openFunc func(file *os.File) (io.Reader, io.Closer, error)

// decompressorFor selects the stream decoder from the file extension.
func decompressorFor(path string) (openFunc, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtGzip:
		return openGzip, nil
	case ExtLZ4:
		return openLZ4, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedUnit, path)
	}
}

func openGzip(file *os.File) (io.Reader, io.Closer, error) {
	zr, err := gzip.NewReader(file)
	if err != nil {
		return nil, nil, err
	}

	// Do not require a well-formed trailing checksum: a truncated archive
	// should surface as an early end of stream, handled per-line.
	zr.Multistream(true)

	return zr, zr, nil
}

func openLZ4(file *os.File) (io.Reader, io.Closer, error) {
	return lz4.NewReader(file), nil, nil
}

// Next returns the next well-formed record, or false when the unit is
// exhausted. Malformed lines are skipped and counted; a corrupt or
// truncated compressed stream terminates the sequence early and marks the
// reader partial.
func (r *Reader) Next() (*Record, bool) {
	for {
		if !r.scanner.Scan() {
			if r.scanner.Err() != nil {
				r.partial = true
			}

			return nil, false
		}

		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		rec, err := parseRecord(line)
		if err != nil {
			r.malformed++

			continue
		}

		r.records++

		return rec, true
	}
}

// Partial reports whether the compressed stream ended abnormally. Records
// yielded before the corruption point remain valid.
func (r *Reader) Partial() bool {
	return r.partial
}

// Malformed returns the number of skipped unparsable lines.
func (r *Reader) Malformed() int64 {
	return r.malformed
}

// Records returns the number of well-formed records yielded so far.
func (r *Reader) Records() int64 {
	return r.records
}

// Close releases the underlying file. A decoder close error on a partial
// unit is expected and not reported.
func (r *Reader) Close() error {
	if r.closer != nil {
		_ = r.closer.Close()
	}

	err := r.file.Close()
	if err != nil {
		return fmt.Errorf("close unit: %w", err)
	}

	return nil
}
