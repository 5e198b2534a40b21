package matrix

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// On-disk format constants. All integers are little-endian.
const (
	fileMagic   = "CSRW"
	fileVersion = uint32(1)

	// writerBufferSize is the buffered-writer size for matrix output.
	writerBufferSize = 1 << 20
)

// Sentinel errors for matrix files.
var (
	// ErrBadMagic indicates a file that is not a matrix file.
	ErrBadMagic = errors.New("not a matrix file")

	// ErrBadVersion indicates a matrix file with an unsupported format
	// version.
	ErrBadVersion = errors.New("unsupported matrix file version")

	// ErrCorruptMatrix indicates a matrix file whose structure is
	// internally inconsistent.
	ErrCorruptMatrix = errors.New("corrupt matrix file")
)

// fileHeader is the fixed-size preamble of a matrix file.
type fileHeader struct {
	Magic   [4]byte
	Version uint32
	N       int32
	Pad     int32
	NNZ     int64
}

// Write serializes the matrix to path atomically: the bytes land in a
// temporary file in the same directory and are renamed into place after a
// sync, so a crash never leaves a torn matrix behind.
func (m *CSR) Write(path string) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".tmp-matrix-*")
	if err != nil {
		return fmt.Errorf("create matrix temp file: %w", err)
	}

	err = m.writeAndSync(tmp)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return err
	}

	err = tmp.Close()
	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("close matrix temp file: %w", err)
	}

	err = os.Rename(tmp.Name(), path)
	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("publish matrix file: %w", err)
	}

	return nil
}

func (m *CSR) writeAndSync(file *os.File) error {
	bw := bufio.NewWriterSize(file, writerBufferSize)

	header := fileHeader{
		Version: fileVersion,
		N:       m.N,
		NNZ:     m.NNZ(),
	}
	copy(header.Magic[:], fileMagic)

	for _, section := range []any{header, m.RowPtr, m.ColInd, m.Values} {
		err := binary.Write(bw, binary.LittleEndian, section)
		if err != nil {
			return fmt.Errorf("write matrix section: %w", err)
		}
	}

	err := bw.Flush()
	if err != nil {
		return fmt.Errorf("flush matrix file: %w", err)
	}

	err = file.Sync()
	if err != nil {
		return fmt.Errorf("sync matrix file: %w", err)
	}

	return nil
}

// Read loads a matrix file written by Write, verifying its header and
// structural invariants.
func Read(path string) (*CSR, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open matrix file: %w", err)
	}

	defer file.Close()

	return decode(bufio.NewReaderSize(file, writerBufferSize))
}

func decode(r io.Reader) (*CSR, error) {
	var header fileHeader

	err := binary.Read(r, binary.LittleEndian, &header)
	if err != nil {
		return nil, fmt.Errorf("read matrix header: %w", err)
	}

	if string(header.Magic[:]) != fileMagic {
		return nil, ErrBadMagic
	}

	if header.Version != fileVersion {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, header.Version)
	}

	if header.N < 0 || header.NNZ < 0 {
		return nil, fmt.Errorf("%w: negative dimensions", ErrCorruptMatrix)
	}

	csr := &CSR{
		N:      header.N,
		RowPtr: make([]int64, header.N+1),
		ColInd: make([]int32, header.NNZ),
		Values: make([]float64, header.NNZ),
	}

	for _, section := range []any{csr.RowPtr, csr.ColInd, csr.Values} {
		err = binary.Read(r, binary.LittleEndian, section)
		if err != nil {
			return nil, fmt.Errorf("read matrix section: %w", err)
		}
	}

	if csr.RowPtr[0] != 0 || csr.RowPtr[header.N] != header.NNZ {
		return nil, fmt.Errorf("%w: row pointers disagree with entry count", ErrCorruptMatrix)
	}

	for i := int32(0); i < header.N; i++ {
		if csr.RowPtr[i] > csr.RowPtr[i+1] {
			return nil, fmt.Errorf("%w: row pointers not monotonic", ErrCorruptMatrix)
		}
	}

	return csr, nil
}
