// Package npyio implements the slice of the NumPy .npy v1.0 format the
// engine needs for its input/output boundary: scalar and 1-D vector arrays
// of dtype '<u8' or '<f8'. Implemented directly on encoding/binary and
// bytes; see DESIGN.md for why no third-party codec is used here.
package npyio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const (
	magic       = "\x93NUMPY"
	versionMaj  = 1
	versionMin  = 0
	headerAlign = 64
)

// Dtype identifies one of the two on-disk element types the engine uses.
type Dtype string

const (
	DtypeU8 Dtype = "<u8" // uint64, little-endian
	DtypeF8 Dtype = "<f8" // float64, little-endian
)

func (d Dtype) size() int {
	switch d {
	case DtypeU8, DtypeF8:
		return 8
	default:
		return 0
	}
}

// header describes the parsed contents of a .npy header.
type header struct {
	dtype   Dtype
	fortran bool
	shape   []int
}

func writeHeader(w io.Writer, dtype Dtype, shape []int) error {
	var shapeStr string
	switch len(shape) {
	case 0:
		shapeStr = "()"
	case 1:
		shapeStr = fmt.Sprintf("(%d,)", shape[0])
	default:
		parts := make([]string, len(shape))
		for i, s := range shape {
			parts[i] = strconv.Itoa(s)
		}
		shapeStr = "(" + strings.Join(parts, ", ") + ")"
	}
	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': %s, }", dtype, shapeStr)

	// Total length (10-byte preamble + header + trailing newline) must be a
	// multiple of headerAlign.
	unpadded := len(dict) + 1
	total := ((10 + unpadded + headerAlign - 1) / headerAlign) * headerAlign
	padLen := total - 10 - unpadded
	dict += strings.Repeat(" ", padLen) + "\n"

	if _, err := io.WriteString(w, magic); err != nil {
		return err
	}
	if _, err := w.Write([]byte{versionMaj, versionMin}); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(dict))); err != nil {
		return err
	}
	_, err := io.WriteString(w, dict)
	return err
}

func readHeader(r io.Reader) (*header, error) {
	buf := make([]byte, 6)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("reading npy magic: %w", err)
	}
	if string(buf) != magic {
		return nil, fmt.Errorf("not a .npy file: bad magic")
	}
	ver := make([]byte, 2)
	if _, err := io.ReadFull(r, ver); err != nil {
		return nil, fmt.Errorf("reading npy version: %w", err)
	}
	var hlen uint16
	if err := binary.Read(r, binary.LittleEndian, &hlen); err != nil {
		return nil, fmt.Errorf("reading npy header length: %w", err)
	}
	dict := make([]byte, hlen)
	if _, err := io.ReadFull(r, dict); err != nil {
		return nil, fmt.Errorf("reading npy header: %w", err)
	}
	return parseDict(string(dict))
}

func parseDict(s string) (*header, error) {
	h := &header{}
	if idx := strings.Index(s, "'descr':"); idx >= 0 {
		rest := s[idx+len("'descr':"):]
		rest = strings.TrimLeft(rest, " ")
		if !strings.HasPrefix(rest, "'") {
			return nil, fmt.Errorf("malformed descr field")
		}
		end := strings.Index(rest[1:], "'")
		h.dtype = Dtype(rest[1 : 1+end])
	} else {
		return nil, fmt.Errorf("missing descr field")
	}
	h.fortran = strings.Contains(s, "'fortran_order': True")
	if idx := strings.Index(s, "'shape':"); idx >= 0 {
		rest := s[idx+len("'shape':"):]
		open := strings.Index(rest, "(")
		close := strings.Index(rest, ")")
		if open < 0 || close < 0 || close < open {
			return nil, fmt.Errorf("malformed shape field")
		}
		inner := strings.TrimSpace(rest[open+1 : close])
		if inner != "" {
			for _, part := range strings.Split(inner, ",") {
				part = strings.TrimSpace(part)
				if part == "" {
					continue
				}
				n, err := strconv.Atoi(part)
				if err != nil {
					return nil, fmt.Errorf("parsing shape: %w", err)
				}
				h.shape = append(h.shape, n)
			}
		}
	} else {
		return nil, fmt.Errorf("missing shape field")
	}
	return h, nil
}

// WriteScalarU64 writes a scalar uint64 array.
func WriteScalarU64(path string, v uint64) error {
	return writeFile(path, DtypeU8, nil, func(w io.Writer) error {
		return binary.Write(w, binary.LittleEndian, v)
	})
}

// WriteScalarF64 writes a scalar float64 array.
func WriteScalarF64(path string, v float64) error {
	return writeFile(path, DtypeF8, nil, func(w io.Writer) error {
		return binary.Write(w, binary.LittleEndian, v)
	})
}

// WriteVectorF64 writes a 1-D float64 array.
func WriteVectorF64(path string, v []float64) error {
	return writeFile(path, DtypeF8, []int{len(v)}, func(w io.Writer) error {
		return binary.Write(w, binary.LittleEndian, v)
	})
}

func writeFile(path string, dtype Dtype, shape []int, writeBody func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := writeHeader(&buf, dtype, shape); err != nil {
		return err
	}
	if err := writeBody(&buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// ReadScalarU64 reads a scalar uint64 array.
func ReadScalarU64(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	h, err := readHeader(f)
	if err != nil {
		return 0, err
	}
	if err := expectScalar(h, DtypeU8); err != nil {
		return 0, err
	}
	var v uint64
	if err := binary.Read(f, binary.LittleEndian, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// ReadScalarF64 reads a scalar float64 array.
func ReadScalarF64(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	h, err := readHeader(f)
	if err != nil {
		return 0, err
	}
	if err := expectScalar(h, DtypeF8); err != nil {
		return 0, err
	}
	var v float64
	if err := binary.Read(f, binary.LittleEndian, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// ReadVectorF64 reads a 1-D float64 array of the expected length.
func ReadVectorF64(path string, n int) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h, err := readHeader(f)
	if err != nil {
		return nil, err
	}
	if err := expectVector(h, DtypeF8, n); err != nil {
		return nil, err
	}
	v := make([]float64, n)
	if err := binary.Read(f, binary.LittleEndian, v); err != nil {
		return nil, err
	}
	return v, nil
}

func expectScalar(h *header, dtype Dtype) error {
	if h.dtype != dtype {
		return fmt.Errorf("unexpected dtype %q, want %q", h.dtype, dtype)
	}
	if len(h.shape) != 0 {
		return fmt.Errorf("expected scalar (0-d) array, got shape %v", h.shape)
	}
	if h.fortran {
		return fmt.Errorf("fortran-ordered arrays are not supported")
	}
	return nil
}

func expectVector(h *header, dtype Dtype, n int) error {
	if h.dtype != dtype {
		return fmt.Errorf("unexpected dtype %q, want %q", h.dtype, dtype)
	}
	if len(h.shape) != 1 || h.shape[0] != n {
		return fmt.Errorf("expected shape (%d,), got %v", n, h.shape)
	}
	if h.fortran {
		return fmt.Errorf("fortran-ordered arrays are not supported")
	}
	return nil
}
