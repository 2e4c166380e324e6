// Package fileimport decodes the binary result files written by the Thales software.
//
// ISM files hold impedance spectra, ISC files hold cyclic voltammetry curves. All numbers are
// stored big endian.
package fileimport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode"

	"golang.org/x/text/encoding/charmap"
)

// ErrMalformedFile is returned for files that are truncated or carry impossible counts.
var ErrMalformedFile = errors.New("malformed thales file")

// fileReader reads big endian values from a complete file. The first failure is kept and
// every following read returns zero values.
type fileReader struct {
	buf []byte
	off int
	err error
}

func newFileReader(buf []byte) *fileReader {
	return &fileReader{buf: buf}
}

func (r *fileReader) next(n int, what string) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > len(r.buf)-r.off {
		r.err = fmt.Errorf("%w: %s needs %d bytes at offset %d, %d left",
			ErrMalformedFile, what, n, r.off, len(r.buf)-r.off)
		return nil
	}

	b := r.buf[r.off : r.off+n]
	r.off += n

	return b
}

func (r *fileReader) skip(n int) {
	r.next(n, "header")
}

// count reads the 48 bit signed element count. The stored value is the last index,
// the number of elements is one more.
func (r *fileReader) count() int {
	b := r.next(6, "element count")
	if b == nil {
		return 0
	}

	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	// sign extend from 48 bits
	v = v << 16 >> 16

	n := v + 1
	if n < 1 || n > int64(len(r.buf)) {
		r.err = fmt.Errorf("%w: element count %d", ErrMalformedFile, n)
		return 0
	}

	return int(n)
}

func (r *fileReader) float64() float64 {
	b := r.next(8, "double")
	if b == nil {
		return 0
	}

	return math.Float64frombits(binary.BigEndian.Uint64(b))
}

func (r *fileReader) float64s(n int, what string) []float64 {
	b := r.next(8*n, what)
	if b == nil {
		return nil
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = math.Float64frombits(binary.BigEndian.Uint64(b[8*i:]))
	}

	return out
}

func (r *fileReader) int16s(n int, what string) []int16 {
	b := r.next(2*n, what)
	if b == nil {
		return nil
	}

	out := make([]int16, n)
	for i := range out {
		out[i] = int16(binary.BigEndian.Uint16(b[2*i:]))
	}

	return out
}

// text reads a string prefixed with its signed 16 bit length.
func (r *fileReader) text(what string) string {
	b := r.next(2, what+" length")
	if b == nil {
		return ""
	}

	n := int(int16(binary.BigEndian.Uint16(b)))
	s := r.next(n, what)
	if s == nil {
		return ""
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(s)
	if err != nil {
		return string(s)
	}

	return string(decoded)
}

// swapCase turns upper case letters into lower case ones and vice versa. Strings in
// ISC files are stored with inverted case.
func swapCase(s string) string {
	out := []rune(s)
	for i, c := range out {
		switch {
		case unicode.IsUpper(c):
			out[i] = unicode.ToLower(c)
		case unicode.IsLower(c):
			out[i] = unicode.ToUpper(c)
		}
	}

	return string(out)
}
