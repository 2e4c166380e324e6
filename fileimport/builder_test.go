package fileimport

import (
	"bytes"
	"encoding/binary"
	"math"
)

// fileBuilder writes the big endian layout of Thales result files.
type fileBuilder struct {
	bytes.Buffer
}

func (b *fileBuilder) count(n int) {
	v := uint64(int64(n - 1))
	for shift := 40; shift >= 0; shift -= 8 {
		b.WriteByte(byte(v >> shift))
	}
}

func (b *fileBuilder) float64s(values ...float64) {
	for _, v := range values {
		_ = binary.Write(&b.Buffer, binary.BigEndian, math.Float64bits(v))
	}
}

func (b *fileBuilder) int16s(values ...int16) {
	for _, v := range values {
		_ = binary.Write(&b.Buffer, binary.BigEndian, v)
	}
}

func (b *fileBuilder) text(s string) {
	_ = binary.Write(&b.Buffer, binary.BigEndian, int16(len(s)))
	b.WriteString(s)
}

type ismFixture struct {
	frequency, impedance, phase, time []float64
	significance                      []int16
	date                              string
}

func (f ismFixture) bytes() []byte {
	var b fileBuilder
	b.Write([]byte{0, 0, 0, 0, 0, 0})
	b.count(len(f.frequency))
	b.float64s(f.frequency...)
	b.float64s(f.impedance...)
	b.float64s(f.phase...)
	b.float64s(f.time...)
	b.int16s(f.significance...)
	b.text(f.date)

	return b.Bytes()
}

type iscFixture struct {
	setup   [17]float64
	codes   []int16
	current []float64
	// texts are written as given, the decoder swaps their case
	texts [12]string
}

func (f iscFixture) bytes() []byte {
	var b fileBuilder
	b.float64s(f.setup[:]...)
	b.count(len(f.codes))
	b.int16s(f.codes...)
	b.float64s(f.current...)
	for _, t := range f.texts {
		b.text(t)
	}

	return b.Bytes()
}
