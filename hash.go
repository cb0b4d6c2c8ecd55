package cuckoofilter

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"math/rand/v2"

	"github.com/efficient/cuckoofilter/errors"
)

// HashFamily maps a 64-bit key to a 64-bit hash. Instances carry random
// parameters drawn at construction and must be deterministic afterward: the
// same instance always maps the same key to the same hash. The filter uses
// the high 32 bits for the bucket index and the low bits for the tag, so
// the family must mix well in both halves.
//
// State marshaling exists so a serialized filter can be re-opened with the
// exact hash function it was built with.
type HashFamily interface {
	// Hash maps a key to a 64-bit hash.
	Hash(key uint64) uint64

	// StateSize returns the exact length of the marshaled state in bytes.
	StateSize() int

	// MarshalBinary serializes the family's random parameters.
	MarshalBinary() ([]byte, error)

	// UnmarshalBinary restores the family from marshaled parameters.
	UnmarshalBinary(data []byte) error
}

// TwoIndependentMultiplyShift is two-independent hashing via 128-bit
// multiply-shift: hash(key) = (a + m*key) >> 64 for uniformly random
// 128-bit constants m and a. See Dietzfelbinger, "Universal hashing and
// k-wise independent random variables via integer arithmetic without
// primes".
type TwoIndependentMultiplyShift struct {
	multiplyLo, multiplyHi uint64
	addLo, addHi           uint64
}

const twoIndependentStateSize = 32

// NewTwoIndependentMultiplyShift draws fresh random constants.
func NewTwoIndependentMultiplyShift() *TwoIndependentMultiplyShift {
	return &TwoIndependentMultiplyShift{
		multiplyLo: rand.Uint64(),
		multiplyHi: rand.Uint64(),
		addLo:      rand.Uint64(),
		addHi:      rand.Uint64(),
	}
}

// Hash returns the high 64 bits of a + m*key over 128-bit arithmetic.
func (h *TwoIndependentMultiplyShift) Hash(key uint64) uint64 {
	hi, lo := bits.Mul64(h.multiplyLo, key)
	hi += h.multiplyHi * key
	_, carry := bits.Add64(lo, h.addLo, 0)
	return hi + h.addHi + carry
}

func (h *TwoIndependentMultiplyShift) StateSize() int { return twoIndependentStateSize }

// MarshalBinary writes the two 128-bit constants little-endian, multiply
// first.
func (h *TwoIndependentMultiplyShift) MarshalBinary() ([]byte, error) {
	buf := make([]byte, twoIndependentStateSize)
	binary.LittleEndian.PutUint64(buf[0:8], h.multiplyLo)
	binary.LittleEndian.PutUint64(buf[8:16], h.multiplyHi)
	binary.LittleEndian.PutUint64(buf[16:24], h.addLo)
	binary.LittleEndian.PutUint64(buf[24:32], h.addHi)
	return buf, nil
}

func (h *TwoIndependentMultiplyShift) UnmarshalBinary(data []byte) error {
	if len(data) < twoIndependentStateSize {
		return fmt.Errorf("%w: multiply-shift state is %d bytes, need %d",
			errors.ErrTruncatedFile, len(data), twoIndependentStateSize)
	}
	h.multiplyLo = binary.LittleEndian.Uint64(data[0:8])
	h.multiplyHi = binary.LittleEndian.Uint64(data[8:16])
	h.addLo = binary.LittleEndian.Uint64(data[16:24])
	h.addHi = binary.LittleEndian.Uint64(data[24:32])
	return nil
}

// SimpleTabulation is simple tabulation hashing: one random 256-entry table
// of 64-bit values per key byte, XORed together. Stronger independence than
// multiply-shift at the cost of 16 KiB of per-instance state. See Patrascu
// and Thorup, "The Power of Simple Tabulation Hashing".
type SimpleTabulation struct {
	tables [8][256]uint64
}

const simpleTabulationStateSize = 8 * 256 * 8

// NewSimpleTabulation fills the tables with fresh random values.
func NewSimpleTabulation() *SimpleTabulation {
	h := &SimpleTabulation{}
	for i := range h.tables {
		for j := range h.tables[i] {
			h.tables[i][j] = rand.Uint64()
		}
	}
	return h
}

// Hash XORs one table entry per key byte.
func (h *SimpleTabulation) Hash(key uint64) uint64 {
	var result uint64
	for i := 0; i < 8; i++ {
		result ^= h.tables[i][byte(key>>(i*8))]
	}
	return result
}

func (h *SimpleTabulation) StateSize() int { return simpleTabulationStateSize }

func (h *SimpleTabulation) MarshalBinary() ([]byte, error) {
	buf := make([]byte, simpleTabulationStateSize)
	off := 0
	for i := range h.tables {
		for j := range h.tables[i] {
			binary.LittleEndian.PutUint64(buf[off:], h.tables[i][j])
			off += 8
		}
	}
	return buf, nil
}

func (h *SimpleTabulation) UnmarshalBinary(data []byte) error {
	if len(data) < simpleTabulationStateSize {
		return fmt.Errorf("%w: tabulation state is %d bytes, need %d",
			errors.ErrTruncatedFile, len(data), simpleTabulationStateSize)
	}
	off := 0
	for i := range h.tables {
		for j := range h.tables[i] {
			h.tables[i][j] = binary.LittleEndian.Uint64(data[off:])
			off += 8
		}
	}
	return nil
}
