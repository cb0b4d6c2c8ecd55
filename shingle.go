package cuckoofilter

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"

	"github.com/efficient/cuckoofilter/errors"
	"github.com/efficient/cuckoofilter/internal/alloc"
	intbits "github.com/efficient/cuckoofilter/internal/bits"
)

// Shingle is a cuckoo filter variant with overlapping buckets: each logical
// bucket spans two adjacent slots, which pushes the usable load factor to
// about 94%. See Lehman and Panigrahy, "3.5-way cuckoo hashing for the
// price of 2-and-a-bit".
//
// Two halves A and B of equal power-of-two length are stored interleaved:
// the three bytes at data[3i] hold A[i] in the low 12 bits and B[i] in the
// high 12 bits. A 12-bit cell is an 11-bit fingerprint shifted left once,
// with the low bit flagging that the entry was displaced one slot forward
// from its home index (robin-hood style). Fingerprint 0 marks an empty
// cell; keys hashing to 0 use 1 instead.
type Shingle struct {
	hasher HashFamily

	// imask is one less than the length of each half.
	imask uint64
	// fpHash derives B-side indexes from A-side ones via delta-universal
	// multiply-shift hashing of the fingerprint.
	fpHash uint64

	buf    *alloc.Buffer
	data   []byte
	filled uint64

	rng *rand.Rand
}

const (
	shingleFPBits = 11
	shingleFPMask = uint64(1)<<shingleFPBits - 1

	// shingleMaxLoad is the occupancy beyond which Add refuses.
	shingleMaxLoad = 12.0 / 12.75
)

// NewShingle creates a shingle filter sized for maxNumKeys items.
func NewShingle(maxNumKeys uint64, opts ...Option) (*Shingle, error) {
	if maxNumKeys == 0 {
		return nil, errors.ErrZeroCapacity
	}
	cfg := defaultFilterConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.hasher == nil {
		cfg.hasher = NewTwoIndependentMultiplyShift()
	}

	// Total slots across both halves must keep the target load under the
	// 12/12.75 cap; 17/16 is exactly the reciprocal.
	numSlots := intbits.UpperPower2(max(4, maxNumKeys+maxNumKeys/16+1))
	imask := numSlots/2 - 1

	// Three spare slot pairs at the tail: the robin-hood shift reaches
	// idx+3 and the probe reads 64 bits starting at any home cell.
	buf := alloc.New(int(3*(imask+4)), cfg.hugePages)

	return &Shingle{
		hasher: cfg.hasher,
		imask:  imask,
		fpHash: rand.Uint64(),
		buf:    buf,
		data:   buf.Bytes(),
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}, nil
}

// Close releases the slot storage. The filter must not be used after Close.
func (s *Shingle) Close() error {
	s.data = nil
	return s.buf.Free()
}

// get returns the 12-bit cell at index i of half A (isA) or B.
func (s *Shingle) get(isA bool, i uint64) uint64 {
	if isA {
		return uint64(binary.LittleEndian.Uint16(s.data[i*3:])) & 0x0fff
	}
	return uint64(binary.LittleEndian.Uint16(s.data[i*3+1:])) >> 4
}

// set stores the low 12 bits of x as cell i of half A (isA) or B.
func (s *Shingle) set(isA bool, i uint64, x uint64) {
	if isA {
		v := binary.LittleEndian.Uint16(s.data[i*3:])
		binary.LittleEndian.PutUint16(s.data[i*3:], uint16(x)|v&0xf000)
		return
	}
	v := binary.LittleEndian.Uint16(s.data[i*3+1:])
	binary.LittleEndian.PutUint16(s.data[i*3+1:], uint16(x)<<4|v&0x000f)
}

// reIndex maps an index in one half to the candidate index in the other.
func (s *Shingle) reIndex(idx, fp uint64) uint64 {
	return (idx ^ (s.fpHash * fp >> shingleFPBits)) & s.imask
}

// swap stores fp at idx+offset and returns the home index and fingerprint
// of the entry that was there.
func (s *Shingle) swap(isA bool, idx, offset, fp uint64) (uint64, uint64) {
	idx += offset
	prev := s.get(isA, idx)
	s.set(isA, idx, offset|fp<<1)
	prevIdx := idx
	if prev&1 != 0 {
		prevIdx--
	}
	return prevIdx, prev >> 1
}

// addHelp places fp at one of its two slots in the given half, shifting
// neighbors forward when that frees a slot cheaply, and otherwise evicting
// a random resident into the other half.
func (s *Shingle) addHelp(isA bool, idx, fp uint64) {
	for offset := uint64(0); offset <= 1; offset++ {
		if s.get(isA, idx+offset) == 0 {
			s.set(isA, idx+offset, offset|fp<<1)
			s.filled++
			return
		}
	}

	// Short local search: push un-displaced items in the next slots one
	// forward, ala robin-hood linear probing.
	if s.get(isA, idx+1)&1 == 0 {
		if s.get(isA, idx+2) == 0 {
			s.set(isA, idx+2, 1|s.get(isA, idx+1))
			s.set(isA, idx+1, 1|fp<<1)
			s.filled++
			return
		} else if s.get(isA, idx+2)&1 == 0 {
			if s.get(isA, idx+3) == 0 {
				s.set(isA, idx+3, 1|s.get(isA, idx+2))
				s.set(isA, idx+2, 1|s.get(isA, idx+1))
				s.set(isA, idx+1, 1|fp<<1)
				s.filled++
				return
			}
		}
	}

	// Kick out a random resident of the two slots and retry it in the
	// other half. The walk is bounded in practice by the load cap; a BFS
	// would find shorter paths but this mirrors the random-walk insert.
	offset := uint64(s.rng.IntN(2))
	idx, fp = s.swap(isA, idx, offset, fp)
	s.addHelp(!isA, s.reIndex(idx, fp), fp)
}

// deleteHelp clears fp from the given half, trying the other half when the
// first misses.
func (s *Shingle) deleteHelp(isA bool, idx, fp uint64) bool {
	for offset := uint64(0); offset <= 1; offset++ {
		if s.get(isA, idx+offset) == offset|fp<<1 {
			s.set(isA, idx+offset, 0)
			return true
		}
	}
	if isA {
		return s.deleteHelp(false, s.reIndex(idx, fp), fp)
	}
	return false
}

// indexFingerprint splits a key's hash into home index and fingerprint.
func (s *Shingle) indexFingerprint(key uint64) (uint64, uint64) {
	h := s.hasher.Hash(key)
	idx := h >> shingleFPBits & s.imask
	fp := h & shingleFPMask
	if fp == 0 {
		fp = 1
	}
	return idx, fp
}

// Add inserts a key. Returns NotEnoughSpace above the load cap.
func (s *Shingle) Add(key uint64) Status {
	if float64(s.filled)/float64(2*(s.imask+1)) > shingleMaxLoad {
		return NotEnoughSpace
	}
	idx, fp := s.indexFingerprint(key)
	s.addHelp(true, idx, fp)
	return Ok
}

// Contain reports whether the key is (probably) in the filter. Both
// candidate positions in both halves are probed with one SWAR test: the
// multiplier replicates the fingerprint into four 12-bit lanes and the
// additive constant flips the offset bit in the lanes that correspond to
// displaced entries.
func (s *Shingle) Contain(key uint64) bool {
	idx, fp := s.indexFingerprint(key)
	idx2 := s.reIndex(idx, fp)

	const aSlotsMask = uint64(0xfff) | uint64(0xfff)<<24
	const bSlotsMask = aSlotsMask << 12

	slots := ^aSlotsMask | binary.LittleEndian.Uint64(s.data[idx*3:])
	slots2 := ^bSlotsMask | binary.LittleEndian.Uint64(s.data[idx2*3:])
	slotsAll := slots & slots2

	fpAll := fp*0x002002002002 | 0x001001000000
	return intbits.HasZero12(fpAll ^ slotsAll)
}

// Delete removes one copy of the key's fingerprint. Same caveat as the
// cuckoo filter: deleting a never-added key may remove a collider.
func (s *Shingle) Delete(key uint64) Status {
	idx, fp := s.indexFingerprint(key)
	if s.deleteHelp(true, idx, fp) {
		s.filled--
		return Ok
	}
	return NotFound
}

// Size returns the number of occupied slots.
func (s *Shingle) Size() uint64 { return s.filled }

// SizeInBytes returns the slot storage size.
func (s *Shingle) SizeInBytes() uint64 { return uint64(len(s.data)) }

// LoadFactor returns the fraction of occupied slots.
func (s *Shingle) LoadFactor() float64 {
	return float64(s.filled) / float64(2*(s.imask+1))
}

// ShingleStats holds shingle filter statistics.
type ShingleStats struct {
	NumSlots    uint64 // total across both halves
	NumItems    uint64
	LoadFactor  float64
	SizeInBytes uint64
}

// Stats returns a snapshot of the filter's statistics.
func (s *Shingle) Stats() ShingleStats {
	return ShingleStats{
		NumSlots:    2 * (s.imask + 1),
		NumItems:    s.filled,
		LoadFactor:  s.LoadFactor(),
		SizeInBytes: s.SizeInBytes(),
	}
}

// Info returns human-readable diagnostics.
func (s *Shingle) Info() string {
	return fmt.Sprintf("Shingle Status:\n"+
		"\t\tSlots: 2 x %d\n"+
		"\t\tKeys stored: %d\n"+
		"\t\tLoad factor: %v\n"+
		"\t\tTable size: %d KB\n",
		s.imask+1, s.filled, s.LoadFactor(), s.SizeInBytes()>>10)
}

// shingleTrailerSize covers fpHash, imask, and filled.
const shingleTrailerSize = 8 + 8 + 8

// MarshalBinary serializes the filter: hash family state, fingerprint-hash
// constant, half-length mask, fill count, then the raw slot bytes.
func (s *Shingle) MarshalBinary() ([]byte, error) {
	hashState, err := s.hasher.MarshalBinary()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, len(hashState)+shingleTrailerSize+len(s.data))
	buf = append(buf, hashState...)

	var trailer [shingleTrailerSize]byte
	binary.LittleEndian.PutUint64(trailer[0:8], s.fpHash)
	binary.LittleEndian.PutUint64(trailer[8:16], s.imask)
	binary.LittleEndian.PutUint64(trailer[16:24], s.filled)
	buf = append(buf, trailer[:]...)
	return append(buf, s.data...), nil
}

// UnmarshalBinary restores state serialized by MarshalBinary into a filter
// constructed with the same capacity and hash family type.
func (s *Shingle) UnmarshalBinary(data []byte) error {
	hashLen := s.hasher.StateSize()
	want := hashLen + shingleTrailerSize + len(s.data)
	if len(data) != want {
		return fmt.Errorf("%w: have %d bytes, want %d", errors.ErrShapeMismatch, len(data), want)
	}
	trailer := data[hashLen : hashLen+shingleTrailerSize]
	if imask := binary.LittleEndian.Uint64(trailer[8:16]); imask != s.imask {
		return fmt.Errorf("%w: serialized half-length mask %d, filter has %d",
			errors.ErrShapeMismatch, imask, s.imask)
	}
	if err := s.hasher.UnmarshalBinary(data[:hashLen]); err != nil {
		return err
	}
	s.fpHash = binary.LittleEndian.Uint64(trailer[0:8])
	s.filled = binary.LittleEndian.Uint64(trailer[16:24])
	copy(s.data, data[hashLen+shingleTrailerSize:])
	return nil
}
