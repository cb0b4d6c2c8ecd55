package cuckoofilter

import (
	"encoding/binary"
	"fmt"

	"github.com/efficient/cuckoofilter/errors"
)

// Wire format for a cuckoo filter, in order:
//
//	hash family state   (family-specific fixed length)
//	raw bucket bytes    (including tail padding)
//	numBuckets          uint64 little-endian
//	numItems            uint64 little-endian
//	victim index        uint64 little-endian
//	victim tag          uint32 little-endian
//	victim used         1 byte (0 or 1)
//
// The format carries no magic or version; SaveFile/LoadFile wrap it with a
// checked header for on-disk use. Round-tripping through Marshal/Unmarshal
// with the same geometry and hash family is byte-identical.

const filterTrailerSize = 8 + 8 + 8 + 4 + 1

// MarshalBinary serializes the filter state.
func (f *Filter) MarshalBinary() ([]byte, error) {
	hashState, err := f.hasher.MarshalBinary()
	if err != nil {
		return nil, err
	}
	bucketBytes := f.table.Bytes()

	buf := make([]byte, 0, len(hashState)+len(bucketBytes)+filterTrailerSize)
	buf = append(buf, hashState...)
	buf = append(buf, bucketBytes...)

	var trailer [filterTrailerSize]byte
	binary.LittleEndian.PutUint64(trailer[0:8], uint64(f.table.NumBuckets()))
	binary.LittleEndian.PutUint64(trailer[8:16], f.numItems)
	binary.LittleEndian.PutUint64(trailer[16:24], uint64(f.victim.index))
	binary.LittleEndian.PutUint32(trailer[24:28], f.victim.tag)
	if f.victim.used {
		trailer[28] = 1
	}
	return append(buf, trailer[:]...), nil
}

// UnmarshalBinary restores state serialized by MarshalBinary into a filter
// constructed with the same capacity, tag width, table layout, and hash
// family type. The destination filter's contents are overwritten.
func (f *Filter) UnmarshalBinary(data []byte) error {
	hashLen := f.hasher.StateSize()
	bucketBytes := f.table.Bytes()
	want := hashLen + len(bucketBytes) + filterTrailerSize
	if len(data) != want {
		return fmt.Errorf("%w: have %d bytes, want %d", errors.ErrShapeMismatch, len(data), want)
	}

	trailer := data[hashLen+len(bucketBytes):]
	numBuckets := binary.LittleEndian.Uint64(trailer[0:8])
	if numBuckets != uint64(f.table.NumBuckets()) {
		return fmt.Errorf("%w: serialized %d buckets, filter has %d",
			errors.ErrShapeMismatch, numBuckets, f.table.NumBuckets())
	}
	if used := trailer[28]; used > 1 {
		return fmt.Errorf("%w: victim flag byte %d", errors.ErrCorruptedFilter, used)
	}

	if err := f.hasher.UnmarshalBinary(data[:hashLen]); err != nil {
		return err
	}
	copy(bucketBytes, data[hashLen:hashLen+len(bucketBytes)])
	f.numItems = binary.LittleEndian.Uint64(trailer[8:16])
	f.victim.index = uint(binary.LittleEndian.Uint64(trailer[16:24]))
	f.victim.tag = binary.LittleEndian.Uint32(trailer[24:28])
	f.victim.used = trailer[28] == 1
	return nil
}
