package table

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"

	"github.com/efficient/cuckoofilter/errors"
	"github.com/efficient/cuckoofilter/internal/alloc"
)

// PackedTable stores each bucket as a 12-bit permutation codeword plus four
// direct fields holding the bits above the low nibble, for a bucket size of
// 12 + 4*(bitsPerTag-4) bits. Buckets narrower than a byte multiple share
// bytes with their neighbors, so every write is a masked read-modify-write
// on a 16/32/64-bit window.
//
// Bucket layout, low bit first: codeword, then the direct bits of slots
// 0..3. The codeword decodes to low nibbles in (0, 2, 1, 3) order; see
// permencoding.go.
type PackedTable struct {
	bitsPerTag    uint
	dirBitsPerTag uint
	bitsPerBucket uint
	dirBitsMask   uint32 // ((1 << dirBitsPerTag) - 1) << 4
	numBuckets    uint
	len           int

	buf  *alloc.Buffer
	data []byte

	rng *rand.Rand
}

// packedTagBits lists the tag widths the packed layouts support.
var packedTagBits = map[uint]bool{5: true, 6: true, 7: true, 8: true, 9: true, 13: true, 17: true}

// NewPackedTable allocates a zeroed semi-sorted table of num buckets. num
// must be a power of 2. Returns errors.ErrUnsupportedBits for tag widths
// with no packed layout.
func NewPackedTable(num uint, bitsPerTag uint, hugePages bool, rng *rand.Rand) (*PackedTable, error) {
	if !packedTagBits[bitsPerTag] {
		return nil, fmt.Errorf("%w: packed table with %d bits per tag", errors.ErrUnsupportedBits, bitsPerTag)
	}
	dirBitsPerTag := bitsPerTag - 4
	bitsPerBucket := (3 + dirBitsPerTag) * tagsPerBucket
	bytesPerBucket := (bitsPerBucket + 7) >> 3
	// 7 trailing bytes keep the widest read window (a 64-bit load at the
	// last bucket's byte offset) in bounds.
	length := int(bytesPerBucket*num) + 7
	buf := alloc.New(length, hugePages)
	return &PackedTable{
		bitsPerTag:    bitsPerTag,
		dirBitsPerTag: dirBitsPerTag,
		bitsPerBucket: bitsPerBucket,
		dirBitsMask:   (uint32(1)<<dirBitsPerTag - 1) << 4,
		numBuckets:    num,
		len:           length,
		buf:           buf,
		data:          buf.Bytes(),
		rng:           rng,
	}, nil
}

func (t *PackedTable) NumBuckets() uint { return t.numBuckets }

func (t *PackedTable) BitsPerTag() uint { return t.bitsPerTag }

func (t *PackedTable) SizeInBytes() uint64 { return uint64(t.len) }

func (t *PackedTable) SizeInTags() uint64 { return tagsPerBucket * uint64(t.numBuckets) }

func (t *PackedTable) Bytes() []byte { return t.data }

func (t *PackedTable) Info() string {
	return fmt.Sprintf("PackedHashtable with tag size: %d bits"+
		"\t4 packed bits(3 bits after compression) and %d direct bits\n"+
		"\t\tAssociativity: %d\n"+
		"\t\tTotal # of rows: %d\n"+
		"\t\tTotal # slots: %d\n",
		t.bitsPerTag, t.dirBitsPerTag, tagsPerBucket, t.numBuckets, t.SizeInTags())
}

func (t *PackedTable) Close() error {
	t.data = nil
	return t.buf.Free()
}

// ReadBucket decodes the four tags of bucket i. The direct bits land at
// their final positions (bit 4 and up); the low nibbles come from the
// codeword.
func (t *PackedTable) ReadBucket(i uint, tags *[4]uint32) {
	dirMask := uint64(t.dirBitsMask)
	var codeword uint16

	switch t.bitsPerTag {
	case 5:
		// 1 direct bit per tag, 16 bits per bucket
		b := uint64(binary.LittleEndian.Uint16(t.data[i*2:]))
		codeword = uint16(b & 0x0fff)
		tags[0] = uint32((b >> 8) & dirMask)
		tags[1] = uint32((b >> 9) & dirMask)
		tags[2] = uint32((b >> 10) & dirMask)
		tags[3] = uint32((b >> 11) & dirMask)
	case 6:
		// 2 direct bits per tag, 20 bits per bucket
		p := (20 * i) >> 3
		b := uint64(binary.LittleEndian.Uint32(t.data[p:]))
		codeword = uint16(b>>((i&1)<<2)) & 0x0fff
		tags[0] = uint32((b >> (8 + ((i & 1) << 2))) & dirMask)
		tags[1] = uint32((b >> (10 + ((i & 1) << 2))) & dirMask)
		tags[2] = uint32((b >> (12 + ((i & 1) << 2))) & dirMask)
		tags[3] = uint32((b >> (14 + ((i & 1) << 2))) & dirMask)
	case 7:
		// 3 direct bits per tag, 24 bits per bucket
		b := uint64(binary.LittleEndian.Uint32(t.data[i*3:]))
		codeword = uint16(b & 0x0fff)
		tags[0] = uint32((b >> 8) & dirMask)
		tags[1] = uint32((b >> 11) & dirMask)
		tags[2] = uint32((b >> 14) & dirMask)
		tags[3] = uint32((b >> 17) & dirMask)
	case 8:
		// 4 direct bits per tag, 28 bits per bucket
		p := (28 * i) >> 3
		b := uint64(binary.LittleEndian.Uint32(t.data[p:]))
		codeword = uint16(b>>((i&1)<<2)) & 0x0fff
		tags[0] = uint32((b >> (8 + ((i & 1) << 2))) & dirMask)
		tags[1] = uint32((b >> (12 + ((i & 1) << 2))) & dirMask)
		tags[2] = uint32((b >> (16 + ((i & 1) << 2))) & dirMask)
		tags[3] = uint32((b >> (20 + ((i & 1) << 2))) & dirMask)
	case 9:
		// 5 direct bits per tag, 32 bits per bucket
		b := uint64(binary.LittleEndian.Uint32(t.data[i*4:]))
		codeword = uint16(b & 0x0fff)
		tags[0] = uint32((b >> 8) & dirMask)
		tags[1] = uint32((b >> 13) & dirMask)
		tags[2] = uint32((b >> 18) & dirMask)
		tags[3] = uint32((b >> 23) & dirMask)
	case 13:
		// 9 direct bits per tag, 48 bits per bucket
		b := binary.LittleEndian.Uint64(t.data[i*6:])
		codeword = uint16(b & 0x0fff)
		tags[0] = uint32((b >> 8) & dirMask)
		tags[1] = uint32((b >> 17) & dirMask)
		tags[2] = uint32((b >> 26) & dirMask)
		tags[3] = uint32((b >> 35) & dirMask)
	case 17:
		// 13 direct bits per tag, 64 bits per bucket
		b := binary.LittleEndian.Uint64(t.data[i*8:])
		codeword = uint16(b & 0x0fff)
		tags[0] = uint32((b >> 8) & dirMask)
		tags[1] = uint32((b >> 21) & dirMask)
		tags[2] = uint32((b >> 34) & dirMask)
		tags[3] = uint32((b >> 47) & dirMask)
	}

	low := perm.decode(codeword)
	tags[0] |= uint32(low[0])
	tags[1] |= uint32(low[1])
	tags[2] |= uint32(low[2])
	tags[3] |= uint32(low[3])
}

// WriteBucket encodes and stores the four tags of bucket i. When sort is
// set the tags are first canonicalized by low nibble; pass sort=false only
// when the tuple is already ordered by low nibble. The codeword always
// decodes to sorted nibbles, so unsorted input pairs direct bits with the
// wrong nibbles on the next read.
func (t *PackedTable) WriteBucket(i uint, tags [4]uint32, sort bool) {
	if sort {
		sortTags(&tags)
	}

	var lowBits [4]uint8
	var highBits [4]uint32
	for j := 0; j < tagsPerBucket; j++ {
		lowBits[j] = uint8(tags[j] & 0x0f)
		highBits[j] = tags[j] & 0xfffffff0
	}
	codeword := perm.encode(lowBits)

	switch t.bitsPerBucket {
	case 16:
		v := uint32(codeword) | highBits[0]<<8 | highBits[1]<<9 | highBits[2]<<10 | highBits[3]<<11
		binary.LittleEndian.PutUint16(t.data[i*2:], uint16(v))
	case 20:
		p := (20 * i) >> 3
		v := binary.LittleEndian.Uint32(t.data[p:])
		if i&1 == 0 {
			v &= 0xfff00000
			v |= uint32(codeword) | highBits[0]<<8 | highBits[1]<<10 | highBits[2]<<12 | highBits[3]<<14
		} else {
			v &= 0xff00000f
			v |= uint32(codeword)<<4 | highBits[0]<<12 | highBits[1]<<14 | highBits[2]<<16 | highBits[3]<<18
		}
		binary.LittleEndian.PutUint32(t.data[p:], v)
	case 24:
		p := i * 3
		v := binary.LittleEndian.Uint32(t.data[p:])
		v &= 0xff000000
		v |= uint32(codeword) | highBits[0]<<8 | highBits[1]<<11 | highBits[2]<<14 | highBits[3]<<17
		binary.LittleEndian.PutUint32(t.data[p:], v)
	case 28:
		p := (28 * i) >> 3
		v := binary.LittleEndian.Uint32(t.data[p:])
		if i&1 == 0 {
			v &= 0xf0000000
			v |= uint32(codeword) | highBits[0]<<8 | highBits[1]<<12 | highBits[2]<<16 | highBits[3]<<20
		} else {
			v &= 0x0000000f
			v |= uint32(codeword)<<4 | highBits[0]<<12 | highBits[1]<<16 | highBits[2]<<20 | highBits[3]<<24
		}
		binary.LittleEndian.PutUint32(t.data[p:], v)
	case 32:
		v := uint32(codeword) | highBits[0]<<8 | highBits[1]<<13 | highBits[2]<<18 | highBits[3]<<23
		binary.LittleEndian.PutUint32(t.data[i*4:], v)
	case 48:
		p := i * 6
		v := binary.LittleEndian.Uint64(t.data[p:])
		v &= 0xffff000000000000
		v |= uint64(codeword) | uint64(highBits[0])<<8 | uint64(highBits[1])<<17 |
			uint64(highBits[2])<<26 | uint64(highBits[3])<<35
		binary.LittleEndian.PutUint64(t.data[p:], v)
	case 64:
		v := uint64(codeword) | uint64(highBits[0])<<8 | uint64(highBits[1])<<21 |
			uint64(highBits[2])<<34 | uint64(highBits[3])<<47
		binary.LittleEndian.PutUint64(t.data[i*8:], v)
	}
}

// sortTags orders the tuple by low nibble with the same 5-comparator
// network the encoder canonicalizes with.
func sortTags(tags *[4]uint32) {
	sortPair(&tags[0], &tags[2])
	sortPair(&tags[1], &tags[3])
	sortPair(&tags[0], &tags[1])
	sortPair(&tags[2], &tags[3])
	sortPair(&tags[1], &tags[2])
}

func sortPair(a, b *uint32) {
	if *a&0x0f > *b&0x0f {
		*a, *b = *b, *a
	}
}

// FindTagInBuckets checks both candidate buckets. The 48-bit bucket (13
// bits per tag) is the hot configuration and decodes straight from two
// unaligned 64-bit reads; other widths go through ReadBucket.
func (t *PackedTable) FindTagInBuckets(i1, i2 uint, tag uint32) bool {
	if t.bitsPerBucket == 48 {
		dirMask := uint64(t.dirBitsMask)
		b1 := binary.LittleEndian.Uint64(t.data[i1*6:])
		b2 := binary.LittleEndian.Uint64(t.data[i2*6:])

		var tags1, tags2 [4]uint32
		tags1[0] = uint32((b1 >> 8) & dirMask)
		tags1[1] = uint32((b1 >> 17) & dirMask)
		tags1[2] = uint32((b1 >> 26) & dirMask)
		tags1[3] = uint32((b1 >> 35) & dirMask)
		v := perm.decTable[b1&0x0fff]
		// the order 0 2 1 3 is not a bug
		tags1[0] |= uint32(v & 0x000f)
		tags1[2] |= uint32((v >> 4) & 0x000f)
		tags1[1] |= uint32((v >> 8) & 0x000f)
		tags1[3] |= uint32((v >> 12) & 0x000f)

		tags2[0] = uint32((b2 >> 8) & dirMask)
		tags2[1] = uint32((b2 >> 17) & dirMask)
		tags2[2] = uint32((b2 >> 26) & dirMask)
		tags2[3] = uint32((b2 >> 35) & dirMask)
		v = perm.decTable[b2&0x0fff]
		tags2[0] |= uint32(v & 0x000f)
		tags2[2] |= uint32((v >> 4) & 0x000f)
		tags2[1] |= uint32((v >> 8) & 0x000f)
		tags2[3] |= uint32((v >> 12) & 0x000f)

		return tags1[0] == tag || tags1[1] == tag || tags1[2] == tag || tags1[3] == tag ||
			tags2[0] == tag || tags2[1] == tag || tags2[2] == tag || tags2[3] == tag
	}
	return t.FindTagInBucket(i1, tag) || t.FindTagInBucket(i2, tag)
}

// FindTagInBucket checks all four slots of bucket i.
func (t *PackedTable) FindTagInBucket(i uint, tag uint32) bool {
	var tags [4]uint32
	t.ReadBucket(i, &tags)
	return tags[0] == tag || tags[1] == tag || tags[2] == tag || tags[3] == tag
}

// DeleteTagFromBucket clears the first slot holding tag and rewrites the
// bucket.
func (t *PackedTable) DeleteTagFromBucket(i uint, tag uint32) bool {
	var tags [4]uint32
	t.ReadBucket(i, &tags)
	for j := 0; j < tagsPerBucket; j++ {
		if tags[j] == tag {
			tags[j] = 0
			t.WriteBucket(i, tags, true)
			return true
		}
	}
	return false
}

// InsertTagToBucket implements the Table insert contract.
func (t *PackedTable) InsertTagToBucket(i uint, tag uint32, kickout bool) (bool, uint32) {
	var tags [4]uint32
	t.ReadBucket(i, &tags)
	for j := 0; j < tagsPerBucket; j++ {
		if tags[j] == 0 {
			tags[j] = tag
			t.WriteBucket(i, tags, true)
			return true, 0
		}
	}
	if kickout {
		r := randSlot(t.rng)
		oldTag := tags[r]
		tags[r] = tag
		t.WriteBucket(i, tags, true)
		return false, oldTag
	}
	return false, 0
}

// NumTagsInBucket counts occupied slots of bucket i.
func (t *PackedTable) NumTagsInBucket(i uint) uint {
	var tags [4]uint32
	t.ReadBucket(i, &tags)
	var num uint
	for j := 0; j < tagsPerBucket; j++ {
		if tags[j] != 0 {
			num++
		}
	}
	return num
}
