package table

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"

	"github.com/efficient/cuckoofilter/internal/alloc"
	intbits "github.com/efficient/cuckoofilter/internal/bits"
)

// SingleTable is the direct layout: num buckets of four tags each, packed
// back to back into one byte array. All multi-byte access is little-endian.
type SingleTable struct {
	bitsPerTag     uint
	tagMask        uint32
	bytesPerBucket uint
	numBuckets     uint

	buf  *alloc.Buffer
	data []byte

	rng *rand.Rand
}

// NewSingleTable allocates a zeroed table of num buckets holding tags of
// bitsPerTag bits. num must be a power of 2. The tail is padded so the SWAR
// find paths can always read a full 64-bit word at any bucket's offset.
func NewSingleTable(num uint, bitsPerTag uint, hugePages bool, rng *rand.Rand) *SingleTable {
	bytesPerBucket := (bitsPerTag*tagsPerBucket + 7) >> 3
	paddingBuckets := ((bytesPerBucket+7)/8*8 - 1) / bytesPerBucket
	buf := alloc.New(int(bytesPerBucket*(num+paddingBuckets)), hugePages)
	return &SingleTable{
		bitsPerTag:     bitsPerTag,
		tagMask:        uint32(1)<<bitsPerTag - 1,
		bytesPerBucket: bytesPerBucket,
		numBuckets:     num,
		buf:            buf,
		data:           buf.Bytes(),
		rng:            rng,
	}
}

func (t *SingleTable) NumBuckets() uint { return t.numBuckets }

func (t *SingleTable) BitsPerTag() uint { return t.bitsPerTag }

func (t *SingleTable) SizeInBytes() uint64 {
	return uint64(t.bytesPerBucket) * uint64(t.numBuckets)
}

func (t *SingleTable) SizeInTags() uint64 {
	return tagsPerBucket * uint64(t.numBuckets)
}

func (t *SingleTable) Bytes() []byte { return t.data }

func (t *SingleTable) Info() string {
	return fmt.Sprintf("SingleHashtable with tag size: %d bits\n"+
		"\t\tAssociativity: %d\n"+
		"\t\tTotal # of rows: %d\n"+
		"\t\tTotal # slots: %d\n",
		t.bitsPerTag, tagsPerBucket, t.numBuckets, t.SizeInTags())
}

func (t *SingleTable) Close() error {
	t.data = nil
	return t.buf.Free()
}

// ReadTag extracts the j-th tag of bucket i.
func (t *SingleTable) ReadTag(i, j uint) uint32 {
	p := i * t.bytesPerBucket
	var tag uint32
	switch t.bitsPerTag {
	case 2:
		tag = uint32(t.data[p]) >> (j * 2)
	case 4:
		p += j >> 1
		tag = uint32(t.data[p]) >> ((j & 1) << 2)
	case 8:
		tag = uint32(t.data[p+j])
	case 12:
		p += j + (j >> 1)
		tag = uint32(binary.LittleEndian.Uint16(t.data[p:])) >> ((j & 1) << 2)
	case 16:
		tag = uint32(binary.LittleEndian.Uint16(t.data[p+j*2:]))
	case 32:
		tag = binary.LittleEndian.Uint32(t.data[p+j*4:])
	default:
		tag = t.readTagGeneric(p, j)
	}
	return tag & t.tagMask
}

// readTagGeneric handles widths without a specialized layout by assembling
// the field byte by byte.
func (t *SingleTable) readTagGeneric(p, j uint) uint32 {
	bitPos := j * t.bitsPerTag
	p += bitPos >> 3
	shift := bitPos & 7
	var v uint64
	for k := uint(0); k < (shift+t.bitsPerTag+7)/8; k++ {
		v |= uint64(t.data[p+k]) << (k * 8)
	}
	return uint32(v >> shift)
}

// WriteTag stores tag as the j-th tag of bucket i, clearing the field first.
func (t *SingleTable) WriteTag(i, j uint, tag uint32) {
	p := i * t.bytesPerBucket
	tag &= t.tagMask
	switch t.bitsPerTag {
	case 2:
		shift := 2 * j
		t.data[p] = t.data[p]&^(0x03<<shift) | byte(tag<<shift)
	case 4:
		p += j >> 1
		if j&1 == 0 {
			t.data[p] = t.data[p]&0xf0 | byte(tag)
		} else {
			t.data[p] = t.data[p]&0x0f | byte(tag<<4)
		}
	case 8:
		t.data[p+j] = byte(tag)
	case 12:
		p += j + (j >> 1)
		v := binary.LittleEndian.Uint16(t.data[p:])
		if j&1 == 0 {
			v = v&0xf000 | uint16(tag)
		} else {
			v = v&0x000f | uint16(tag<<4)
		}
		binary.LittleEndian.PutUint16(t.data[p:], v)
	case 16:
		binary.LittleEndian.PutUint16(t.data[p+j*2:], uint16(tag))
	case 32:
		binary.LittleEndian.PutUint32(t.data[p+j*4:], tag)
	default:
		t.writeTagGeneric(p, j, tag)
	}
}

func (t *SingleTable) writeTagGeneric(p, j uint, tag uint32) {
	bitPos := j * t.bitsPerTag
	p += bitPos >> 3
	shift := bitPos & 7
	v := uint64(tag) << shift
	mask := uint64(t.tagMask) << shift
	for k := uint(0); k < (shift+t.bitsPerTag+7)/8; k++ {
		t.data[p+k] = t.data[p+k]&^byte(mask>>(k*8)) | byte(v>>(k*8))
	}
}

// bucketWord reads the 64-bit little-endian word at bucket i's offset. The
// read may extend past the last logical bucket; the tail padding keeps it
// in bounds.
func (t *SingleTable) bucketWord(i uint) uint64 {
	return binary.LittleEndian.Uint64(t.data[i*t.bytesPerBucket:])
}

// FindTagInBucket searches all four slots of bucket i in parallel for the
// canonical widths, falling back to a slot loop otherwise.
func (t *SingleTable) FindTagInBucket(i uint, tag uint32) bool {
	switch t.bitsPerTag {
	case 4:
		return intbits.HasValue4(t.bucketWord(i), tag)
	case 8:
		return intbits.HasValue8(t.bucketWord(i), tag)
	case 12:
		return intbits.HasValue12(t.bucketWord(i), tag)
	case 16:
		return intbits.HasValue16(t.bucketWord(i), tag)
	default:
		for j := uint(0); j < tagsPerBucket; j++ {
			if t.ReadTag(i, j) == tag {
				return true
			}
		}
		return false
	}
}

// FindTagInBuckets searches both candidate buckets with one SWAR test each.
func (t *SingleTable) FindTagInBuckets(i1, i2 uint, tag uint32) bool {
	switch t.bitsPerTag {
	case 4:
		return intbits.HasValue4(t.bucketWord(i1), tag) || intbits.HasValue4(t.bucketWord(i2), tag)
	case 8:
		return intbits.HasValue8(t.bucketWord(i1), tag) || intbits.HasValue8(t.bucketWord(i2), tag)
	case 12:
		return intbits.HasValue12(t.bucketWord(i1), tag) || intbits.HasValue12(t.bucketWord(i2), tag)
	case 16:
		return intbits.HasValue16(t.bucketWord(i1), tag) || intbits.HasValue16(t.bucketWord(i2), tag)
	default:
		for j := uint(0); j < tagsPerBucket; j++ {
			if t.ReadTag(i1, j) == tag || t.ReadTag(i2, j) == tag {
				return true
			}
		}
		return false
	}
}

// DeleteTagFromBucket clears the first slot holding tag.
func (t *SingleTable) DeleteTagFromBucket(i uint, tag uint32) bool {
	for j := uint(0); j < tagsPerBucket; j++ {
		if t.ReadTag(i, j) == tag {
			t.WriteTag(i, j, 0)
			return true
		}
	}
	return false
}

// InsertTagToBucket implements the Table insert contract.
func (t *SingleTable) InsertTagToBucket(i uint, tag uint32, kickout bool) (bool, uint32) {
	for j := uint(0); j < tagsPerBucket; j++ {
		if t.ReadTag(i, j) == 0 {
			t.WriteTag(i, j, tag)
			return true, 0
		}
	}
	if kickout {
		r := randSlot(t.rng)
		oldTag := t.ReadTag(i, r)
		t.WriteTag(i, r, tag)
		return false, oldTag
	}
	return false, 0
}

// NumTagsInBucket counts occupied slots of bucket i.
func (t *SingleTable) NumTagsInBucket(i uint) uint {
	var num uint
	for j := uint(0); j < tagsPerBucket; j++ {
		if t.ReadTag(i, j) != 0 {
			num++
		}
	}
	return num
}
