package table

// Permutation encoding for semi-sorted buckets. The four low nibbles of a
// bucket form an unordered multiset over {0..15}; there are C(16+4-1, 4) =
// 3876 such multisets, so 12 bits identify one. The encoder canonicalizes
// (sorts) before looking up, which is what makes the savings legal: slot
// order inside a bucket carries no information.
//
// The packed 16-bit form interleaves the four nibbles as (a, c, b, d) —
// nibble 0 at bits 0-3, nibble 2 at bits 4-7, nibble 1 at bits 8-11,
// nibble 3 at bits 12-15. Encode and decode must agree on this order, and
// the PackedTable read path depends on it when splicing low nibbles back
// under the direct bits.

// permEntries is the number of canonical codewords: C(19, 4).
const permEntries = 3876

type permEncoding struct {
	// decTable maps a codeword to the packed canonical low-nibble tuple.
	decTable [permEntries]uint16
	// encTable maps any packed low-nibble tuple (canonical or not) to the
	// codeword of its sorted equivalent.
	encTable [1 << 16]uint16
}

// perm is shared by every PackedTable. The tables are immutable once built.
var perm = newPermEncoding()

func newPermEncoding() *permEncoding {
	p := &permEncoding{}

	// Enumerate all non-decreasing 4-tuples over {0..15} in lexicographic
	// order; the enumeration index is the codeword.
	var dst [4]uint8
	idx := uint16(0)
	var gen func(base, k int)
	gen = func(base, k int) {
		for i := base; i < 16; i++ {
			dst[k] = uint8(i)
			if k+1 < tagsPerBucket {
				gen(i, k+1)
			} else {
				packed := packLowBits(dst)
				p.decTable[idx] = packed
				p.encTable[packed] = idx
				idx++
			}
		}
	}
	gen(0, 0)

	// Route every non-canonical tuple to its sorted equivalent so encode
	// never depends on the caller having sorted first.
	for v := 0; v < 1<<16; v++ {
		tuple := unpackLowBits(uint16(v))
		sorted := tuple
		sortNibbles(&sorted)
		canonical := packLowBits(sorted)
		if canonical != uint16(v) {
			p.encTable[v] = p.encTable[canonical]
		}
	}
	return p
}

// packLowBits lays four nibbles into 16 bits in (a, c, b, d) order.
func packLowBits(in [4]uint8) uint16 {
	return uint16(in[0]&0x0f) |
		uint16(in[2]&0x0f)<<4 |
		uint16(in[1]&0x0f)<<8 |
		uint16(in[3]&0x0f)<<12
}

// unpackLowBits is the inverse of packLowBits.
func unpackLowBits(v uint16) [4]uint8 {
	return [4]uint8{
		uint8(v & 0x000f),
		uint8((v >> 8) & 0x000f),
		uint8((v >> 4) & 0x000f),
		uint8((v >> 12) & 0x000f),
	}
}

// sortNibbles sorts a 4-tuple in place with a 5-comparator network.
func sortNibbles(t *[4]uint8) {
	swapIfGreater := func(a, b *uint8) {
		if *a > *b {
			*a, *b = *b, *a
		}
	}
	swapIfGreater(&t[0], &t[2])
	swapIfGreater(&t[1], &t[3])
	swapIfGreater(&t[0], &t[1])
	swapIfGreater(&t[2], &t[3])
	swapIfGreater(&t[1], &t[2])
}

// encode returns the codeword for the given low-nibble tuple.
func (p *permEncoding) encode(lowBits [4]uint8) uint16 {
	return p.encTable[packLowBits(lowBits)]
}

// decode recovers the canonical low-nibble tuple for a codeword.
func (p *permEncoding) decode(codeword uint16) [4]uint8 {
	return unpackLowBits(p.decTable[codeword])
}
