//go:build purego || !amd64

package cuckoofilter

// Scalar-only platforms; the unrolled generic routines are the whole
// implementation.
const blockUsesAVX2 = false

func blockInsert(b *block, hash uint32) {
	b.insertGeneric(hash)
}

func blockCheck(b *block, hash uint32) bool {
	return b.checkGeneric(hash)
}
