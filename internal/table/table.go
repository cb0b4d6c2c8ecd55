// Package table implements the bit-packed bucket stores behind the cuckoo
// filter: a direct layout (SingleTable) and a permutation-encoded layout
// (PackedTable) that semi-sorts each bucket to save roughly one bit per slot.
//
// Both layouts hold four tags per bucket and share the Table contract. Slot
// order is meaningless in a SingleTable; a PackedTable canonicalizes slot
// order (sorted by low nibble) on every write. Tag value 0 marks an empty
// slot everywhere.
package table

import "math/rand/v2"

// tagsPerBucket is the bucket associativity. The SWAR find paths and the
// permutation encoding are both specialized for four slots.
const tagsPerBucket = 4

// Table is the bucket-level storage contract the cuckoo filter drives.
// Implementations are not safe for concurrent mutation.
type Table interface {
	// NumBuckets returns the number of logical buckets. Always a power of 2.
	NumBuckets() uint

	// BitsPerTag returns the configured tag width.
	BitsPerTag() uint

	// SizeInBytes returns the bucket storage size. SingleTable excludes its
	// tail padding buckets; PackedTable includes its 7 trailing bytes.
	SizeInBytes() uint64

	// SizeInTags returns the total number of slots.
	SizeInTags() uint64

	// FindTagInBucket reports whether tag occupies any slot of bucket i.
	FindTagInBucket(i uint, tag uint32) bool

	// FindTagInBuckets reports whether tag occupies any slot of bucket i1
	// or bucket i2.
	FindTagInBuckets(i1, i2 uint, tag uint32) bool

	// DeleteTagFromBucket clears the first slot of bucket i holding tag.
	// Returns false if no slot matches.
	DeleteTagFromBucket(i uint, tag uint32) bool

	// InsertTagToBucket writes tag into the first empty slot of bucket i
	// and returns (true, 0). If the bucket is full and kickout is set, a
	// uniformly random slot is overwritten and its previous tag returned
	// with inserted == false. If the bucket is full and kickout is unset,
	// the bucket is left unmodified.
	InsertTagToBucket(i uint, tag uint32, kickout bool) (inserted bool, oldTag uint32)

	// NumTagsInBucket counts the occupied slots of bucket i.
	NumTagsInBucket(i uint) uint

	// Bytes exposes the raw bucket storage, including tail padding, for
	// byte-identical serialization.
	Bytes() []byte

	// Info returns a human-readable description of the layout.
	Info() string

	// Close releases the bucket storage.
	Close() error
}

// randSlot picks a uniformly random slot index for an eviction.
func randSlot(rng *rand.Rand) uint {
	return uint(rng.IntN(tagsPerBucket))
}
