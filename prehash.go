package cuckoofilter

import "github.com/zeebo/xxh3"

// PreHash collapses an arbitrary byte key to the 64-bit key space the
// filters operate on, using xxHash3. The filters' own hash families assume
// uniformly distributed 64-bit inputs only in the sense that they re-hash;
// PreHash exists so string-ish keys (URLs, paths, serialized IDs) can use
// the same API without the caller picking a hash.
//
// A filter queried with PreHash must also have been populated with PreHash;
// mixing raw and pre-hashed keys produces disjoint key spaces.
func PreHash(key []byte) uint64 {
	return xxh3.Hash(key)
}

// PreHashString is PreHash for strings without a []byte conversion
// allocation.
func PreHashString(key string) uint64 {
	return xxh3.HashString(key)
}

// AddBytes inserts a byte key via PreHash.
func (f *Filter) AddBytes(key []byte) Status {
	return f.Add(PreHash(key))
}

// ContainBytes queries a byte key via PreHash.
func (f *Filter) ContainBytes(key []byte) bool {
	return f.Contain(PreHash(key))
}

// DeleteBytes removes a byte key via PreHash.
func (f *Filter) DeleteBytes(key []byte) Status {
	return f.Delete(PreHash(key))
}
