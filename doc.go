// Package cuckoofilter implements approximate set-membership filters:
// probabilistic structures that answer "is x in the set?" with no false
// negatives and a bounded false-positive rate, in far less space than the
// keys themselves.
//
// # Filters
//
// Three engines share one surface (Add / Contain / SizeInBytes / Info /
// Stats); Filter and Shingle also provide Delete and Size:
//
//   - Filter is a partial-key cuckoo filter: 4-slot buckets of short
//     fingerprints with two candidate buckets per key and a one-slot
//     victim cache. Supports deletion. Typically 12-17 bits per item at
//     95%+ occupancy. The bucket store is either a direct layout or a
//     semi-sorted "packed" layout (WithPackedTable) that saves about one
//     bit per item via permutation encoding.
//   - SimdBlockFilter is a split block Bloom filter with 256-bit blocks
//     and one bit set per 32-bit lane. Fastest lookups, no deletion, no
//     hard capacity.
//   - Shingle overlaps adjacent buckets for higher load factors. Supports
//     deletion.
//
// # Basic usage
//
//	f, err := cuckoofilter.NewFilter(1_000_000)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer f.Close()
//
//	f.Add(42)
//	if f.Contain(42) {
//	    // present (always true for added keys)
//	}
//	f.Delete(42)
//
// Byte keys go through PreHash (or the *Bytes convenience methods):
//
//	f.AddBytes([]byte("example.com/path"))
//
// # Package structure
//
//   - Public API: filter.go, simdblock.go, shingle.go, status.go
//   - Hashing: hash.go (HashFamily contract and implementations),
//     prehash.go (byte keys)
//   - Configuration: options.go (Option, With* functions)
//   - Serialization: serialize.go (wire format), header.go and file.go
//     (checked on-disk framing)
//   - Bucket stores: internal/table, internal/bits (SWAR probes),
//     internal/alloc (aligned and huge-page allocation)
//
// Filters are single-owner. A filter built once and no longer written may
// be queried from any number of goroutines; no method tolerates a
// concurrent writer.
package cuckoofilter
