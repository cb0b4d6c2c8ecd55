package cuckoofilter

import (
	"fmt"
	"unsafe"

	"github.com/efficient/cuckoofilter/errors"
	"github.com/efficient/cuckoofilter/internal/alloc"
)

// SimdBlockFilter is a block Bloom filter (Putze et al., "Cache-, Hash-
// and Space-Efficient Bloom Filters") where each 256-bit block is a split
// Bloom filter: one bit set per 32-bit lane per insert, so every operation
// touches exactly one cache line and vectorizes to a handful of AVX2
// instructions. Lookups are faster than a cuckoo filter's; there is no
// delete and no hard capacity, the false-positive rate simply rises as
// blocks saturate.
type SimdBlockFilter struct {
	logNumBuckets int
	directoryMask uint32

	buf       *alloc.Buffer
	directory []block

	hasher HashFamily
}

// block is one 256-bit bucket, eight 32-bit lanes.
type block [8]uint32

// logBlockByteSize is log2 of the bytes in a block.
const logBlockByteSize = 5

// blockSalts are the odd multiply-shift constants that pick one bit per
// lane from a 32-bit hash.
var blockSalts = block{
	0x47b6137b, 0x44974d91, 0x8824ad5b, 0xa2b7289d,
	0x705495c7, 0x2df1424b, 0x9efc4947, 0x5c6bfb31,
}

// insertGeneric sets one salted bit per lane. The unrolled form compiles
// to branch-free code and is the portable fallback for the AVX2 path.
func (b *block) insertGeneric(h uint32) {
	b[0] |= 1 << ((h * blockSalts[0]) >> 27)
	b[1] |= 1 << ((h * blockSalts[1]) >> 27)
	b[2] |= 1 << ((h * blockSalts[2]) >> 27)
	b[3] |= 1 << ((h * blockSalts[3]) >> 27)
	b[4] |= 1 << ((h * blockSalts[4]) >> 27)
	b[5] |= 1 << ((h * blockSalts[5]) >> 27)
	b[6] |= 1 << ((h * blockSalts[6]) >> 27)
	b[7] |= 1 << ((h * blockSalts[7]) >> 27)
}

// checkGeneric reports whether every salted bit is set.
func (b *block) checkGeneric(h uint32) bool {
	return b[0]&(1<<((h*blockSalts[0])>>27)) != 0 &&
		b[1]&(1<<((h*blockSalts[1])>>27)) != 0 &&
		b[2]&(1<<((h*blockSalts[2])>>27)) != 0 &&
		b[3]&(1<<((h*blockSalts[3])>>27)) != 0 &&
		b[4]&(1<<((h*blockSalts[4])>>27)) != 0 &&
		b[5]&(1<<((h*blockSalts[5])>>27)) != 0 &&
		b[6]&(1<<((h*blockSalts[6])>>27)) != 0 &&
		b[7]&(1<<((h*blockSalts[7])>>27)) != 0
}

// NewSimdBlockFilter creates a filter consuming 1<<logHeapSpace bytes, but
// never fewer than two 32-byte buckets (64 bytes). The same Options as the cuckoo filter apply where they make
// sense (hash family, huge pages); table-layout options are ignored.
func NewSimdBlockFilter(logHeapSpace int, opts ...Option) (*SimdBlockFilter, error) {
	if logHeapSpace < 0 || logHeapSpace > 62 {
		return nil, fmt.Errorf("%w: log heap space %d", errors.ErrZeroCapacity, logHeapSpace)
	}
	cfg := defaultFilterConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.hasher == nil {
		cfg.hasher = NewTwoIndependentMultiplyShift()
	}

	logNumBuckets := max(1, logHeapSpace-logBlockByteSize)
	numBuckets := 1 << logNumBuckets
	buf := alloc.New(numBuckets<<logBlockByteSize, cfg.hugePages)
	directory := unsafe.Slice((*block)(unsafe.Pointer(unsafe.SliceData(buf.Bytes()))), numBuckets)

	return &SimdBlockFilter{
		logNumBuckets: logNumBuckets,
		directoryMask: uint32(numBuckets - 1),
		buf:           buf,
		directory:     directory,
		hasher:        cfg.hasher,
	}, nil
}

// Close releases the directory. The filter must not be used after Close.
func (f *SimdBlockFilter) Close() error {
	f.directory = nil
	return f.buf.Free()
}

// Add inserts a key. Always succeeds; saturation only raises the
// false-positive rate.
func (f *SimdBlockFilter) Add(key uint64) Status {
	hash := f.hasher.Hash(key)
	bucketIdx := uint32(hash) & f.directoryMask
	blockInsert(&f.directory[bucketIdx], uint32(hash>>uint(f.logNumBuckets)))
	return Ok
}

// Find reports whether the key is (probably) in the filter.
func (f *SimdBlockFilter) Find(key uint64) bool {
	hash := f.hasher.Hash(key)
	bucketIdx := uint32(hash) & f.directoryMask
	return blockCheck(&f.directory[bucketIdx], uint32(hash>>uint(f.logNumBuckets)))
}

// Contain is Find under the name the other filters use.
func (f *SimdBlockFilter) Contain(key uint64) bool { return f.Find(key) }

// SizeInBytes returns the directory size.
func (f *SimdBlockFilter) SizeInBytes() uint64 {
	return uint64(len(f.directory)) << logBlockByteSize
}

// BlockStats holds SIMD block filter statistics.
type BlockStats struct {
	NumBuckets  int
	SizeInBytes uint64
	AVX2        bool
}

// Stats returns a snapshot of the filter's statistics.
func (f *SimdBlockFilter) Stats() BlockStats {
	return BlockStats{
		NumBuckets:  len(f.directory),
		SizeInBytes: f.SizeInBytes(),
		AVX2:        blockUsesAVX2,
	}
}

// Info returns human-readable diagnostics.
func (f *SimdBlockFilter) Info() string {
	return fmt.Sprintf("SimdBlockFilter Status:\n"+
		"\t\tBuckets: %d x 256 bits\n"+
		"\t\tDirectory size: %d KB\n"+
		"\t\tAVX2: %v\n",
		len(f.directory), f.SizeInBytes()>>10, blockUsesAVX2)
}
