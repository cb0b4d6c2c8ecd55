// Package alloc provides zeroed, 64-byte-aligned buffers for bucket storage.
//
// Alignment serves two purposes: bucket arrays line up with cache-line
// boundaries, and the SWAR find routines may issue unaligned 64-bit reads
// that must stay within one owned region. On Linux the allocator prefers
// 2 MiB huge pages when the rounding waste is small, which cuts dTLB misses
// substantially on large filters; everywhere else (and whenever the huge
// page mapping fails) it falls back to an aligned slice from the Go heap.
package alloc

const alignment = 64

// hugePageSize is the conventional x86-64 huge page size (2 MiB).
const hugePageSize = 1 << 21

// overageLimit is how much wiggle room there is on allocating more memory
// than specifically requested when rounding up to a whole huge page.
const overageLimit = 0.05

// Buffer is a zeroed, 64-byte-aligned allocation. The zero value is not
// usable; obtain one from New.
type Buffer struct {
	data   []byte
	mapped []byte // non-nil when backed by an anonymous huge-page mapping
}

// New allocates a zeroed buffer of exactly size bytes, aligned to 64 bytes.
// When hugePages is set and the platform supports it, the buffer may be
// backed by 2 MiB huge pages; the mapping is attempted only when the tail
// waste from rounding up stays under 5%, and any mmap failure falls back
// to the regular aligned path.
func New(size int, hugePages bool) *Buffer {
	if size <= 0 {
		return &Buffer{data: []byte{}}
	}
	if hugePages {
		overage := float64((hugePageSize-size%hugePageSize)%hugePageSize) / float64(size)
		if overage < overageLimit {
			rounded := (size + hugePageSize - 1) / hugePageSize * hugePageSize
			if m := mapHuge(rounded); m != nil {
				return &Buffer{data: m[:size], mapped: m}
			}
		}
	}
	raw := make([]byte, size+alignment-1)
	off := 0
	if r := addrOf(raw) % alignment; r != 0 {
		off = alignment - int(r)
	}
	return &Buffer{data: raw[off : off+size : off+size]}
}

// Bytes returns the aligned buffer. Its length is exactly the size passed
// to New and its contents start out zeroed.
func (b *Buffer) Bytes() []byte { return b.data }

// Free releases the buffer. For huge-page mappings this unmaps the region
// immediately; heap-backed buffers are left to the garbage collector.
// The buffer must not be used after Free.
func (b *Buffer) Free() error {
	mapped := b.mapped
	b.data, b.mapped = nil, nil
	if mapped != nil {
		return unmapHuge(mapped)
	}
	return nil
}
