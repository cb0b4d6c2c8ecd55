//go:build linux

package alloc

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// mapHuge maps size bytes (a multiple of the huge page size) backed by
// 2 MiB huge pages. Returns nil if the kernel refuses (no hugetlb pool
// configured, permissions, or exhaustion) so callers can fall back.
// Anonymous mappings are zero-filled by the kernel.
func mapHuge(size int) []byte {
	m, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_HUGETLB)
	if err != nil {
		return nil
	}
	return m
}

func unmapHuge(m []byte) error {
	return unix.Munmap(m)
}

func addrOf(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}
