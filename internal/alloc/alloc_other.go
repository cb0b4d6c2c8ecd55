//go:build !linux

package alloc

import "unsafe"

// Huge pages are a Linux-only optimization; elsewhere New always uses the
// regular aligned path.
func mapHuge(size int) []byte { return nil }

func unmapHuge(m []byte) error { return nil }

func addrOf(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}
