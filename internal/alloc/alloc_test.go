package alloc

import "testing"

func TestNewAlignmentAndZeroing(t *testing.T) {
	sizes := []int{1, 63, 64, 65, 4096, 1 << 16, 1<<20 + 3}
	for _, size := range sizes {
		buf := New(size, false)
		data := buf.Bytes()
		if len(data) != size {
			t.Fatalf("size %d: got len %d", size, len(data))
		}
		if addrOf(data)%alignment != 0 {
			t.Errorf("size %d: buffer not %d-byte aligned", size, alignment)
		}
		for i, b := range data {
			if b != 0 {
				t.Fatalf("size %d: byte %d not zeroed", size, i)
			}
		}
		if err := buf.Free(); err != nil {
			t.Errorf("size %d: Free: %v", size, err)
		}
	}
}

func TestNewHugePagesFallsBack(t *testing.T) {
	// 2 MiB request: rounding waste is zero, so the huge-page path is
	// attempted; whether or not the kernel grants it, the buffer must
	// come back usable, zeroed, and aligned.
	buf := New(1<<21, true)
	data := buf.Bytes()
	if len(data) != 1<<21 {
		t.Fatalf("got len %d", len(data))
	}
	if addrOf(data)%alignment != 0 {
		t.Error("buffer not aligned")
	}
	data[0] = 1
	data[len(data)-1] = 2
	if err := buf.Free(); err != nil {
		t.Errorf("Free: %v", err)
	}
}

func TestNewSmallSizeSkipsHugePages(t *testing.T) {
	// Tail waste on a small request is far above the 5% limit, so huge
	// pages must not be used even when requested.
	buf := New(4096, true)
	if buf.mapped != nil {
		t.Error("small allocation unexpectedly used huge pages")
	}
	buf.Free()
}

func TestNewZeroSize(t *testing.T) {
	buf := New(0, false)
	if len(buf.Bytes()) != 0 {
		t.Errorf("got len %d, want 0", len(buf.Bytes()))
	}
	buf.Free()
}
