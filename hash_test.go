package cuckoofilter

import (
	"bytes"
	"testing"
)

func TestTwoIndependentMultiplyShiftDeterminism(t *testing.T) {
	h := NewTwoIndependentMultiplyShift()
	keys := []uint64{0, 1, 42, 1 << 63, ^uint64(0)}
	for _, key := range keys {
		if h.Hash(key) != h.Hash(key) {
			t.Fatalf("Hash(%d) not deterministic", key)
		}
	}
}

func TestTwoIndependentMultiplyShiftStateRoundTrip(t *testing.T) {
	h := NewTwoIndependentMultiplyShift()
	state, err := h.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if len(state) != h.StateSize() {
		t.Fatalf("state is %d bytes, StateSize says %d", len(state), h.StateSize())
	}

	var h2 TwoIndependentMultiplyShift
	if err := h2.UnmarshalBinary(state); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	for key := uint64(0); key < 10000; key++ {
		if h.Hash(key) != h2.Hash(key) {
			t.Fatalf("restored instance disagrees at key %d", key)
		}
	}

	state2, err := h2.MarshalBinary()
	if err != nil {
		t.Fatalf("re-marshal: %v", err)
	}
	if !bytes.Equal(state, state2) {
		t.Error("state round trip not byte-identical")
	}

	if err := h2.UnmarshalBinary(state[:10]); err == nil {
		t.Error("UnmarshalBinary accepted a truncated state")
	}
}

func TestSimpleTabulationStateRoundTrip(t *testing.T) {
	h := NewSimpleTabulation()
	state, err := h.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if len(state) != 16*1024 {
		t.Fatalf("tabulation state is %d bytes, want 16 KiB", len(state))
	}

	var h2 SimpleTabulation
	if err := h2.UnmarshalBinary(state); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	for key := uint64(0); key < 10000; key++ {
		k := key * 0x9E3779B97F4A7C15
		if h.Hash(k) != h2.Hash(k) {
			t.Fatalf("restored instance disagrees at key %#x", k)
		}
	}
}

// TestHashFamiliesSpread is a smoke test that both families actually mix:
// distinct consecutive keys should land in many distinct buckets.
func TestHashFamiliesSpread(t *testing.T) {
	families := []struct {
		name string
		h    HashFamily
	}{
		{"multiply-shift", NewTwoIndependentMultiplyShift()},
		{"tabulation", NewSimpleTabulation()},
	}
	for _, fam := range families {
		t.Run(fam.name, func(t *testing.T) {
			const n = 4096
			buckets := make(map[uint64]bool)
			for key := uint64(0); key < n; key++ {
				buckets[fam.h.Hash(key)>>52] = true
			}
			// 4096 keys over 4096 high-bit buckets: expect roughly
			// (1-1/e)*4096 occupied; far fewer means broken mixing.
			if len(buckets) < 2000 {
				t.Errorf("only %d distinct high-bit buckets for %d keys", len(buckets), n)
			}
		})
	}
}
