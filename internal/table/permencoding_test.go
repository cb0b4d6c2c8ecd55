package table

import (
	"sort"
	"testing"
)

// TestPermEncodingBijection verifies enc/dec are inverses on all canonical
// codewords and that the decoded tuples are distinct and sorted.
func TestPermEncodingBijection(t *testing.T) {
	seen := make(map[uint16]bool, permEntries)
	for cw := uint16(0); cw < permEntries; cw++ {
		packed := perm.decTable[cw]
		if seen[packed] {
			t.Fatalf("codeword %d: duplicate decoded tuple %#x", cw, packed)
		}
		seen[packed] = true

		tuple := unpackLowBits(packed)
		for j := 0; j < 3; j++ {
			if tuple[j] > tuple[j+1] {
				t.Fatalf("codeword %d: decoded tuple %v not non-decreasing", cw, tuple)
			}
		}

		if got := perm.encTable[packed]; got != cw {
			t.Fatalf("enc(dec(%d)) = %d", cw, got)
		}
	}
	if len(seen) != permEntries {
		t.Fatalf("expected %d distinct codewords, got %d", permEntries, len(seen))
	}
}

// TestPermEncodingSortInvariance verifies every packed tuple encodes to the
// codeword of its sorted equivalent.
func TestPermEncodingSortInvariance(t *testing.T) {
	for v := 0; v < 1<<16; v++ {
		tuple := unpackLowBits(uint16(v))
		sorted := tuple
		sort.Slice(sorted[:], func(i, j int) bool { return sorted[i] < sorted[j] })

		if got, want := perm.encode(tuple), perm.encode(sorted); got != want {
			t.Fatalf("encode(%v) = %d, encode(sorted %v) = %d", tuple, got, sorted, want)
		}
		if cw := perm.encode(tuple); cw >= permEntries {
			t.Fatalf("encode(%v) = %d out of range", tuple, cw)
		}
	}
}

// TestPermEncodingRoundTrip verifies decode(encode(x)) is the sorted x.
func TestPermEncodingRoundTrip(t *testing.T) {
	cases := [][4]uint8{
		{0, 0, 0, 0},
		{15, 15, 15, 15},
		{1, 2, 3, 4},
		{4, 3, 2, 1},
		{7, 0, 15, 3},
		{9, 9, 1, 9},
	}
	for _, in := range cases {
		got := perm.decode(perm.encode(in))
		want := in
		sort.Slice(want[:], func(i, j int) bool { return want[i] < want[j] })
		if got != want {
			t.Errorf("decode(encode(%v)) = %v, want %v", in, got, want)
		}
	}
}

func TestSortNibblesNetwork(t *testing.T) {
	for a := 0; a < 16; a++ {
		for b := 0; b < 16; b++ {
			for c := 0; c < 16; c++ {
				for d := 0; d < 16; d++ {
					tuple := [4]uint8{uint8(a), uint8(b), uint8(c), uint8(d)}
					sortNibbles(&tuple)
					for j := 0; j < 3; j++ {
						if tuple[j] > tuple[j+1] {
							t.Fatalf("sortNibbles(%d,%d,%d,%d) = %v", a, b, c, d, tuple)
						}
					}
				}
			}
		}
	}
}
