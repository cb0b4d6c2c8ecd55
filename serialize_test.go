package cuckoofilter

import (
	"bytes"
	goerrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/efficient/cuckoofilter/errors"
)

// restoreFilter marshals src and unmarshals into a freshly constructed
// filter with the same geometry.
func restoreFilter(t *testing.T, src *Filter, capacity uint64, opts ...Option) *Filter {
	t.Helper()
	data, err := src.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	dst := mustNewFilter(t, capacity, opts...)
	if err := dst.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	return dst
}

// TestFilterSerializeRoundTrip checks the restored filter answers exactly
// like the original, members and nonmembers alike, and re-marshals to the
// same bytes.
func TestFilterSerializeRoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		opts []Option
	}{
		{"single_b12", nil},
		{"packed_b13", []Option{WithPackedTable()}},
		{"tabulation", []Option{WithTabulationHashing()}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			const capacity = 8192
			src := mustNewFilter(t, capacity, tc.opts...)

			// Load to saturation so the victim cache state serializes too.
			for key := uint64(0); ; key++ {
				if src.Add(key) != Ok {
					break
				}
			}

			dst := restoreFilter(t, src, capacity, tc.opts...)
			if dst.Size() != src.Size() {
				t.Fatalf("restored Size = %d, want %d", dst.Size(), src.Size())
			}

			for key := uint64(0); key < 100000; key++ {
				if src.Contain(key) != dst.Contain(key) {
					t.Fatalf("restored filter disagrees at key %d", key)
				}
			}

			// Saturated source refuses inserts; so must the restore.
			if status := dst.Add(1 << 40); status != NotEnoughSpace {
				t.Fatalf("restored saturated filter Add = %v", status)
			}

			a, err := src.MarshalBinary()
			if err != nil {
				t.Fatal(err)
			}
			b, err := dst.MarshalBinary()
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(a, b) {
				t.Error("round trip not byte-identical")
			}
		})
	}
}

func TestFilterUnmarshalShapeMismatch(t *testing.T) {
	src := mustNewFilter(t, 1024)
	data, err := src.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	bigger := mustNewFilter(t, 65536)
	if err := bigger.UnmarshalBinary(data); !goerrors.Is(err, errors.ErrShapeMismatch) {
		t.Errorf("mismatched geometry: err = %v, want ErrShapeMismatch", err)
	}
	same := mustNewFilter(t, 1024)
	if err := same.UnmarshalBinary(data[:len(data)-1]); !goerrors.Is(err, errors.ErrShapeMismatch) {
		t.Errorf("truncated payload: err = %v, want ErrShapeMismatch", err)
	}
}

func TestShingleSerializeRoundTrip(t *testing.T) {
	const capacity = 8192
	src := mustNewShingle(t, capacity)
	for key := uint64(0); key < 6000; key++ {
		if src.Add(key) != Ok {
			t.Fatalf("Add(%d) failed", key)
		}
	}

	data, err := src.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	dst := mustNewShingle(t, capacity)
	if err := dst.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}

	if dst.Size() != src.Size() {
		t.Fatalf("restored Size = %d, want %d", dst.Size(), src.Size())
	}
	for key := uint64(0); key < 50000; key++ {
		if src.Contain(key) != dst.Contain(key) {
			t.Fatalf("restored shingle disagrees at key %d", key)
		}
	}
}

func TestSaveLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filter.ckf")

	src := mustNewFilter(t, 4096)
	for key := uint64(0); key < 3000; key++ {
		if src.Add(key) != Ok {
			t.Fatalf("Add(%d) failed", key)
		}
	}
	if err := SaveFile(path, src); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	dst := mustNewFilter(t, 4096)
	if err := LoadFile(path, dst); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	for key := uint64(0); key < 20000; key++ {
		if src.Contain(key) != dst.Contain(key) {
			t.Fatalf("loaded filter disagrees at key %d", key)
		}
	}
}

func TestLoadFileCorruption(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "filter.ckf")

	src := mustNewFilter(t, 1024)
	for key := uint64(0); key < 500; key++ {
		src.Add(key)
	}
	if err := SaveFile(path, src); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	img, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("bad_magic", func(t *testing.T) {
		bad := append([]byte(nil), img...)
		bad[0] ^= 0xFF
		dst := mustNewFilter(t, 1024)
		if err := LoadBytes(bad, dst); !goerrors.Is(err, errors.ErrInvalidMagic) {
			t.Errorf("err = %v, want ErrInvalidMagic", err)
		}
	})

	t.Run("bad_version", func(t *testing.T) {
		bad := append([]byte(nil), img...)
		bad[4] = 0xFF
		dst := mustNewFilter(t, 1024)
		if err := LoadBytes(bad, dst); !goerrors.Is(err, errors.ErrInvalidVersion) {
			t.Errorf("err = %v, want ErrInvalidVersion", err)
		}
	})

	t.Run("flipped_payload_byte", func(t *testing.T) {
		bad := append([]byte(nil), img...)
		bad[fileHeaderSize+100] ^= 0x01
		dst := mustNewFilter(t, 1024)
		if err := LoadBytes(bad, dst); !goerrors.Is(err, errors.ErrChecksumFailed) {
			t.Errorf("err = %v, want ErrChecksumFailed", err)
		}
	})

	t.Run("truncated", func(t *testing.T) {
		dst := mustNewFilter(t, 1024)
		if err := LoadBytes(img[:len(img)-4], dst); !goerrors.Is(err, errors.ErrTruncatedFile) {
			t.Errorf("err = %v, want ErrTruncatedFile", err)
		}
		if err := LoadBytes(img[:8], dst); !goerrors.Is(err, errors.ErrTruncatedFile) {
			t.Errorf("short header: err = %v, want ErrTruncatedFile", err)
		}
	})

	t.Run("wrong_geometry", func(t *testing.T) {
		dst := mustNewFilter(t, 65536)
		if err := LoadBytes(img, dst); !goerrors.Is(err, errors.ErrShapeMismatch) {
			t.Errorf("err = %v, want ErrShapeMismatch", err)
		}
	})
}
