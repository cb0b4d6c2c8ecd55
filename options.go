package cuckoofilter

// Option is a functional option for configuring filter construction.
type Option func(*filterConfig)

type filterConfig struct {
	bitsPerTag    uint
	bitsExplicit  bool
	packed        bool
	hasher        HashFamily
	maxKicks      int
	hugePages     bool
}

func defaultFilterConfig() *filterConfig {
	return &filterConfig{
		bitsPerTag: 12,
		maxKicks:   maxCuckooCount,
	}
}

// WithBitsPerTag sets the fingerprint width. Wider tags lower the false
// positive rate (roughly 8/2^b after load) and raise the per-item cost.
// The direct layout supports 1-32 bits; the packed layout supports
// 5, 6, 7, 8, 9, 13 and 17.
func WithBitsPerTag(bits uint) Option {
	return func(c *filterConfig) {
		c.bitsPerTag = bits
		c.bitsExplicit = true
	}
}

// WithPackedTable selects the semi-sorted bucket layout, which saves about
// one bit per stored item over the direct layout at a small insert cost.
// Unless WithBitsPerTag is given, the tag width defaults to 13.
func WithPackedTable() Option {
	return func(c *filterConfig) {
		c.packed = true
		if !c.bitsExplicit {
			c.bitsPerTag = 13
		}
	}
}

// WithHashFamily supplies the hash family instance. The default is a fresh
// TwoIndependentMultiplyShift.
func WithHashFamily(h HashFamily) Option {
	return func(c *filterConfig) {
		c.hasher = h
	}
}

// WithTabulationHashing uses simple tabulation hashing instead of
// multiply-shift. Stronger independence, 16 KiB of per-filter state.
func WithTabulationHashing() Option {
	return func(c *filterConfig) {
		c.hasher = NewSimpleTabulation()
	}
}

// WithMaxKicks sets the cuckoo eviction budget per insert.
func WithMaxKicks(n int) Option {
	return func(c *filterConfig) {
		c.maxKicks = n
	}
}

// WithHugePages asks the allocator to back bucket storage with 2 MiB huge
// pages where the platform supports it. Silently falls back to regular
// aligned allocation.
func WithHugePages() Option {
	return func(c *filterConfig) {
		c.hugePages = true
	}
}
