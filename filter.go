package cuckoofilter

import (
	"fmt"
	"math/rand/v2"

	"github.com/efficient/cuckoofilter/errors"
	"github.com/efficient/cuckoofilter/internal/bits"
	"github.com/efficient/cuckoofilter/internal/table"
)

// maxCuckooCount is the default number of cuckoo kicks before an insert
// gives up and parks the displaced tag in the victim cache.
const maxCuckooCount = 500

// altIndexMixer is the MurmurHash2 mixing constant. Multiplying the tag by
// it spreads the XOR delta between a tag's two candidate buckets across the
// index space without re-hashing the original key, which is not stored.
const altIndexMixer = 0x5bd1e995

// Filter is a cuckoo filter: an approximate set-membership structure with
// zero false negatives, a bounded false-positive rate, and support for
// deletion. Items are stored as short per-key fingerprints in a partial-key
// cuckoo hash table.
//
// A Filter is single-owner: no method may be called concurrently with Add
// or Delete. Concurrent Contain calls with no writer are safe.
type Filter struct {
	table    table.Table
	numItems uint64

	victim victimCache

	hasher     HashFamily
	bitsPerTag uint
	tagMask    uint32
	maxKicks   int

	rng *rand.Rand
}

// victimCache holds the single tag that cuckoo eviction failed to place.
// While used, the filter refuses further inserts.
type victimCache struct {
	index uint
	tag   uint32
	used  bool
}

// NewFilter creates a filter sized for maxNumKeys items. The bucket count
// is the next power of two fitting maxNumKeys at 4 slots per bucket,
// doubled if that would exceed 96% occupancy.
func NewFilter(maxNumKeys uint64, opts ...Option) (*Filter, error) {
	if maxNumKeys == 0 {
		return nil, errors.ErrZeroCapacity
	}
	cfg := defaultFilterConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.maxKicks <= 0 {
		return nil, fmt.Errorf("%w: %d", errors.ErrBadMaxKicks, cfg.maxKicks)
	}
	if cfg.hasher == nil {
		cfg.hasher = NewTwoIndependentMultiplyShift()
	}

	numBuckets := bits.UpperPower2(max(1, maxNumKeys/4))
	if frac := float64(maxNumKeys) / float64(numBuckets) / 4; frac > 0.96 {
		numBuckets <<= 1
	}

	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))

	var tbl table.Table
	if cfg.packed {
		pt, err := table.NewPackedTable(uint(numBuckets), cfg.bitsPerTag, cfg.hugePages, rng)
		if err != nil {
			return nil, err
		}
		tbl = pt
	} else {
		if cfg.bitsPerTag == 0 || cfg.bitsPerTag > 32 {
			return nil, fmt.Errorf("%w: single table with %d bits per tag",
				errors.ErrUnsupportedBits, cfg.bitsPerTag)
		}
		tbl = table.NewSingleTable(uint(numBuckets), cfg.bitsPerTag, cfg.hugePages, rng)
	}

	return &Filter{
		table:      tbl,
		hasher:     cfg.hasher,
		bitsPerTag: cfg.bitsPerTag,
		tagMask:    uint32(1)<<cfg.bitsPerTag - 1,
		maxKicks:   cfg.maxKicks,
		rng:        rng,
	}, nil
}

// Close releases the bucket storage. The filter must not be used after
// Close.
func (f *Filter) Close() error {
	return f.table.Close()
}

func (f *Filter) indexHash(hv uint32) uint {
	// numBuckets is always a power of two, so modulo reduces to a mask.
	return uint(hv) & (f.table.NumBuckets() - 1)
}

func (f *Filter) tagHash(hv uint32) uint32 {
	tag := hv & f.tagMask
	if tag == 0 {
		tag = 1
	}
	return tag
}

func (f *Filter) generateIndexTagHash(key uint64) (uint, uint32) {
	hash := f.hasher.Hash(key)
	return f.indexHash(uint32(hash >> 32)), f.tagHash(uint32(hash))
}

// altIndex returns the partner bucket for a tag. XOR is self-inverse, so
// altIndex(altIndex(i, tag), tag) == i for any power-of-two bucket count.
func (f *Filter) altIndex(index uint, tag uint32) uint {
	return f.indexHash(uint32(index) ^ tag*altIndexMixer)
}

// Add inserts a key. Returns NotEnoughSpace once the victim cache is
// occupied; until then inserts always succeed, with the last resort being
// the victim cache itself.
func (f *Filter) Add(key uint64) Status {
	if f.victim.used {
		return NotEnoughSpace
	}
	i, tag := f.generateIndexTagHash(key)
	f.addImpl(i, tag)
	f.numItems++
	return Ok
}

// addImpl runs the cuckoo loop. The tag always ends up somewhere: in a
// bucket, or in the victim cache after the kick budget is spent.
func (f *Filter) addImpl(i uint, tag uint32) {
	curIndex, curTag := i, tag
	for count := 0; count < f.maxKicks; count++ {
		kickout := count > 0
		inserted, oldTag := f.table.InsertTagToBucket(curIndex, curTag, kickout)
		if inserted {
			return
		}
		if kickout {
			curTag = oldTag
		}
		curIndex = f.altIndex(curIndex, curTag)
	}
	f.victim = victimCache{index: curIndex, tag: curTag, used: true}
}

// Contain reports whether the key is (probably) in the filter. Never
// returns false for a present key; returns true for an absent key with
// probability bounded by the false-positive rate.
func (f *Filter) Contain(key uint64) bool {
	i1, tag := f.generateIndexTagHash(key)
	i2 := f.altIndex(i1, tag)

	if f.victim.used && tag == f.victim.tag &&
		(i1 == f.victim.index || i2 == f.victim.index) {
		return true
	}
	return f.table.FindTagInBuckets(i1, i2, tag)
}

// Delete removes one copy of the key's fingerprint. Deleting a key that
// was never added may remove a colliding fingerprint; callers are expected
// to delete only previously inserted keys. After a bucket slot frees up,
// a parked victim is re-inserted so the filter can accept new keys again.
func (f *Filter) Delete(key uint64) Status {
	i1, tag := f.generateIndexTagHash(key)
	i2 := f.altIndex(i1, tag)

	switch {
	case f.table.DeleteTagFromBucket(i1, tag):
	case f.table.DeleteTagFromBucket(i2, tag):
	case f.victim.used && tag == f.victim.tag &&
		(i1 == f.victim.index || i2 == f.victim.index):
		f.victim.used = false
		f.numItems--
		return Ok
	default:
		return NotFound
	}

	f.numItems--
	if f.victim.used {
		f.victim.used = false
		f.addImpl(f.victim.index, f.victim.tag)
	}
	return Ok
}

// Size returns the number of items currently held, including a parked
// victim.
func (f *Filter) Size() uint64 { return f.numItems }

// SizeInBytes returns the bucket storage size.
func (f *Filter) SizeInBytes() uint64 { return f.table.SizeInBytes() }

// LoadFactor returns the fraction of occupied slots.
func (f *Filter) LoadFactor() float64 {
	return float64(f.Size()) / float64(f.table.SizeInTags())
}

// BitsPerItem returns the storage cost per held item.
func (f *Filter) BitsPerItem() float64 {
	return 8 * float64(f.table.SizeInBytes()) / float64(f.Size())
}

// Stats holds cuckoo filter statistics.
type Stats struct {
	NumBuckets  uint
	BitsPerTag  uint
	NumItems    uint64
	LoadFactor  float64
	BitsPerItem float64 // 0 while the filter is empty
	SizeInBytes uint64
	VictimUsed  bool
}

// Stats returns a snapshot of the filter's statistics.
func (f *Filter) Stats() Stats {
	s := Stats{
		NumBuckets:  f.table.NumBuckets(),
		BitsPerTag:  f.bitsPerTag,
		NumItems:    f.numItems,
		LoadFactor:  f.LoadFactor(),
		SizeInBytes: f.SizeInBytes(),
		VictimUsed:  f.victim.used,
	}
	if f.numItems > 0 {
		s.BitsPerItem = f.BitsPerItem()
	}
	return s
}

// Info returns human-readable diagnostics. The format is not part of any
// contract.
func (f *Filter) Info() string {
	s := fmt.Sprintf("CuckooFilter Status:\n"+
		"\t\t%s\n"+
		"\t\tKeys stored: %d\n"+
		"\t\tLoad factor: %v\n"+
		"\t\tHashtable size: %d KB\n",
		f.table.Info(), f.Size(), f.LoadFactor(), f.SizeInBytes()>>10)
	if f.Size() > 0 {
		s += fmt.Sprintf("\t\tbit/key:   %v\n", f.BitsPerItem())
	} else {
		s += "\t\tbit/key:   N/A\n"
	}
	return s
}
