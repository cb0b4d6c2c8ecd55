// Bench is a bulk insert-and-query benchmark for the membership filters,
// with a classic Bloom filter as a baseline.
//
// Usage:
//
//	go run ./cmd/bench -keys 1000000 -filter cuckoo -bits 12
//
// Flags:
//
//	-keys     Number of keys to insert (default: 1,000,000)
//	-filter   Engine: cuckoo, packed, simd, shingle, bloom (default: cuckoo)
//	-bits     Bits per tag for the cuckoo engines (default: 12 direct / 13 packed)
//	-queries  Number of lookup probes per phase (default: 10,000,000)
//	-threads  Concurrent query goroutines (default: GOMAXPROCS)
//	-huge     Back bucket storage with huge pages where supported
//	-tab      Use tabulation hashing instead of multiply-shift
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"runtime"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/spaolacci/murmur3"
	"golang.org/x/sync/errgroup"

	"github.com/efficient/cuckoofilter"
)

// membershipFilter is the common query surface of all benched engines.
type membershipFilter interface {
	Add(key uint64) cuckoofilter.Status
	Contain(key uint64) bool
	SizeInBytes() uint64
	Info() string
}

// bloomAdapter wraps bits-and-blooms/bloom behind the same surface.
type bloomAdapter struct {
	*bloom.BloomFilter
}

func (b bloomAdapter) Add(key uint64) cuckoofilter.Status {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], key)
	b.BloomFilter.Add(buf[:])
	return cuckoofilter.Ok
}

func (b bloomAdapter) Contain(key uint64) bool {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], key)
	return b.Test(buf[:])
}

func (b bloomAdapter) SizeInBytes() uint64 {
	return uint64(b.Cap() / 8)
}

func (b bloomAdapter) Info() string {
	return fmt.Sprintf("Bloom baseline: m=%d bits, k=%d\n", b.Cap(), b.K())
}

func main() {
	keysFlag := flag.Int("keys", 1_000_000, "number of keys to insert")
	filterFlag := flag.String("filter", "cuckoo", "engine: cuckoo, packed, simd, shingle, bloom")
	bitsFlag := flag.Uint("bits", 0, "bits per tag (0 = engine default)")
	queriesFlag := flag.Int("queries", 10_000_000, "lookup probes per phase")
	threadsFlag := flag.Int("threads", runtime.GOMAXPROCS(0), "concurrent query goroutines")
	hugeFlag := flag.Bool("huge", false, "use huge pages for bucket storage")
	tabFlag := flag.Bool("tab", false, "use tabulation hashing")
	flag.Parse()

	numKeys := *keysFlag
	numQueries := *queriesFlag

	var opts []cuckoofilter.Option
	if *bitsFlag != 0 {
		opts = append(opts, cuckoofilter.WithBitsPerTag(*bitsFlag))
	}
	if *hugeFlag {
		opts = append(opts, cuckoofilter.WithHugePages())
	}
	if *tabFlag {
		opts = append(opts, cuckoofilter.WithTabulationHashing())
	}

	var f membershipFilter
	switch *filterFlag {
	case "cuckoo":
		cf, err := cuckoofilter.NewFilter(uint64(numKeys), opts...)
		if err != nil {
			log.Fatalf("NewFilter: %v", err)
		}
		defer cf.Close()
		f = cf
	case "packed":
		cf, err := cuckoofilter.NewFilter(uint64(numKeys), append(opts, cuckoofilter.WithPackedTable())...)
		if err != nil {
			log.Fatalf("NewFilter: %v", err)
		}
		defer cf.Close()
		f = cf
	case "simd":
		// Match the cuckoo default budget of ~1.5 bytes per key.
		logHeap := 1
		for 1<<logHeap < numKeys*3/2 {
			logHeap++
		}
		sf, err := cuckoofilter.NewSimdBlockFilter(logHeap, opts...)
		if err != nil {
			log.Fatalf("NewSimdBlockFilter: %v", err)
		}
		defer sf.Close()
		f = sf
	case "shingle":
		sh, err := cuckoofilter.NewShingle(uint64(numKeys), opts...)
		if err != nil {
			log.Fatalf("NewShingle: %v", err)
		}
		defer sh.Close()
		f = sh
	case "bloom":
		f = bloomAdapter{bloom.NewWithEstimates(uint(numKeys), 0.002)}
	default:
		log.Fatalf("unknown filter %q (use cuckoo, packed, simd, shingle, bloom)", *filterFlag)
	}

	// Deterministic pseudo-random keys: murmur3 over the counter. Members
	// are keys[0..n); nonmembers use a disjoint seed.
	fmt.Println("Generating keys...")
	keyAt := func(seed uint32, i int) uint64 {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(i))
		h, _ := murmur3.Sum128WithSeed(buf[:], seed)
		return h
	}

	fmt.Printf("Inserting %d keys...\n", numKeys)
	insertStart := time.Now()
	inserted := 0
	for i := 0; i < numKeys; i++ {
		if f.Add(keyAt(0x1234, i)) != cuckoofilter.Ok {
			break
		}
		inserted++
	}
	insertDuration := time.Since(insertStart)

	// Query phase: read-mostly deployment, one immutable filter shared by
	// all goroutines.
	fmt.Printf("Querying with %d goroutines...\n", *threadsFlag)
	queryStart := time.Now()
	group, _ := errgroup.WithContext(context.Background())
	group.SetLimit(*threadsFlag)

	perWorker := numQueries / *threadsFlag
	misses := make([]int, *threadsFlag)
	falsePositives := make([]int, *threadsFlag)
	for w := 0; w < *threadsFlag; w++ {
		w := w
		group.Go(func() error {
			for i := 0; i < perWorker; i++ {
				// Alternate member and nonmember probes.
				if i&1 == 0 {
					if !f.Contain(keyAt(0x1234, (w*perWorker+i)%inserted)) {
						misses[w]++
					}
				} else if f.Contain(keyAt(0xCAFE, w*perWorker+i)) {
					falsePositives[w]++
				}
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		log.Fatalf("query phase: %v", err)
	}
	queryDuration := time.Since(queryStart)

	totalMisses, totalFPs := 0, 0
	for w := 0; w < *threadsFlag; w++ {
		totalMisses += misses[w]
		totalFPs += falsePositives[w]
	}
	memberProbes := *threadsFlag * ((perWorker + 1) / 2)
	nonmemberProbes := *threadsFlag * (perWorker / 2)

	fmt.Printf("\n%s\n", f.Info())
	fmt.Printf("Inserted:          %d / %d keys\n", inserted, numKeys)
	fmt.Printf("Insert throughput: %.2f M keys/sec\n",
		float64(inserted)/insertDuration.Seconds()/1e6)
	fmt.Printf("Query throughput:  %.2f M lookups/sec (%d goroutines)\n",
		float64(numQueries)/queryDuration.Seconds()/1e6, *threadsFlag)
	fmt.Printf("False negatives:   %d / %d member probes\n", totalMisses, memberProbes)
	fmt.Printf("False positives:   %.5f%% (%d / %d nonmember probes)\n",
		100*float64(totalFPs)/float64(nonmemberProbes), totalFPs, nonmemberProbes)
	fmt.Printf("Space:             %d bytes, %.2f bits/key\n",
		f.SizeInBytes(), 8*float64(f.SizeInBytes())/float64(inserted))
}
