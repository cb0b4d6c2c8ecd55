//go:build !purego

package cuckoofilter

import "github.com/klauspost/cpuid/v2"

// The assembly routines in simdblock_amd64.s implement MakeMask-and-apply
// in a handful of vector instructions. The original requires AVX2 outright; here
// the check happens once at init and scalar code serves older CPUs.
var blockUsesAVX2 = cpuid.CPU.Supports(cpuid.AVX2)

//go:noescape
func blockInsertAVX2(b *block, hash uint32)

//go:noescape
func blockCheckAVX2(b *block, hash uint32) bool

func blockInsert(b *block, hash uint32) {
	if blockUsesAVX2 {
		blockInsertAVX2(b, hash)
		return
	}
	b.insertGeneric(hash)
}

func blockCheck(b *block, hash uint32) bool {
	if blockUsesAVX2 {
		return blockCheckAVX2(b, hash)
	}
	return b.checkGeneric(hash)
}
