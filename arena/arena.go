// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package arena implements the immutable, contiguous fingerprint storage
// described in spec.md §3-§4.C: a dense byte buffer with per-record
// padding for SIMD alignment, optional popcount-sorted bucketing, and O(1)
// slicing that shares storage with the parent view.
package arena

import (
	"fmt"

	"github.com/grailbio/chemfp/chemferr"
	"github.com/grailbio/chemfp/fptypes"
	"github.com/grailbio/chemfp/kernel"
)

// storage is the shared, immutable backing buffer for an Arena and every
// view sliced from it. Multiple *Arena values may point at the same
// *storage, which is never mutated after Builder.Build returns.
type storage struct {
	meta          fptypes.Metadata
	alignment     int
	strideSize    int // bytes per record, multiple of alignment, >= meta.NumBytes
	startPadding  int // leading pad bytes before record 0
	data          []byte
	ids           []string
	popcountIndex []int // len meta.NumBits+2, or nil if not popcount-sorted
}

// Arena is an immutable view over a range of records in a storage buffer.
// The zero value is not usable; construct one with a Builder or Slice.
type Arena struct {
	s          *storage
	start, end int // record range [start,end) this view exposes
}

// Len returns the number of records in this view.
func (a *Arena) Len() int { return a.end - a.start }

// Metadata returns the fingerprint collection's metadata.
func (a *Arena) Metadata() fptypes.Metadata { return a.s.meta }

func (a *Arena) recordOffset(i int) int {
	return a.s.startPadding + (a.start+i)*a.s.strideSize
}

// Fingerprint returns the raw NumBytes-length bytes of record i (0 <= i <
// Len()). The returned slice aliases the arena's storage and must not be
// modified.
func (a *Arena) Fingerprint(i int) []byte {
	off := a.recordOffset(i)
	return a.s.data[off : off+a.s.meta.NumBytes]
}

// ID returns the identifier of record i.
func (a *Arena) ID(i int) string { return a.s.ids[a.start+i] }

// Get returns both the id and fingerprint of record i.
func (a *Arena) Get(i int) (string, []byte) { return a.ID(i), a.Fingerprint(i) }

// Block returns the kernel-level view of this arena's records, for use by
// the search engine.
func (a *Arena) Block() kernel.Block {
	off := a.recordOffset(0)
	n := a.Len()
	var data []byte
	if n > 0 {
		data = a.s.data[off : off+(n-1)*a.s.strideSize+a.s.meta.NumBytes]
	}
	return kernel.Block{Data: data, Stride: a.s.strideSize, NumBytes: a.s.meta.NumBytes}
}

// HasPopcountIndex reports whether this view's records are popcount-sorted
// and the bucket boundaries below are valid for it. A slice only inherits
// the index when its boundaries align with bucket boundaries (spec.md
// §4.C); otherwise the search engine must fall back to a linear scan.
func (a *Arena) HasPopcountIndex() bool { return a.effectiveIndex() != nil }

// PopcountBucket returns the [lo, hi) record range, relative to this view,
// of records with the given popcount p, when HasPopcountIndex is true. It
// panics if called without an index; callers must check HasPopcountIndex
// first.
func (a *Arena) PopcountBucket(p int) (lo, hi int) {
	idx := a.effectiveIndex()
	numBits := a.s.meta.NumBits
	if p < 0 {
		p = 0
	}
	if p > numBits {
		return a.Len(), a.Len()
	}
	lo = idx[p] - a.start
	hi = idx[p+1] - a.start
	if lo < 0 {
		lo = 0
	}
	if hi > a.Len() {
		hi = a.Len()
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}

// NumBits returns the fingerprint bit width, for convenience.
func (a *Arena) NumBits() int { return a.s.meta.NumBits }

// Slice returns a view of records [start, end) sharing this arena's
// storage; it is O(1). step, if given, must be 1 — any other value is
// rejected, matching spec.md §4.C's "step must be 1" requirement (Go has
// no native strided-slice syntax, so this is expressed as an optional
// trailing argument rather than silently ignored).
func (a *Arena) Slice(start, end int, step ...int) (*Arena, error) {
	if len(step) > 0 && step[0] != 1 {
		return nil, chemferr.E(chemferr.RangeError, fmt.Sprintf("slice step %d not supported, only 1", step[0]))
	}
	if start < 0 || end > a.Len() || start > end {
		return nil, chemferr.E(chemferr.RangeError, fmt.Sprintf("slice [%d:%d] out of range for arena of length %d", start, end, a.Len()))
	}
	return &Arena{s: a.s, start: a.start + start, end: a.start + end}, nil
}

// bucketAligned reports whether this view's absolute start/end coincide
// with popcount bucket boundaries in s.popcountIndex.
func (a *Arena) bucketAligned() bool {
	return containsInt(a.s.popcountIndex, a.start) && (a.end == len(a.s.ids) || containsInt(a.s.popcountIndex, a.end))
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// effectiveIndex returns this view's popcount index if directly usable
// (HasPopcountIndex() && bucketAligned), or nil otherwise, for the search
// engine to decide whether it may prune by popcount bucket.
func (a *Arena) effectiveIndex() []int {
	if a.s.popcountIndex == nil || !a.bucketAligned() {
		return nil
	}
	return a.s.popcountIndex
}

// RecordIter walks an arena's records in order, in the style of
// bufio.Scanner: call Next, and after each call that returns true read
// ID/Fingerprint; stop once Next returns false.
type RecordIter struct {
	a   *Arena
	i   int
	ok  bool
}

// Iter returns a fresh iterator over this arena's records.
func (a *Arena) Iter() *RecordIter { return &RecordIter{a: a, i: -1} }

// Next advances the iterator, returning false once exhausted.
func (it *RecordIter) Next() bool {
	it.i++
	it.ok = it.i < it.a.Len()
	return it.ok
}

// ID returns the current record's id.
func (it *RecordIter) ID() string { return it.a.ID(it.i) }

// Fingerprint returns the current record's fingerprint bytes.
func (it *RecordIter) Fingerprint() []byte { return it.a.Fingerprint(it.i) }

// BlockIter walks an arena in consecutive sub-views of up to blockSize
// records each; the final view may be smaller.
type BlockIter struct {
	a         *Arena
	blockSize int
	pos       int
	cur       *Arena
}

// IterBlocks returns an iterator yielding consecutive sub-views of up to
// blockSize records.
func (a *Arena) IterBlocks(blockSize int) *BlockIter {
	return &BlockIter{a: a, blockSize: blockSize}
}

// Next advances to the next block, returning false once exhausted.
func (it *BlockIter) Next() bool {
	if it.pos >= it.a.Len() {
		return false
	}
	end := it.pos + it.blockSize
	if end > it.a.Len() {
		end = it.a.Len()
	}
	// Slice never fails for in-range bounds derived internally.
	v, _ := it.a.Slice(it.pos, end)
	it.cur = v
	it.pos = end
	return true
}

// Arena returns the current block view.
func (it *BlockIter) Arena() *Arena { return it.cur }
