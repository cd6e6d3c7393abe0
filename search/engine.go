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

package search

import (
	"github.com/grailbio/chemfp/arena"
	"github.com/grailbio/chemfp/kernel"
	"github.com/grailbio/chemfp/results"
)

// Hit is one (id, score) search result for the single-fingerprint
// operations. Index is the record's position within the target arena
// passed to the search call, useful to batch callers that already hold a
// target-id table and want to avoid a second id lookup.
type Hit struct {
	ID    string
	Score float64
	Index int
}

// bucketScan describes one popcount bucket (or, when target has no usable
// index, the whole arena) to scan, with the PopcountOf to use for it.
type bucketScan struct {
	lo, hi int
	popOf  kernel.PopcountOf
}

// bucketScans returns the scans needed to find every hit for a query of
// popcount qp at the given threshold.
func bucketScans(qp int, target *arena.Arena, block kernel.Block, threshold float64) []bucketScan {
	if !target.HasPopcountIndex() {
		return []bucketScan{{0, target.Len(), kernel.PopcountFromBlock(block)}}
	}
	lo, hi := kernel.PopcountBounds(qp, target.NumBits(), threshold)
	var scans []bucketScan
	for p := lo; p <= hi; p++ {
		bLo, bHi := target.PopcountBucket(p)
		if bLo < bHi {
			scans = append(scans, bucketScan{bLo, bHi, kernel.ConstantPopcount(p)})
		}
	}
	return scans
}

// CountTanimotoHitsFP implements spec.md §6's count_tanimoto_hits_fp.
func CountTanimotoHitsFP(fp []byte, target *arena.Arena, threshold float64) (int, error) {
	if err := validateThreshold(threshold); err != nil {
		return 0, err
	}
	if err := validateFP(fp, target); err != nil {
		return 0, err
	}
	if target.Len() == 0 {
		return 0, nil
	}
	qp := kernel.Popcount(fp)
	block := target.Block()
	total := 0
	for _, s := range bucketScans(qp, target, block, threshold) {
		total += kernel.CountHits(fp, qp, block, s.lo, s.hi, threshold, s.popOf)
	}
	return total, nil
}

// ThresholdTanimotoSearchFP implements spec.md §6's
// threshold_tanimoto_search_fp. Hits are returned in (popcount-ascending,
// then index-ascending) order per spec.md §5; callers wanting score order
// should sort the result (see package results for the arena-batch
// equivalent, which supports Order-based reordering).
func ThresholdTanimotoSearchFP(fp []byte, target *arena.Arena, threshold float64) ([]Hit, error) {
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}
	if err := validateFP(fp, target); err != nil {
		return nil, err
	}
	if target.Len() == 0 {
		return nil, nil
	}
	qp := kernel.Popcount(fp)
	block := target.Block()
	var idx []int
	var scores []float64
	for _, s := range bucketScans(qp, target, block, threshold) {
		idx, scores = kernel.ThresholdHits(fp, qp, block, s.lo, s.hi, threshold, idx, scores, s.popOf)
	}
	hits := make([]Hit, len(idx))
	for i, ix := range idx {
		id, _ := target.Get(ix)
		hits[i] = Hit{ID: id, Score: scores[i], Index: ix}
	}
	return hits, nil
}

// KNearestTanimotoSearchFP implements spec.md §6's
// knearest_tanimoto_search_fp, using the bucket fan-out order of spec.md
// §4.D: start from p=q and fan outward, shrinking the scan range as the
// heap's effective threshold rises.
func KNearestTanimotoSearchFP(fp []byte, target *arena.Arena, k int, threshold float64) ([]Hit, error) {
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}
	if err := validateK(k); err != nil {
		return nil, err
	}
	if err := validateFP(fp, target); err != nil {
		return nil, err
	}
	if target.Len() == 0 || k == 0 {
		return nil, nil
	}
	qp := kernel.Popcount(fp)
	block := target.Block()
	h := results.NewHeap(k, threshold)

	if !target.HasPopcountIndex() {
		kernel.KNearestHits(fp, qp, block, 0, target.Len(), kernel.PopcountFromBlock(block), h)
	} else {
		numBits := target.NumBits()
		for _, p := range fanOutOrder(qp, numBits) {
			lo, hi := kernel.PopcountBounds(qp, numBits, h.Threshold())
			if p < lo || p > hi {
				continue
			}
			bLo, bHi := target.PopcountBucket(p)
			if bLo < bHi {
				kernel.KNearestHits(fp, qp, block, bLo, bHi, kernel.ConstantPopcount(p), h)
			}
		}
	}

	idx, scores, _ := h.DrainSorted(nil)
	hits := make([]Hit, len(idx))
	for i, ix := range idx {
		id, _ := target.Get(ix)
		hits[i] = Hit{ID: id, Score: scores[i], Index: ix}
	}
	return hits, nil
}

// fanOutOrder returns popcounts q, q+1, q-1, q+2, q-2, ... clipped to
// [0, numBits], the traversal order spec.md §4.D recommends to minimize
// pruning work for k-nearest.
func fanOutOrder(q, numBits int) []int {
	order := make([]int, 0, numBits+1)
	if q >= 0 && q <= numBits {
		order = append(order, q)
	}
	for d := 1; q-d >= 0 || q+d <= numBits; d++ {
		if q+d <= numBits {
			order = append(order, q+d)
		}
		if q-d >= 0 {
			order = append(order, q-d)
		}
	}
	return order
}
