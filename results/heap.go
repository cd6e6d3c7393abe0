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

package results

import "container/heap"

// entry is one candidate retained by Heap: a target record index plus its
// score. id is resolved lazily by the caller via an id table, except in the
// streaming path (package fpsio) where the backing bytes may not outlive
// the call, so the id is captured eagerly there.
type entry struct {
	score float64
	index int
	id    string // set only when captured eagerly (streaming path)
}

// innerHeap implements container/heap.Interface as a min-heap on score,
// ties broken so the heap root is always the weakest retained candidate.
type innerHeap []entry

func (h innerHeap) Len() int { return len(h) }
func (h innerHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score < h[j].score
	}
	// Break ties so that, among equal scores, the higher index (and so,
	// once ids are known, typically the "later" record) sits nearer the
	// root and is evicted first; final output order is resolved by
	// DrainSorted regardless.
	return h[i].index > h[j].index
}
func (h innerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *innerHeap) Push(x interface{}) { *h = append(*h, x.(entry)) }
func (h *innerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Heap is the fixed-capacity k-nearest min-heap of spec.md §3/§4.F: it
// retains at most K candidates, admitting a new one only if it beats the
// current weakest retained candidate (once full) or meets the base
// threshold (before the heap fills). It implements kernel.ScoreSink.
type Heap struct {
	k         int
	threshold float64 // base threshold; never decreases
	h         innerHeap
}

// NewHeap returns an empty heap with the given capacity and base admission
// threshold. k must be >= 0 (the search package enforces this as a
// RangeError before constructing one).
func NewHeap(k int, threshold float64) *Heap {
	return &Heap{k: k, threshold: threshold}
}

// Threshold returns the heap's current effective admission threshold: the
// base threshold until the heap fills, then max(base, root score).
func (hp *Heap) Threshold() float64 {
	if hp.k > 0 && len(hp.h) >= hp.k {
		root := hp.h[0].score
		if root > hp.threshold {
			return root
		}
	}
	return hp.threshold
}

// Offer proposes (index, score) for admission. It returns true if the
// heap's effective threshold rose as a result of this call.
func (hp *Heap) Offer(index int, score float64) bool {
	return hp.offer(entry{score: score, index: index})
}

// OfferWithID is Offer for the streaming path, which must capture the id
// eagerly because the underlying line buffer will be overwritten.
func (hp *Heap) OfferWithID(index int, score float64, id string) bool {
	return hp.offer(entry{score: score, index: index, id: id})
}

func (hp *Heap) offer(e entry) bool {
	if hp.k <= 0 {
		return false
	}
	before := hp.Threshold()
	if len(hp.h) < hp.k {
		if e.score < hp.threshold {
			return false
		}
		heap.Push(&hp.h, e)
	} else {
		if e.score <= hp.h[0].score {
			return false
		}
		hp.h[0] = e
		heap.Fix(&hp.h, 0)
	}
	return hp.Threshold() > before
}

// Len returns the number of candidates currently retained.
func (hp *Heap) Len() int { return len(hp.h) }

// DrainSorted empties the heap, returning (index, score) pairs sorted by
// score descending, ties broken by ascending index (spec.md §4.F). If
// resolveID is non-nil, entries captured via Offer (not OfferWithID) have
// their id resolved through it; ids captured eagerly are used as-is.
func (hp *Heap) DrainSorted(resolveID func(index int) string) (indices []int, scores []float64, ids []string) {
	n := len(hp.h)
	entries := make([]entry, n)
	copy(entries, hp.h)
	hp.h = hp.h[:0]

	sortEntries(entries)

	indices = make([]int, n)
	scores = make([]float64, n)
	ids = make([]string, n)
	for i, e := range entries {
		indices[i] = e.index
		scores[i] = e.score
		if e.id != "" {
			ids[i] = e.id
		} else if resolveID != nil {
			ids[i] = resolveID(e.index)
		}
	}
	return indices, scores, ids
}

func sortEntries(entries []entry) {
	// Simple insertion sort: K is small (typically single/double digits),
	// and this runs once per query at drain time, not in the hot scan
	// loop.
	for i := 1; i < len(entries); i++ {
		e := entries[i]
		j := i - 1
		for j >= 0 && less(e, entries[j]) {
			entries[j+1] = entries[j]
			j--
		}
		entries[j+1] = e
	}
}

// less reports whether a should sort before b in drain order: score
// descending, then index ascending.
func less(a, b entry) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.index < b.index
}
