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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResults() *SearchResults {
	r := NewSearchResults([]string{"q0"}, []string{"a", "b", "c", "d"})
	r.AppendRow([]int{0, 1, 2, 3}, []float64{0.5, 0.9, 0.9, 0.1})
	return r
}

func TestCSRBasics(t *testing.T) {
	r := newTestResults()
	require.Equal(t, 1, r.Len())
	require.Equal(t, 4, r.Size(0))
	ids, scores := r.Row(0)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
	assert.Equal(t, []float64{0.5, 0.9, 0.9, 0.1}, scores)
}

func TestReorderDecreasingScoreTiesByID(t *testing.T) {
	r := newTestResults()
	r.Reorder(0, DecreasingScore)
	ids, scores := r.Row(0)
	// b and c tie at 0.9; ties break by increasing id.
	assert.Equal(t, []string{"b", "c", "a", "d"}, ids)
	assert.Equal(t, []float64{0.9, 0.9, 0.5, 0.1}, scores)
}

func TestReorderIncreasingScore(t *testing.T) {
	r := newTestResults()
	r.Reorder(0, IncreasingScore)
	ids, _ := r.Row(0)
	assert.Equal(t, []string{"d", "a", "b", "c"}, ids)
}

func TestReorderIncreasingAndDecreasingID(t *testing.T) {
	r := newTestResults()
	r.Reorder(0, IncreasingID)
	ids, _ := r.Row(0)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)

	r2 := newTestResults()
	r2.Reorder(0, DecreasingID)
	ids2, _ := r2.Row(0)
	assert.Equal(t, []string{"d", "c", "b", "a"}, ids2)
}

func TestReorderReverse(t *testing.T) {
	r := newTestResults()
	r.Reorder(0, Reverse)
	ids, _ := r.Row(0)
	assert.Equal(t, []string{"d", "c", "b", "a"}, ids)
}

func TestReorderMoveClosestFirst(t *testing.T) {
	r := newTestResults()
	r.Reorder(0, MoveClosestFirst)
	ids, _ := r.Row(0)
	// "b" is the first-encountered max score (0.9); everything else keeps
	// its original relative order.
	assert.Equal(t, "b", ids[0])
	assert.ElementsMatch(t, []string{"a", "c", "d"}, ids[1:])
}

func TestReorderAllAppliesToEveryRow(t *testing.T) {
	r := NewSearchResults([]string{"q0", "q1"}, []string{"a", "b"})
	r.AppendRow([]int{0, 1}, []float64{0.1, 0.9})
	r.AppendRow([]int{1, 0}, []float64{0.2, 0.8})
	r.ReorderAll(DecreasingScore)

	ids0, _ := r.Row(0)
	ids1, _ := r.Row(1)
	assert.Equal(t, []string{"b", "a"}, ids0)
	assert.Equal(t, []string{"a", "b"}, ids1)
}

func TestIterRowsWithIndex(t *testing.T) {
	r := newTestResults()
	var seen []int
	r.IterRowsWithIndex(func(i int, ids []string, scores []float64) {
		seen = append(seen, i)
		assert.Len(t, ids, 4)
		assert.Len(t, scores, 4)
	})
	assert.Equal(t, []int{0}, seen)
}

func TestHeapAdmitsAtExactThreshold(t *testing.T) {
	// Spec.md's concrete scenario 1: threshold 0.0 must admit score 0.0
	// exactly. Offer reports whether the effective threshold rose; with
	// every retained score at 0.0 it stays at the 0.0 base, so each call
	// returns false while still admitting the candidate.
	h := NewHeap(3, 0.0)
	assert.False(t, h.Offer(0, 0.0))
	assert.False(t, h.Offer(1, 0.0))
	assert.False(t, h.Offer(2, 0.0))
	assert.Equal(t, 3, h.Len())
}

func TestHeapRejectsBelowThresholdBeforeFull(t *testing.T) {
	h := NewHeap(3, 0.5)
	assert.False(t, h.Offer(0, 0.4))
	assert.Equal(t, 0, h.Len())
}

func TestHeapOnceFullRequiresStrictlyGreater(t *testing.T) {
	h := NewHeap(2, 0.0)
	h.Offer(0, 0.3)
	h.Offer(1, 0.3)
	require.Equal(t, 2, h.Len())
	// Equal to current root: must not admit once full.
	assert.False(t, h.Offer(2, 0.3))
	// Strictly greater: must admit and evict the weakest. The other 0.3
	// entry becomes the root, so the effective threshold does not rise.
	assert.False(t, h.Offer(3, 0.5))
	assert.Equal(t, 2, h.Len())
	indices, scores, _ := h.DrainSorted(nil)
	assert.Equal(t, []float64{0.5, 0.3}, scores)
	assert.Equal(t, 3, indices[0])
}

func TestHeapDrainSortedScoreDescendingIDAscending(t *testing.T) {
	h := NewHeap(3, 0.0)
	h.OfferWithID(0, 0.2, "c")
	h.OfferWithID(1, 0.9, "a")
	h.OfferWithID(2, 0.9, "b")
	indices, scores, ids := h.DrainSorted(nil)
	require.Len(t, ids, 3)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.Equal(t, []float64{0.9, 0.9, 0.2}, scores)
	assert.Equal(t, []int{1, 2, 0}, indices)
	assert.Equal(t, 0, h.Len())
}

func TestHeapZeroKNeverAdmits(t *testing.T) {
	h := NewHeap(0, 0.0)
	assert.False(t, h.Offer(0, 1.0))
	assert.Equal(t, 0, h.Len())
}
