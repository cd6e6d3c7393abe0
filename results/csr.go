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

// Package results implements the two result containers named in spec.md
// §3/§4.F: a compressed-sparse-row (CSR) container for batched threshold
// search, and a fixed-capacity min-heap for k-nearest search.
package results

import "sort"

// SearchResults is the CSR container for a batch of Q queries against one
// target arena, holding T total hits. Row i occupies
// Indices[Offsets[i]:Offsets[i+1]] and the equal-length Scores range.
type SearchResults struct {
	Offsets    []int // length Q+1
	Indices    []int // length T; target record index
	Scores     []float64
	QueryIDs   []string // length Q
	TargetIDs  []string // length M, the target record ids, shared by all rows
}

// NewSearchResults returns an empty container for len(queryIDs) rows
// against a target whose ids are targetIDs; rows are added with AppendRow.
func NewSearchResults(queryIDs []string, targetIDs []string) *SearchResults {
	return &SearchResults{
		Offsets:   make([]int, 1, len(queryIDs)+1),
		QueryIDs:  queryIDs,
		TargetIDs: targetIDs,
	}
}

// AppendRow appends one query's (index, score) hits as the next CSR row.
// Rows must be appended in query order.
func (r *SearchResults) AppendRow(indices []int, scores []float64) {
	r.Indices = append(r.Indices, indices...)
	r.Scores = append(r.Scores, scores...)
	r.Offsets = append(r.Offsets, len(r.Indices))
}

// Len returns the number of query rows (Q).
func (r *SearchResults) Len() int { return len(r.Offsets) - 1 }

// Size returns the number of hits in row i.
func (r *SearchResults) Size(i int) int { return r.Offsets[i+1] - r.Offsets[i] }

// Row returns the (id, score) pairs for row i, in whatever order they were
// appended (ascending popcount-bucket, then ascending target index, unless
// Reorder/ReorderAll has since been applied).
func (r *SearchResults) Row(i int) (ids []string, scores []float64) {
	lo, hi := r.Offsets[i], r.Offsets[i+1]
	ids = make([]string, hi-lo)
	for k := lo; k < hi; k++ {
		ids[k-lo] = r.TargetIDs[r.Indices[k]]
	}
	return ids, append([]float64(nil), r.Scores[lo:hi]...)
}

// RowIndices returns the raw target-index slice for row i, aliasing the
// container's storage (read-only).
func (r *SearchResults) RowIndices(i int) []int { return r.Indices[r.Offsets[i]:r.Offsets[i+1]] }

// RowScores returns the raw score slice for row i, aliasing the container's
// storage (read-only).
func (r *SearchResults) RowScores(i int) []float64 { return r.Scores[r.Offsets[i]:r.Offsets[i+1]] }

// IterRows calls fn once per row with that row's (ids, scores).
func (r *SearchResults) IterRows(fn func(ids []string, scores []float64)) {
	for i := 0; i < r.Len(); i++ {
		ids, scores := r.Row(i)
		fn(ids, scores)
	}
}

// IterRowsWithIndex calls fn once per row with the row index plus (ids,
// scores).
func (r *SearchResults) IterRowsWithIndex(fn func(i int, ids []string, scores []float64)) {
	for i := 0; i < r.Len(); i++ {
		ids, scores := r.Row(i)
		fn(i, ids, scores)
	}
}

// Reorder permutes row i's hits in place according to order.
func (r *SearchResults) Reorder(i int, order Order) {
	lo, hi := r.Offsets[i], r.Offsets[i+1]
	sortRow(r.Indices[lo:hi], r.Scores[lo:hi], r.TargetIDs, order)
}

// ReorderAll applies Reorder to every row.
func (r *SearchResults) ReorderAll(order Order) {
	for i := 0; i < r.Len(); i++ {
		r.Reorder(i, order)
	}
}

func sortRow(indices []int, scores []float64, targetIDs []string, order Order) {
	n := len(indices)
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	less := lessFuncFor(order, perm, indices, scores, targetIDs)
	sort.SliceStable(perm, less)
	outIdx := make([]int, n)
	outScore := make([]float64, n)
	for newPos, oldPos := range perm {
		outIdx[newPos] = indices[oldPos]
		outScore[newPos] = scores[oldPos]
	}
	copy(indices, outIdx)
	copy(scores, outScore)
}
