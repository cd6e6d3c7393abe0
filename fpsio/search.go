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

package fpsio

import (
	"fmt"
	"io"

	"github.com/grailbio/chemfp/chemferr"
	"github.com/grailbio/chemfp/fptypes"
	"github.com/grailbio/chemfp/kernel"
	"github.com/grailbio/chemfp/results"
)

// Query is one in-memory query fingerprint for a streaming search. Unlike
// the arena-backed search package, the streaming engine holds queries in
// memory and scans the (typically much larger) target stream once, per
// spec.md §4.E.
type Query struct {
	ID string
	FP []byte
}

// StreamHit is one (id, score) result from a streaming search. There is no
// backing arena index to resolve later: the id is captured directly off
// the stream at the moment of the match, since a record's bytes do not
// outlive the ~20 KiB block that contained them (spec.md §4.E).
type StreamHit struct {
	ID    string
	Score float64
}

// StreamSearcher performs count/threshold/k-nearest Tanimoto search
// against an FPS text stream without building an arena (spec.md §4.E).
// This path does not benefit from popcount-bucket pruning, since the
// stream is not popcount-sorted; it drives the same package kernel bit
// kernels as the arena-backed search package.
type StreamSearcher struct {
	*streamBase
}

// NewStreamSearcher parses r's FPS1 header and returns a searcher
// positioned at the first record line. blockSize overrides
// DefaultBlockSize; 0 selects the default. name is used only for error
// messages.
func NewStreamSearcher(r io.Reader, name string, blockSize int) (*StreamSearcher, error) {
	sb, err := newStreamBase(r, name, blockSize)
	if err != nil {
		return nil, err
	}
	return &StreamSearcher{sb}, nil
}

func validateQueries(queries []Query, meta fptypes.Metadata) error {
	for _, q := range queries {
		if len(q.FP) != meta.NumBytes {
			return chemferr.E(chemferr.SizeMismatch,
				fmt.Sprintf("query %q has %d bytes, stream expects %d (num_bits=%d)", q.ID, len(q.FP), meta.NumBytes, meta.NumBits))
		}
	}
	return nil
}

// scan drives the block/line loop once, decoding each record into staging
// and invoking visit with its id, fingerprint, and popcount.
func (s *StreamSearcher) scan(staging []byte, visit func(id string, fp []byte, popcount int)) error {
	for {
		id, err := s.nextRecord(staging)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		visit(id, staging, kernel.Popcount(staging))
	}
}

// CountStream implements spec.md §4.E's count path: one pass over the
// stream, incrementing a per-query counter for every record scoring >=
// threshold.
func (s *StreamSearcher) CountStream(queries []Query, threshold float64) ([]int, error) {
	if err := validateQueries(queries, s.meta); err != nil {
		return nil, err
	}
	pops := make([]int, len(queries))
	for i, q := range queries {
		pops[i] = kernel.Popcount(q.FP)
	}
	counts := make([]int, len(queries))
	staging := make([]byte, s.meta.NumBytes)
	err := s.scan(staging, func(_ string, fp []byte, pop int) {
		for i, q := range queries {
			if kernel.TanimotoPopcounts(q.FP, fp, pops[i], pop) >= threshold {
				counts[i]++
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// ThresholdStream implements spec.md §4.E's threshold path, returning one
// hit row per query in stream-encounter order (not score order; callers
// wanting score order should sort, or use ToSearchResults followed by
// results.SearchResults.Reorder).
func (s *StreamSearcher) ThresholdStream(queries []Query, threshold float64) ([][]StreamHit, error) {
	if err := validateQueries(queries, s.meta); err != nil {
		return nil, err
	}
	pops := make([]int, len(queries))
	for i, q := range queries {
		pops[i] = kernel.Popcount(q.FP)
	}
	rows := make([][]StreamHit, len(queries))
	staging := make([]byte, s.meta.NumBytes)
	err := s.scan(staging, func(id string, fp []byte, pop int) {
		for i, q := range queries {
			score := kernel.TanimotoPopcounts(q.FP, fp, pops[i], pop)
			if score >= threshold {
				rows[i] = append(rows[i], StreamHit{ID: id, Score: score})
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// KNearestStream implements spec.md §4.E's k-nearest path: a bounded
// min-heap per query (package results' Heap), fed via OfferWithID so each
// retained id is captured immediately rather than resolved later against
// bytes the stream has already moved past.
func (s *StreamSearcher) KNearestStream(queries []Query, k int, threshold float64) ([][]StreamHit, error) {
	if err := validateQueries(queries, s.meta); err != nil {
		return nil, err
	}
	pops := make([]int, len(queries))
	heaps := make([]*results.Heap, len(queries))
	for i, q := range queries {
		pops[i] = kernel.Popcount(q.FP)
		heaps[i] = results.NewHeap(k, threshold)
	}
	staging := make([]byte, s.meta.NumBytes)
	recordIdx := 0
	err := s.scan(staging, func(id string, fp []byte, pop int) {
		for i, q := range queries {
			score := kernel.TanimotoPopcounts(q.FP, fp, pops[i], pop)
			if score < heaps[i].Threshold() {
				continue
			}
			heaps[i].OfferWithID(recordIdx, score, id)
		}
		recordIdx++
	})
	if err != nil {
		return nil, err
	}
	rows := make([][]StreamHit, len(queries))
	for i, h := range heaps {
		_, scores, ids := h.DrainSorted(nil)
		row := make([]StreamHit, len(ids))
		for j := range ids {
			row[j] = StreamHit{ID: ids[j], Score: scores[j]}
		}
		rows[i] = row
	}
	return rows, nil
}

// ToSearchResults assembles a CSR results.SearchResults from per-query
// streaming hit rows, assigning each distinct target id encountered a
// synthetic index the first time it appears (stable, first-occurrence
// order). This lets a streaming result be fed through package results'
// Reorder machinery exactly like an arena-backed one (spec.md §8 scenario
// 6: stream and arena searches must agree once both are reordered by
// decreasing-score then increasing-id).
func ToSearchResults(queryIDs []string, rows [][]StreamHit) *results.SearchResults {
	idOf := make(map[string]int)
	var targetIDs []string
	rowIndices := make([][]int, len(rows))
	rowScores := make([][]float64, len(rows))
	for ri, row := range rows {
		idx := make([]int, len(row))
		scores := make([]float64, len(row))
		for hi, hit := range row {
			pos, ok := idOf[hit.ID]
			if !ok {
				pos = len(targetIDs)
				idOf[hit.ID] = pos
				targetIDs = append(targetIDs, hit.ID)
			}
			idx[hi] = pos
			scores[hi] = hit.Score
		}
		rowIndices[ri] = idx
		rowScores[ri] = scores
	}
	out := results.NewSearchResults(queryIDs, targetIDs)
	for ri := range rows {
		out.AppendRow(rowIndices[ri], rowScores[ri])
	}
	return out
}
