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
	"sync"

	"github.com/grailbio/chemfp/arena"
	"github.com/grailbio/chemfp/results"
)

// BatchOptions configures the *Arena batch operations. The zero value runs
// sequentially, matching spec.md's reference behavior; Workers > 0 fans
// out across goroutines, which is safe because each query writes only to
// its own disjoint CSR row (spec.md §5).
type BatchOptions struct {
	Workers int
}

func queryIDs(queries *arena.Arena) []string {
	ids := make([]string, queries.Len())
	for i := range ids {
		ids[i] = queries.ID(i)
	}
	return ids
}

func targetIDs(target *arena.Arena) []string {
	ids := make([]string, target.Len())
	for i := range ids {
		ids[i] = target.ID(i)
	}
	return ids
}

// forEachQuery runs fn(queryIndex) for every query row, sequentially if
// opts.Workers <= 1, otherwise fanned out across opts.Workers goroutines.
// Results must be written by fn only to that row's own slot.
func forEachQuery(n, workers int, fn func(i int)) {
	if workers <= 1 || n <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	var wg sync.WaitGroup
	jobs := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}

// CountTanimotoHitsArena implements spec.md §6's count_tanimoto_hits_arena.
func CountTanimotoHitsArena(queries, target *arena.Arena, threshold float64, opts BatchOptions) ([]int, error) {
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}
	if err := validateArenas(queries, target); err != nil {
		return nil, err
	}
	counts := make([]int, queries.Len())
	var firstErr error
	var mu sync.Mutex
	forEachQuery(queries.Len(), opts.Workers, func(i int) {
		fp := queries.Fingerprint(i)
		n, err := CountTanimotoHitsFP(fp, target, threshold)
		if err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			return
		}
		counts[i] = n
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return counts, nil
}

// ThresholdTanimotoSearchArena implements spec.md §6's
// threshold_tanimoto_search_arena, returning a CSR results.SearchResults
// with rows in query order.
func ThresholdTanimotoSearchArena(queries, target *arena.Arena, threshold float64, opts BatchOptions) (*results.SearchResults, error) {
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}
	if err := validateArenas(queries, target); err != nil {
		return nil, err
	}
	n := queries.Len()
	rowIndices := make([][]int, n)
	rowScores := make([][]float64, n)
	var firstErr error
	var mu sync.Mutex

	forEachQuery(n, opts.Workers, func(i int) {
		hits, err := ThresholdTanimotoSearchFP(queries.Fingerprint(i), target, threshold)
		if err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			return
		}
		idx := make([]int, len(hits))
		scores := make([]float64, len(hits))
		for j, h := range hits {
			scores[j] = h.Score
			idx[j] = h.Index
		}
		rowIndices[i] = idx
		rowScores[i] = scores
	})
	if firstErr != nil {
		return nil, firstErr
	}

	out := results.NewSearchResults(queryIDs(queries), targetIDs(target))
	for i := 0; i < n; i++ {
		out.AppendRow(rowIndices[i], rowScores[i])
	}
	return out, nil
}

// KNearestTanimotoSearchArena implements spec.md §6's
// knearest_tanimoto_search_arena.
func KNearestTanimotoSearchArena(queries, target *arena.Arena, k int, threshold float64, opts BatchOptions) (*results.SearchResults, error) {
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}
	if err := validateK(k); err != nil {
		return nil, err
	}
	if err := validateArenas(queries, target); err != nil {
		return nil, err
	}
	n := queries.Len()
	rowIndices := make([][]int, n)
	rowScores := make([][]float64, n)
	var firstErr error
	var mu sync.Mutex

	forEachQuery(n, opts.Workers, func(i int) {
		hits, err := KNearestTanimotoSearchFP(queries.Fingerprint(i), target, k, threshold)
		if err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			return
		}
		idx := make([]int, len(hits))
		scores := make([]float64, len(hits))
		for j, h := range hits {
			scores[j] = h.Score
			idx[j] = h.Index
		}
		rowIndices[i] = idx
		rowScores[i] = scores
	})
	if firstErr != nil {
		return nil, firstErr
	}

	out := results.NewSearchResults(queryIDs(queries), targetIDs(target))
	for i := 0; i < n; i++ {
		out.AppendRow(rowIndices[i], rowScores[i])
	}
	return out, nil
}
