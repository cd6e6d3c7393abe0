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

package search_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/chemfp/arena"
	"github.com/grailbio/chemfp/chemferr"
	"github.com/grailbio/chemfp/fptypes"
	"github.com/grailbio/chemfp/search"
)

func buildArena(t *testing.T, opts arena.BuildOptions, records map[string]byte) *arena.Arena {
	t.Helper()
	b, err := arena.NewBuilder(fptypes.Metadata{NumBits: 8, NumBytes: 1}, opts)
	require.NoError(t, err)
	for _, id := range []string{"a", "b", "c"} {
		if v, ok := records[id]; ok {
			require.NoError(t, b.Add(id, []byte{v}))
		}
	}
	out, err := b.Build()
	require.NoError(t, err)
	return out
}

// Concrete scenario 1: 8-bit arena of three records, query 00, threshold
// 0.0: all three hit; count = 3; k-nearest k=3 returns all three, score 0.
func TestScenario1AllZeroThresholdAllHit(t *testing.T) {
	target := buildArena(t, arena.BuildOptions{Reorder: true}, map[string]byte{"a": 0x00, "b": 0x10, "c": 0x00})
	query := []byte{0x00}

	n, err := search.CountTanimotoHitsFP(query, target, 0.0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	hits, err := search.ThresholdTanimotoSearchFP(query, target, 0.0)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
	for _, h := range hits {
		assert.Equal(t, 0.0, h.Score)
	}

	kn, err := search.KNearestTanimotoSearchFP(query, target, 3, 0.0)
	require.NoError(t, err)
	assert.Len(t, kn, 3)
}

// Concrete scenario 2: same arena, query 00, threshold 1e-9: 0 hits.
func TestScenario2TinyPositiveThresholdZeroHits(t *testing.T) {
	target := buildArena(t, arena.BuildOptions{Reorder: true}, map[string]byte{"a": 0x00, "b": 0x10, "c": 0x00})
	n, err := search.CountTanimotoHitsFP([]byte{0x00}, target, 1e-9)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestThresholdOutOfRangeIsRangeError(t *testing.T) {
	target := buildArena(t, arena.BuildOptions{}, map[string]byte{"a": 0x00})
	_, err := search.CountTanimotoHitsFP([]byte{0x00}, target, 1.5)
	require.Error(t, err)
	assert.True(t, chemferr.Is(err, chemferr.RangeError))

	_, err = search.KNearestTanimotoSearchFP([]byte{0x00}, target, -1, 0.5)
	require.Error(t, err)
	assert.True(t, chemferr.Is(err, chemferr.RangeError))
}

func TestSizeMismatchIsRejected(t *testing.T) {
	target := buildArena(t, arena.BuildOptions{}, map[string]byte{"a": 0x00})
	_, err := search.CountTanimotoHitsFP([]byte{0x00, 0x00}, target, 0.5)
	require.Error(t, err)
	assert.True(t, chemferr.Is(err, chemferr.SizeMismatch))
}

func TestEmptyArenaYieldsEmptyNotError(t *testing.T) {
	b, err := arena.NewBuilder(fptypes.Metadata{NumBits: 8, NumBytes: 1}, arena.BuildOptions{})
	require.NoError(t, err)
	empty, err := b.Build()
	require.NoError(t, err)

	n, err := search.CountTanimotoHitsFP([]byte{0x00}, empty, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	hits, err := search.ThresholdTanimotoSearchFP([]byte{0x00}, empty, 0.5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func randFP(n int, r *rand.Rand) []byte {
	b := make([]byte, n)
	r.Read(b)
	return b
}

// Popcount-bound soundness: pruning enabled (Reorder:true) or disabled must
// yield identical hit counts at every threshold.
func TestPopcountPruningSoundness(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	const numBytes = 21
	meta := fptypes.Metadata{NumBits: numBytes * 8, NumBytes: numBytes}

	build := func(opts arena.BuildOptions) *arena.Arena {
		b, err := arena.NewBuilder(meta, opts)
		require.NoError(t, err)
		rr := rand.New(rand.NewSource(7))
		for i := 0; i < 200; i++ {
			require.NoError(t, b.Add(string(rune('A'+i%26))+string(rune(i)), randFP(numBytes, rr)))
		}
		out, err := b.Build()
		require.NoError(t, err)
		return out
	}

	sorted := build(arena.BuildOptions{Reorder: true})
	unsorted := build(arena.BuildOptions{Reorder: false})
	query := randFP(numBytes, r)

	for _, th := range []float64{0.0, 0.3, 0.7, 0.9} {
		nSorted, err := search.CountTanimotoHitsFP(query, sorted, th)
		require.NoError(t, err)
		nUnsorted, err := search.CountTanimotoHitsFP(query, unsorted, th)
		require.NoError(t, err)
		assert.Equal(t, nUnsorted, nSorted, "threshold=%v", th)
	}
}

// Slicing: count/threshold results over a[i:j] equal those obtained by
// filtering full-arena results to indices in [i,j).
func TestSlicingConsistency(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	const numBytes = 8
	meta := fptypes.Metadata{NumBits: numBytes * 8, NumBytes: numBytes}
	b, err := arena.NewBuilder(meta, arena.BuildOptions{})
	require.NoError(t, err)
	for i := 0; i < 30; i++ {
		require.NoError(t, b.Add(string(rune('a'+i)), randFP(numBytes, r)))
	}
	full, err := b.Build()
	require.NoError(t, err)

	sub, err := full.Slice(5, 15)
	require.NoError(t, err)

	query := randFP(numBytes, r)
	fullHits, err := search.ThresholdTanimotoSearchFP(query, full, 0.0)
	require.NoError(t, err)
	subHits, err := search.ThresholdTanimotoSearchFP(query, sub, 0.0)
	require.NoError(t, err)

	wantIDs := make(map[string]float64)
	for _, h := range fullHits {
		if h.Index >= 5 && h.Index < 15 {
			wantIDs[h.ID] = h.Score
		}
	}
	gotIDs := make(map[string]float64)
	for _, h := range subHits {
		gotIDs[h.ID] = h.Score
	}
	assert.Equal(t, wantIDs, gotIDs)
}

// Batch scenario: query arena of several records against one target;
// CountTanimotoHitsArena must agree with the per-fp search for every row,
// with and without worker fan-out.
func TestBatchAgreesWithPerFPSearch(t *testing.T) {
	r := rand.New(rand.NewSource(21))
	const numBytes = 8
	meta := fptypes.Metadata{NumBits: numBytes * 8, NumBytes: numBytes}

	tb, err := arena.NewBuilder(meta, arena.BuildOptions{Reorder: true})
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		require.NoError(t, tb.Add(string(rune('a'+i%26))+string(rune(i)), randFP(numBytes, r)))
	}
	target, err := tb.Build()
	require.NoError(t, err)

	qb, err := arena.NewBuilder(meta, arena.BuildOptions{})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, qb.Add(string(rune('q'+i)), randFP(numBytes, r)))
	}
	queries, err := qb.Build()
	require.NoError(t, err)

	for _, workers := range []int{0, 4} {
		counts, err := search.CountTanimotoHitsArena(queries, target, 0.5, search.BatchOptions{Workers: workers})
		require.NoError(t, err)
		for i := 0; i < queries.Len(); i++ {
			want, err := search.CountTanimotoHitsFP(queries.Fingerprint(i), target, 0.5)
			require.NoError(t, err)
			assert.Equal(t, want, counts[i], "workers=%d row=%d", workers, i)
		}

		res, err := search.ThresholdTanimotoSearchArena(queries, target, 0.5, search.BatchOptions{Workers: workers})
		require.NoError(t, err)
		require.Equal(t, queries.Len(), res.Len())
		for i := 0; i < res.Len(); i++ {
			assert.Equal(t, counts[i], res.Size(i))
		}
	}
}

// k-nearest prefix: knearest(k, t) is a prefix of threshold(t) after
// sorting by (score desc, id asc).
func TestKNearestIsPrefixOfThreshold(t *testing.T) {
	r := rand.New(rand.NewSource(99))
	const numBytes = 8
	meta := fptypes.Metadata{NumBits: numBytes * 8, NumBytes: numBytes}
	b, err := arena.NewBuilder(meta, arena.BuildOptions{Reorder: true})
	require.NoError(t, err)
	for i := 0; i < 80; i++ {
		require.NoError(t, b.Add(string(rune('a'+i%26))+string(rune(i)), randFP(numBytes, r)))
	}
	target, err := b.Build()
	require.NoError(t, err)
	query := randFP(numBytes, r)

	const k = 5
	kn, err := search.KNearestTanimotoSearchFP(query, target, k, 0.0)
	require.NoError(t, err)

	th, err := search.ThresholdTanimotoSearchFP(query, target, 0.0)
	require.NoError(t, err)
	sortByScoreDescIDAsc(th)
	sortByScoreDescIDAsc(kn)

	require.True(t, len(kn) <= len(th))
	for i := range kn {
		assert.Equal(t, th[i].ID, kn[i].ID)
		assert.InDelta(t, th[i].Score, kn[i].Score, 1e-12)
	}
}

func sortByScoreDescIDAsc(hits []search.Hit) {
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0; j-- {
			a, b := hits[j-1], hits[j]
			less := b.Score > a.Score || (b.Score == a.Score && b.ID < a.ID)
			if !less {
				break
			}
			hits[j-1], hits[j] = hits[j], hits[j-1]
		}
	}
}
