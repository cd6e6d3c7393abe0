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

package kernel

// Block is a read-only view of contiguous, fixed-stride fingerprint
// records, the shape in which an arena exposes its backing storage to the
// kernel layer. Record i occupies Data[i*Stride : i*Stride+NumBytes];
// bytes [NumBytes, Stride) of every record are padding and assumed zero.
type Block struct {
	Data     []byte
	Stride   int
	NumBytes int
}

// Record returns the raw bytes of record i (length NumBytes, no padding).
func (b Block) Record(i int) []byte {
	off := i * b.Stride
	return b.Data[off : off+b.NumBytes]
}

// ScoreSink receives (index, score) pairs from KNearestHits. Implemented by
// package results' bounded min-heap; declared here, not there, so this
// package stays free of a dependency on the result-container package.
type ScoreSink interface {
	// Offer proposes index/score for admission. It returns true if the
	// sink's effective threshold may have risen as a result (letting the
	// caller shrink its popcount-bucket scan range), matching spec.md
	// §4.D's "update the effective threshold... recompute [p_lo, p_hi]".
	Offer(index int, score float64) (raisedThreshold bool)
	// Threshold returns the sink's current effective admission threshold.
	Threshold() float64
}

// PopcountOf supplies the popcount of record i in a scan, letting a caller
// that knows it (e.g. every record in a popcount-sorted bucket shares one
// popcount) avoid recomputing it. PopcountFromBlock below is the fallback
// for unindexed/unsorted scans.
type PopcountOf func(i int) int

// PopcountFromBlock returns a PopcountOf that computes each record's
// popcount on demand, for the fallback linear scan used when an arena view
// has no popcount index (spec.md §4.C).
func PopcountFromBlock(block Block) PopcountOf {
	return func(i int) int { return Popcount(block.Record(i)) }
}

// ConstantPopcount returns a PopcountOf reporting p for every index, the
// fast path when the scan range is entirely within one popcount bucket.
func ConstantPopcount(p int) PopcountOf {
	return func(int) int { return p }
}

// CountHits counts records in block[start:end] whose Tanimoto similarity to
// query is >= threshold.
func CountHits(query []byte, queryPopcount int, block Block, start, end int, threshold float64, popcountOf PopcountOf) int {
	n := 0
	for i := start; i < end; i++ {
		if TanimotoPopcounts(query, block.Record(i), queryPopcount, popcountOf(i)) >= threshold {
			n++
		}
	}
	return n
}

// ThresholdHits appends (index, score) for every record in block[start:end]
// scoring >= threshold, in ascending-index order, to outIndices/outScores,
// returning the extended slices. This is the "growable per-row vectors"
// alternative to a resumable fixed-cell-array kernel permitted by spec.md's
// design notes: the arena search path always has a bounded, known-size
// block to scan, so there is no need for a resume cursor here. Package
// fpsio's streaming threshold search has no resume cursor either; it also
// appends hits to growable per-query rows.
func ThresholdHits(query []byte, queryPopcount int, block Block, start, end int, threshold float64, outIndices []int, outScores []float64, popcountOf PopcountOf) ([]int, []float64) {
	for i := start; i < end; i++ {
		score := TanimotoPopcounts(query, block.Record(i), queryPopcount, popcountOf(i))
		if score >= threshold {
			outIndices = append(outIndices, i)
			outScores = append(outScores, score)
		}
	}
	return outIndices, outScores
}

// KNearestHits offers every record in block[start:end] scoring at or above
// the sink's current effective threshold to sink, in ascending-index order. It
// returns true if admitting any record raised the sink's effective
// threshold (letting a bucket-fanout caller shrink its remaining range).
func KNearestHits(query []byte, queryPopcount int, block Block, start, end int, popcountOf PopcountOf, sink ScoreSink) (raised bool) {
	for i := start; i < end; i++ {
		score := TanimotoPopcounts(query, block.Record(i), queryPopcount, popcountOf(i))
		if score < sink.Threshold() {
			continue
		}
		if sink.Offer(i, score) {
			raised = true
		}
	}
	return raised
}
