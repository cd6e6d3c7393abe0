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

// Tanimoto returns |a ∩ b| / |a ∪ b| for two equal-length fingerprints,
// computed as intersect / (popcount(a) + popcount(b) - intersect). Per
// spec.md §4.A, two all-zero fingerprints are defined to have Tanimoto 0.0,
// not 1.0 or NaN.
func Tanimoto(a, b []byte) float64 {
	return TanimotoPopcounts(a, b, Popcount(a), Popcount(b))
}

// TanimotoPopcounts is Tanimoto with the popcounts of a and b supplied by
// the caller, avoiding recomputation when scanning many targets against one
// query (the query's popcount is invariant across a scan; a popcount-sorted
// arena also precomputes every target's popcount once).
func TanimotoPopcounts(a, b []byte, popA, popB int) float64 {
	if popA == 0 && popB == 0 {
		return 0.0
	}
	c := Intersect(a, b)
	union := popA + popB - c
	if union == 0 {
		return 0.0
	}
	return float64(c) / float64(union)
}

// PopcountBounds computes the inclusive range of target popcounts that can
// possibly satisfy tanimoto(query, target) >= threshold, given the query's
// popcount q and num_bits bits of fingerprint width. It implements the
// bound derived in spec.md §4.D: tanimoto <= min(p,q)/max(p,q), so
// min(p,q)/max(p,q) < t rules p out.
//
// threshold <= 0 admits every popcount (every target scores >= 0 trivially),
// so PopcountBounds returns the full [0, numBits] range in that case,
// including when q == 0. If q == 0 and threshold > 0, no target can
// possibly match (an all-zero query scores exactly 0.0 against anything),
// but PopcountBounds conservatively reports the degenerate range [0,0]
// rather than a provably-empty one; this is sound (never excludes a real
// hit) and the one case where it scans a bucket it didn't need to.
func PopcountBounds(q, numBits int, threshold float64) (lo, hi int) {
	if threshold <= 0 {
		return 0, numBits
	}
	if q == 0 {
		return 0, 0
	}
	// p/q >= t  =>  p >= t*q  (candidate could have p <= q)
	// q/p >= t  =>  p <= q/t  (candidate could have p >= q)
	const eps = 1e-9
	loF := float64(q) * threshold
	lo = int(loF)
	if float64(lo) < loF-eps {
		lo++
	}
	hiF := float64(q) / threshold
	hi = int(hiF + eps)
	if lo < 0 {
		lo = 0
	}
	if hi > numBits {
		hi = numBits
	}
	if lo > numBits {
		lo = numBits + 1 // empty range
	}
	return lo, hi
}
