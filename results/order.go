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

// Order names a row reordering, matching the six orders of spec.md §4.F
// (originally chemfp's SearchResult.reorder_all). The two score orders break
// ties by increasing id; the other orders use no secondary key.
type Order int

const (
	// DecreasingScore sorts hits by score descending, ties by id ascending.
	DecreasingScore Order = iota
	// IncreasingScore sorts hits by score ascending, ties by id ascending.
	IncreasingScore
	// DecreasingID sorts hits by id descending.
	DecreasingID
	// IncreasingID sorts hits by id ascending.
	IncreasingID
	// Reverse reverses the row's current order without looking at id or
	// score.
	Reverse
	// MoveClosestFirst moves the single highest-scoring hit to the front,
	// leaving the rest in their existing order (ties broken by the first
	// such hit encountered).
	MoveClosestFirst
)

// lessFuncFor returns a Less function suitable for sort.SliceStable(perm,
// ...): positions i, j are current positions within perm, so the
// comparator must dereference perm[i]/perm[j] to reach the original
// row-local position (and from there the index/score/id), never compare i
// and j directly as if they were stable identifiers.
func lessFuncFor(order Order, perm []int, indices []int, scores []float64, targetIDs []string) func(i, j int) bool {
	id := func(origPos int) string { return targetIDs[indices[origPos]] }
	switch order {
	case DecreasingScore:
		return func(i, j int) bool {
			oi, oj := perm[i], perm[j]
			if scores[oi] != scores[oj] {
				return scores[oi] > scores[oj]
			}
			return id(oi) < id(oj)
		}
	case IncreasingScore:
		return func(i, j int) bool {
			oi, oj := perm[i], perm[j]
			if scores[oi] != scores[oj] {
				return scores[oi] < scores[oj]
			}
			return id(oi) < id(oj)
		}
	case DecreasingID:
		return func(i, j int) bool { return id(perm[i]) > id(perm[j]) }
	case IncreasingID:
		return func(i, j int) bool { return id(perm[i]) < id(perm[j]) }
	case Reverse:
		return func(i, j int) bool { return perm[i] > perm[j] }
	case MoveClosestFirst:
		best := 0
		for k := 1; k < len(scores); k++ {
			if scores[k] > scores[best] {
				best = k
			}
		}
		return func(i, j int) bool {
			oi, oj := perm[i], perm[j]
			if oi == best {
				return oj != best
			}
			if oj == best {
				return false
			}
			return oi < oj
		}
	default:
		return func(i, j int) bool { return perm[i] < perm[j] }
	}
}
