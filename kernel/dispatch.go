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

import "math/bits"

func onesCount64(x uint64) int { return bits.OnesCount64(x) }

// strategy bundles a popcount and an intersect-popcount implementation that
// are guaranteed to agree with every other strategy bit-for-bit.
type strategy struct {
	name      string
	popcount  func([]byte) int
	intersect func(a, b []byte) int
}

var (
	strategyHW     = strategy{"popcnt", hwPopcount, hwIntersect}
	strategySWAR   = strategy{"swar", swarPopcount, swarIntersect}
	strategyNibble = strategy{"nibble", nibblePopcount, nibbleIntersect}
)

// Alignment bytes recognized by the arena builder.
const (
	AlignNone = 1
	Align4    = 4
	Align8    = 8
	Align64   = 64
)

// AutoAlignment implements the alignment-selection table of spec.md §4.A:
// the alignment chosen is whichever lets the fastest available kernel apply
// to a fingerprint of the given bit length.
func AutoAlignment(numBits int) int {
	switch {
	case numBits <= 8:
		return AlignNone
	case numBits <= 32:
		return Align4
	case numBits <= 224:
		return Align8
	case hasPOPCNT:
		return Align8
	case !hasSSSE3:
		return Align8
	default:
		return Align64
	}
}

// selectStrategy picks the kernel strategy for a fingerprint of the given
// byte length, per spec.md §4.A's described dispatch: hardware POPCNT when
// available, the SSSE3-style nibble-lookup kernel for wide (>=512-bit,
// i.e. >=64-byte) fingerprints when POPCNT is unavailable but SSSE3 is, and
// the portable SWAR fallback otherwise. numBytes, not the arena's storage
// alignment, decides this: alignment governs layout, not which scalar
// strategy is correct to run.
func selectStrategy(numBytes int) strategy {
	if hasPOPCNT {
		return strategyHW
	}
	if numBytes >= 64 && hasSSSE3 {
		return strategyNibble
	}
	return strategySWAR
}
