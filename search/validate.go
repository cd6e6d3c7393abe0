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

// Package search implements the single-fingerprint and batched
// count/threshold/k-nearest Tanimoto search operations of spec.md §4.D/§6,
// driving package kernel's inner loops against popcount buckets exposed by
// package arena.
package search

import (
	"fmt"

	"github.com/grailbio/chemfp/arena"
	"github.com/grailbio/chemfp/chemferr"
)

// DefaultThreshold and DefaultK are the defaults named in spec.md §6. Go
// has no default-argument syntax, so callers pass these explicitly.
const (
	DefaultThreshold = 0.7
	DefaultK         = 3
)

func validateThreshold(threshold float64) error {
	if threshold < 0 || threshold > 1 {
		return chemferr.E(chemferr.RangeError, fmt.Sprintf("threshold %v not in [0, 1]", threshold))
	}
	return nil
}

func validateK(k int) error {
	if k < 0 {
		return chemferr.E(chemferr.RangeError, fmt.Sprintf("k %d must be >= 0", k))
	}
	return nil
}

func validateFP(fp []byte, target *arena.Arena) error {
	meta := target.Metadata()
	if len(fp) != meta.NumBytes {
		return chemferr.E(chemferr.SizeMismatch,
			fmt.Sprintf("query fingerprint has %d bytes, target arena expects %d (num_bits=%d)", len(fp), meta.NumBytes, meta.NumBits))
	}
	return nil
}

func validateArenas(queries, target *arena.Arena) error {
	qm, tm := queries.Metadata(), target.Metadata()
	if qm.NumBits != tm.NumBits || qm.NumBytes != tm.NumBytes {
		return chemferr.E(chemferr.SizeMismatch,
			fmt.Sprintf("query arena num_bits=%d/num_bytes=%d does not match target num_bits=%d/num_bytes=%d",
				qm.NumBits, qm.NumBytes, tm.NumBits, tm.NumBytes))
	}
	return nil
}
