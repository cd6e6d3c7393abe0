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

// Package kernel implements the innermost bit operations of the fingerprint
// search engine: population count, the Tanimoto coefficient, and the
// block-scanning routines (count/threshold/k-nearest) that the search
// package drives against an arena's backing storage.
//
// A fingerprint is represented as a plain []byte of some known, fixed
// length; any bits past num_bits in the final byte are assumed zero by every
// function here (the arena builder guarantees this; see package arena).
//
// The popcount strategy is chosen on each Popcount/Intersect call from the
// fingerprint's byte length and the CPU capability flags probed at package
// init (the arena's alignment plays no part), following the same shape
// as the teacher's biosimd capability-probing init() and the pack's
// coregx-coregex/simd dispatch (cpu feature flags gating which scalar/vector
// path runs). This module ships pure-Go strategies only — no hand-written
// assembly — so "SIMD dispatch" here selects between algorithmically
// distinct scalar strategies (hardware-popcnt word loop, portable SWAR
// fallback, nibble-lookup-table) rather than between vector widths; all
// three are required to agree exactly, which is what the spec's alignment-
// invariance property tests for.
package kernel
