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

// Popcount returns the number of set bits in fp. Any bytes past num_bits in
// the final byte are assumed zero by the caller (the arena builder and the
// FPS decoder both guarantee this).
func Popcount(fp []byte) int {
	return selectStrategy(len(fp)).popcount(fp)
}

// Intersect returns the number of bits set in both a and b. a and b must
// have equal length.
func Intersect(a, b []byte) int {
	return selectStrategy(len(a)).intersect(a, b)
}
