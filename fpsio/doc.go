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

// Package fpsio implements the FPS text format of spec.md §6/§4.G (header
// parsing, hex record validation) and the line-oriented streaming search of
// spec.md §4.E, which performs count/threshold/k-nearest Tanimoto search
// directly against an FPS text stream without first building an arena.
//
// The stream is read in ~20 KiB blocks (DefaultBlockSize); a partial line at
// the end of a block is held over and prefixed to the next block, so no
// record line is ever split across a read. Because the stream is unordered,
// this path gets no popcount-bucket pruning; it drives the same package
// kernel bit kernels as package search's arena-backed path.
package fpsio
