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

// +build amd64,!appengine

package kernel

import "golang.org/x/sys/cpu"

// CPU feature flags set at package init, mirroring the teacher's biosimd
// capability probing and the pack's coregx-coregex/simd dispatch pattern.
var (
	hasPOPCNT = cpu.X86.HasPOPCNT
	hasSSSE3  = cpu.X86.HasSSSE3
)
