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

package fpsio

import (
	"github.com/grailbio/chemfp/chemferr"
	"github.com/grailbio/chemfp/fptypes"
)

// hexVal decodes one ASCII hex digit, accepting both cases (spec.md §4.E:
// "uppercase accepted on input but normalized").
func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

// parseRecordLine validates and decodes one FPS record line of the form
// HEX<TAB>ID (spec.md §6), writing the decoded fingerprint into dst (which
// must have length numBytes) and returning the id. line must not include
// its trailing newline. Any bits past numBits in the final decoded byte
// must be zero (spec.md §3); a non-zero padding bit is an InvalidFingerprint,
// not a silently-wrong Tanimoto score.
func parseRecordLine(line []byte, numBits, numBytes int, dst []byte) (id string, err error) {
	hexLen := 2 * numBytes
	if len(line) < hexLen+2 || line[hexLen] != '\t' {
		return "", chemferr.E(chemferr.InvalidFingerprint, "record line does not have", hexLen, "hex characters followed by a tab")
	}
	for i := 0; i < numBytes; i++ {
		hi, ok1 := hexVal(line[2*i])
		lo, ok2 := hexVal(line[2*i+1])
		if !ok1 || !ok2 {
			return "", chemferr.E(chemferr.InvalidFingerprint, "non-hex character in fingerprint field")
		}
		dst[i] = hi<<4 | lo
	}
	if mask := fptypes.LastByteMask(numBits); dst[numBytes-1]&^mask != 0 {
		return "", chemferr.E(chemferr.InvalidFingerprint, "fingerprint has non-zero padding bits past num_bits")
	}
	idPart := line[hexLen+1:]
	if len(idPart) == 0 {
		return "", chemferr.E(chemferr.InvalidFingerprint, "record id is empty")
	}
	for _, c := range idPart {
		if c <= ' ' || c == 0x7f {
			return "", chemferr.E(chemferr.InvalidFingerprint, "record id contains whitespace or control characters")
		}
	}
	return string(idPart), nil
}
