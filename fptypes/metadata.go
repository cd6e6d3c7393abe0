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

// Package fptypes holds the small value types shared between the arena
// builder, the search engine, and the FPS reader/writer: fingerprint
// collection metadata and the structure-fingerprinter collaborator
// interface named in spec.md §6.
package fptypes

import (
	"github.com/grailbio/chemfp/chemferr"
)

// Metadata describes a collection of fingerprints, mirroring
// original_source/chemfp/types.py's Metadata record. It is immutable once
// constructed.
type Metadata struct {
	NumBits     int
	NumBytes    int
	Type        string   // fingerprint-type string, e.g. "RDMACCS-MACCS166/2"
	Software    string
	Sources     []string
	Date        string
	Aromaticity string // optional; "" if unset
}

// NumBytesFor returns ceil(numBits/8).
func NumBytesFor(numBits int) int {
	return (numBits + 7) / 8
}

// LastByteMask returns the mask of valid (non-padding) bits in a
// fingerprint's final byte, per spec.md §3's little-endian-within-byte
// layout (bit i lives in byte i/8, bit position i%8, bit 0 = LSB): the
// low numBits%8 bit positions are live data, the rest must be zero. It
// returns 0xff when numBits is a multiple of 8, i.e. there is no padding.
func LastByteMask(numBits int) byte {
	if rem := numBits % 8; rem != 0 {
		return byte(1<<uint(rem)) - 1
	}
	return 0xff
}

// Validate checks the invariant num_bytes == ceil(num_bits/8) and that
// num_bits is positive, per spec.md §3 and §4.B's builder failure modes.
func (m Metadata) Validate() error {
	if m.NumBits <= 0 {
		return chemferr.E(chemferr.InvalidHeader, "num_bits must be positive, got", m.NumBits)
	}
	if m.NumBytes != NumBytesFor(m.NumBits) {
		return chemferr.E(chemferr.InvalidHeader, "num_bytes", m.NumBytes, "does not match ceil(num_bits/8) for num_bits", m.NumBits)
	}
	return nil
}

// FPSource is the structure-fingerprinter collaborator interface: an
// iterator of (id, fingerprint) pairs feeding the arena builder. Concrete
// implementations (SDF/SMILES readers, toolkit fingerprinters) live outside
// this module's scope; only this interface is specified, per spec.md §6.
type FPSource interface {
	// Metadata describes the fingerprints this source yields.
	Metadata() Metadata
	// Next returns the next (id, fingerprint) pair. fp has length
	// Metadata().NumBytes. It returns io.EOF (or an error satisfying
	// errors.Is(err, io.EOF)) when exhausted.
	Next() (id string, fp []byte, err error)
}
