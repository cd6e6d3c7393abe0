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
	"bytes"
	"io"

	"github.com/grailbio/chemfp/chemferr"
	"github.com/grailbio/chemfp/fptypes"
)

// streamBase is the shared header-then-blocked-lines machinery behind both
// Source (the fptypes.FPSource adapter) and StreamSearcher (the streaming
// search engine): parse the header, then hand out record lines one at a
// time off the underlying blockLineReader, inferring num_bits from the
// first record when the header omitted it.
type streamBase struct {
	meta    fptypes.Metadata
	br      *blockLineReader
	pending [][]byte
	name    string
	lineNo  int
}

func newStreamBase(r io.Reader, name string, blockSize int) (*streamBase, error) {
	h, rest, err := readHeader(r, name)
	if err != nil {
		return nil, err
	}
	sb := &streamBase{name: name, br: newBlockLineReader(rest, blockSize)}

	if h.NumBits > 0 {
		sb.meta = metadataFromHeader(h, h.NumBits, fptypes.NumBytesFor(h.NumBits))
		return sb, nil
	}

	line, err := sb.nextLine()
	if err == io.EOF {
		return nil, chemferr.E(chemferr.InvalidHeader, "num_bits is absent from the header and the stream has no records to infer it from")
	}
	if err != nil {
		return nil, err
	}
	tab := bytes.IndexByte(line, '\t')
	if tab <= 0 || tab%2 != 0 {
		return nil, chemferr.AtLine(chemferr.E(chemferr.InvalidFingerprint, "cannot infer num_bits: malformed first record line"), name, sb.lineNo)
	}
	numBytes := tab / 2
	sb.meta = metadataFromHeader(h, numBytes*8, numBytes)
	sb.pending = append(sb.pending, line)
	return sb, nil
}

// Metadata returns the fingerprint collection metadata, resolved either
// from the header or inferred from the first record.
func (sb *streamBase) Metadata() fptypes.Metadata { return sb.meta }

func (sb *streamBase) nextLine() ([]byte, error) {
	for len(sb.pending) == 0 {
		lines, err := sb.br.nextLines()
		if err != nil {
			return nil, err
		}
		sb.pending = lines
	}
	line := sb.pending[0]
	sb.pending = sb.pending[1:]
	sb.lineNo++
	return line, nil
}

// nextRecord decodes the next record line into dst (length meta.NumBytes),
// returning its id. It returns io.EOF once the stream is exhausted.
func (sb *streamBase) nextRecord(dst []byte) (id string, err error) {
	line, err := sb.nextLine()
	if err != nil {
		return "", err
	}
	id, decErr := parseRecordLine(line, sb.meta.NumBits, sb.meta.NumBytes, dst)
	if decErr != nil {
		return "", chemferr.AtLine(decErr, sb.name, sb.lineNo)
	}
	return id, nil
}
