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
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/chemfp/chemferr"
	"github.com/grailbio/chemfp/fptypes"
)

const magic = "FPS1"

// Header holds the recognized key=value pairs from an FPS file's header
// lines (spec.md §4.G/§6). NumBits is 0 if the header omitted it; the
// caller infers it from the first record line in that case.
type Header struct {
	NumBits  int
	Type     string
	Software string
	Source   []string
	Date     string
}

func metadataFromHeader(h Header, numBits, numBytes int) fptypes.Metadata {
	return fptypes.Metadata{
		NumBits:  numBits,
		NumBytes: numBytes,
		Type:     h.Type,
		Software: h.Software,
		Sources:  h.Source,
		Date:     h.Date,
	}
}

// readHeader consumes the FPS1 magic line and subsequent #-prefixed header
// lines from r, returning the parsed Header and a reader positioned at the
// first record line (or at EOF, for an empty stream). Unknown keys are
// tolerated per spec.md §6; a key=value line missing '=' is also tolerated
// as an unrecognized comment, but a missing magic line is a hard failure.
func readHeader(r io.Reader, filename string) (Header, io.Reader, error) {
	br := bufio.NewReader(r)
	magicLine, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return Header{}, nil, chemferr.E(chemferr.IoError, err)
	}
	if strings.TrimRight(magicLine, "\r\n") != magic {
		return Header{}, nil, chemferr.AtLine(chemferr.E(chemferr.InvalidHeader, "file does not start with the FPS1 magic line"), filename, 1)
	}

	var h Header
	lineNo := 1
	for {
		peeked, peekErr := br.Peek(1)
		if peekErr != nil {
			return h, br, nil
		}
		if peeked[0] != '#' {
			return h, br, nil
		}
		line, err := br.ReadString('\n')
		lineNo++
		if err != nil && err != io.EOF {
			return h, nil, chemferr.AtLine(chemferr.E(chemferr.IoError, err), filename, lineNo)
		}
		body := strings.TrimRight(strings.TrimPrefix(line, "#"), "\r\n")
		eq := strings.IndexByte(body, '=')
		if eq < 0 {
			continue
		}
		key, val := body[:eq], body[eq+1:]
		switch key {
		case "num_bits":
			n, convErr := strconv.Atoi(val)
			if convErr != nil || n <= 0 {
				return h, nil, chemferr.AtLine(chemferr.E(chemferr.InvalidHeader, "num_bits=", val, "is not a positive integer"), filename, lineNo)
			}
			h.NumBits = n
		case "type":
			h.Type = val
		case "software":
			h.Software = val
		case "source":
			h.Source = append(h.Source, val)
		case "date":
			h.Date = val
		}
	}
}
