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
	"io"

	"github.com/grailbio/chemfp/fptypes"
)

// Source adapts an FPS text stream to fptypes.FPSource (spec.md §6's
// inbound collaborator interface), letting arena.Builder.AddAll consume an
// FPS file directly without any chemistry-toolkit dependency.
type Source struct {
	*streamBase
}

// NewSource parses r's FPS1 header and returns a Source ready for
// arena.Builder.AddAll. name is used only for error messages.
func NewSource(r io.Reader, name string) (*Source, error) {
	sb, err := newStreamBase(r, name, DefaultBlockSize)
	if err != nil {
		return nil, err
	}
	return &Source{sb}, nil
}

// Next implements fptypes.FPSource.
func (s *Source) Next() (id string, fp []byte, err error) {
	dst := make([]byte, s.meta.NumBytes)
	id, err = s.nextRecord(dst)
	if err != nil {
		return "", nil, err
	}
	return id, dst, nil
}
