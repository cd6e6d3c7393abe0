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

package arena

import (
	"bufio"
	"fmt"
	"io"
)

const hexDigits = "0123456789abcdef"

// WriteFPS serializes this view back to the FPS text format (spec.md §6
// "Persisted state": "An arena may be serialized back to FPS by iterating
// records."), in arena record order.
func (a *Arena) WriteFPS(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := io.WriteString(bw, "FPS1\n"); err != nil {
		return err
	}
	meta := a.Metadata()
	if _, err := fmt.Fprintf(bw, "#num_bits=%d\n", meta.NumBits); err != nil {
		return err
	}
	if meta.Type != "" {
		if _, err := fmt.Fprintf(bw, "#type=%s\n", meta.Type); err != nil {
			return err
		}
	}
	if meta.Software != "" {
		if _, err := fmt.Fprintf(bw, "#software=%s\n", meta.Software); err != nil {
			return err
		}
	}
	for _, src := range meta.Sources {
		if _, err := fmt.Fprintf(bw, "#source=%s\n", src); err != nil {
			return err
		}
	}
	if meta.Date != "" {
		if _, err := fmt.Fprintf(bw, "#date=%s\n", meta.Date); err != nil {
			return err
		}
	}

	line := make([]byte, 0, 2*meta.NumBytes+1+32)
	for i := 0; i < a.Len(); i++ {
		id, fp := a.Get(i)
		line = line[:0]
		for _, b := range fp {
			line = append(line, hexDigits[b>>4], hexDigits[b&0xf])
		}
		line = append(line, '\t')
		line = append(line, id...)
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}
