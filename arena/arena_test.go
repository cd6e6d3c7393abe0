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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/chemfp/chemferr"
	"github.com/grailbio/chemfp/fptypes"
	"github.com/grailbio/chemfp/kernel"
)

func build(t *testing.T, records map[string]byte, opts BuildOptions) *Arena {
	t.Helper()
	b, err := NewBuilder(fptypes.Metadata{NumBits: 8, NumBytes: 1}, opts)
	require.NoError(t, err)
	// Deterministic insertion order.
	for _, id := range []string{"a", "b", "c"} {
		if v, ok := records[id]; ok {
			require.NoError(t, b.Add(id, []byte{v}))
		}
	}
	out, err := b.Build()
	require.NoError(t, err)
	return out
}

func TestBuildAndReadBack(t *testing.T) {
	a := build(t, map[string]byte{"a": 0x00, "b": 0x10, "c": 0x00}, BuildOptions{})
	require.Equal(t, 3, a.Len())
	for i, want := range []struct {
		id string
		fp byte
	}{{"a", 0x00}, {"b", 0x10}, {"c", 0x00}} {
		id, fp := a.Get(i)
		assert.Equal(t, want.id, id)
		assert.Equal(t, []byte{want.fp}, fp)
	}
}

func TestBuildRejectsWrongLengthFingerprint(t *testing.T) {
	b, err := NewBuilder(fptypes.Metadata{NumBits: 8, NumBytes: 1}, BuildOptions{})
	require.NoError(t, err)
	err = b.Add("x", []byte{0x00, 0x01})
	require.Error(t, err)
	assert.True(t, chemferr.Is(err, chemferr.InvalidFingerprint))
}

func TestAlignmentInvarianceOfRecordBytes(t *testing.T) {
	records := map[string]byte{"a": 0x00, "b": 0x10, "c": 0x00}
	var reference [][]byte
	for _, align := range []int{kernel.AlignNone, kernel.Align4, kernel.Align8, kernel.Align64} {
		a := build(t, records, BuildOptions{Alignment: align})
		var got [][]byte
		for i := 0; i < a.Len(); i++ {
			_, fp := a.Get(i)
			got = append(got, append([]byte(nil), fp...))
		}
		if reference == nil {
			reference = got
			continue
		}
		for i := range got {
			assert.True(t, bytes.Equal(reference[i], got[i]), "alignment %d record %d mismatch", align, i)
		}
	}
}

func TestSliceSharesStorageAndRejectsOutOfRange(t *testing.T) {
	a := build(t, map[string]byte{"a": 0x00, "b": 0x10, "c": 0x00}, BuildOptions{})
	v, err := a.Slice(1, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Len())
	id, fp := v.Get(0)
	assert.Equal(t, "b", id)
	assert.Equal(t, []byte{0x10}, fp)

	_, err = a.Slice(0, 4)
	require.Error(t, err)
	assert.True(t, chemferr.Is(err, chemferr.RangeError))

	_, err = a.Slice(0, 2, 2)
	require.Error(t, err)
	assert.True(t, chemferr.Is(err, chemferr.RangeError))
}

func TestPopcountIndexOnlyUsableWhenBucketAligned(t *testing.T) {
	// Records popcounts 0,1,0 -> sorted order puts the two 0s first.
	a := build(t, map[string]byte{"a": 0x00, "b": 0x10, "c": 0x00}, BuildOptions{Reorder: true})
	require.True(t, a.HasPopcountIndex())
	lo, hi := a.PopcountBucket(0)
	assert.Equal(t, 0, lo)
	assert.Equal(t, 2, hi)
	lo, hi = a.PopcountBucket(1)
	assert.Equal(t, 2, lo)
	assert.Equal(t, 3, hi)

	// A slice that straddles the bucket boundary is not bucket-aligned and
	// must not report a usable index.
	mid, err := a.Slice(1, 3)
	require.NoError(t, err)
	assert.False(t, mid.HasPopcountIndex())

	// A slice whose boundaries coincide with bucket boundaries inherits it.
	aligned, err := a.Slice(0, 2)
	require.NoError(t, err)
	assert.True(t, aligned.HasPopcountIndex())
}

func TestPopcountBucketIncludesAllOnesRecords(t *testing.T) {
	// Regression: a record with popcount == num_bits (all bits set) used to
	// fall in an empty bucket because the index had no upper bound beyond
	// idx[num_bits]. Popcounts here are 0, 8, 8, 1.
	b, err := NewBuilder(fptypes.Metadata{NumBits: 8, NumBytes: 1}, BuildOptions{Reorder: true})
	require.NoError(t, err)
	require.NoError(t, b.Add("a", []byte{0x00}))
	require.NoError(t, b.Add("b", []byte{0xff}))
	require.NoError(t, b.Add("c", []byte{0xff}))
	require.NoError(t, b.Add("d", []byte{0x01}))
	a, err := b.Build()
	require.NoError(t, err)
	require.True(t, a.HasPopcountIndex())

	lo, hi := a.PopcountBucket(8)
	assert.Equal(t, 2, hi-lo, "all-ones bucket must contain both all-ones records")
	for i := lo; i < hi; i++ {
		_, fp := a.Get(i)
		assert.Equal(t, []byte{0xff}, fp)
	}

	// Self-similarity via the popcount index: scanning only the bucket
	// PopcountBucket(8) reports must still find both all-ones records.
	matches := 0
	for i := lo; i < hi; i++ {
		_, fp := a.Get(i)
		if kernel.Tanimoto([]byte{0xff}, fp) == 1.0 {
			matches++
		}
	}
	assert.Equal(t, 2, matches)
}

func TestAddRejectsNonZeroPaddingBits(t *testing.T) {
	// num_bits=6 means only the low 6 bits of the single byte are live; bits
	// 6 and 7 are padding and must be zero.
	b, err := NewBuilder(fptypes.Metadata{NumBits: 6, NumBytes: 1}, BuildOptions{})
	require.NoError(t, err)
	err = b.Add("x", []byte{0x40}) // bit 6 set
	require.Error(t, err)
	assert.True(t, chemferr.Is(err, chemferr.InvalidFingerprint))

	require.NoError(t, b.Add("y", []byte{0x3f})) // all live bits set, no padding
}

func TestIterAndBlockIter(t *testing.T) {
	a := build(t, map[string]byte{"a": 0x00, "b": 0x10, "c": 0x00}, BuildOptions{})
	var ids []string
	it := a.Iter()
	for it.Next() {
		ids = append(ids, it.ID())
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	var blockLens []int
	bi := a.IterBlocks(2)
	for bi.Next() {
		blockLens = append(blockLens, bi.Arena().Len())
	}
	assert.Equal(t, []int{2, 1}, blockLens)
}

func TestWriteFPSRoundTrip(t *testing.T) {
	a := build(t, map[string]byte{"a": 0x00, "b": 0x10, "c": 0x00}, BuildOptions{})
	var buf bytes.Buffer
	require.NoError(t, a.WriteFPS(&buf))
	out := buf.String()
	assert.Contains(t, out, "FPS1\n")
	assert.Contains(t, out, "#num_bits=8\n")
	assert.Contains(t, out, "00\ta\n")
	assert.Contains(t, out, "10\tb\n")
	assert.Contains(t, out, "00\tc\n")
}
