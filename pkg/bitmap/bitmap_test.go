// Copyright 2019 Intel Corporation. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package bitmap_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jamestiotio/selectcore/pkg/bitmap"
)

func TestSetClear(t *testing.T) {
	b := bitmap.New(8)
	require.True(t, b.IsEmpty())

	b.Set(3)
	b.Set(5)
	require.True(t, b.IsSet(3))
	require.True(t, b.IsSet(5))
	require.Equal(t, 2, b.Count())

	b.Clear(3)
	require.False(t, b.IsSet(3))
	require.Equal(t, 1, b.Count())
}

func TestSetOutOfRangeIgnored(t *testing.T) {
	b := bitmap.New(4)
	b.Set(10)
	require.True(t, b.IsEmpty())
}

func TestFirstLastSet(t *testing.T) {
	b := bitmap.FromSlice(8, []int{2, 5, 7})
	require.Equal(t, 2, b.FirstSet())
	require.Equal(t, 7, b.LastSet())

	empty := bitmap.New(8)
	require.Equal(t, -1, empty.FirstSet())
	require.Equal(t, -1, empty.LastSet())
}

func TestAndOrSub(t *testing.T) {
	a := bitmap.FromSlice(8, []int{0, 1, 2, 3})
	b := bitmap.FromSlice(8, []int{2, 3, 4, 5})

	require.ElementsMatch(t, []int{2, 3}, a.And(b).List())
	require.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5}, a.Or(b).List())
	require.ElementsMatch(t, []int{0, 1}, a.Sub(b).List())
}

func TestSupersetOverlap(t *testing.T) {
	whole := bitmap.FromSlice(8, []int{0, 1, 2, 3, 4})
	part := bitmap.FromSlice(8, []int{1, 3})
	disjoint := bitmap.FromSlice(8, []int{6, 7})

	require.True(t, whole.IsSuperset(part))
	require.False(t, part.IsSuperset(whole))
	require.True(t, whole.Overlaps(part))
	require.False(t, whole.Overlaps(disjoint))
}

func TestCloneIndependence(t *testing.T) {
	a := bitmap.FromSlice(8, []int{1, 2})
	b := a.Clone()
	b.Set(5)

	require.False(t, a.IsSet(5))
	require.True(t, b.IsSet(5))
}

func TestPickN(t *testing.T) {
	a := bitmap.FromSlice(8, []int{0, 2, 4, 6})

	require.Equal(t, []int{0, 2}, a.PickN(2).List())
	require.Equal(t, []int{0, 2, 4, 6}, a.PickN(10).List())
}

func TestNewFull(t *testing.T) {
	a := bitmap.NewFull(5)
	require.Equal(t, 5, a.Count())
	require.Equal(t, []int{0, 1, 2, 3, 4}, a.List())
}

func TestEqual(t *testing.T) {
	a := bitmap.FromSlice(8, []int{1, 2, 3})
	b := bitmap.FromSlice(8, []int{3, 2, 1})
	c := bitmap.FromSlice(8, []int{1, 2})

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}

func TestStringRanges(t *testing.T) {
	a := bitmap.FromSlice(10, []int{0, 1, 2, 5, 7, 8})
	require.Equal(t, "0-2,5,7-8", a.String())

	require.Equal(t, "<empty>", bitmap.New(4).String())
}
