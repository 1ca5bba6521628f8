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

// Package bitmap implements the fixed-width node-index bit-set used
// throughout the node-selection core. It is a thin wrapper around
// k8s.io/utils/cpuset.CPUSet, the same immutable-integer-set trick the
// upstream cpuallocator package plays for CPU sets (see
// pkg/cpuallocator.CpuAllocator.from/.result).
package bitmap

import (
	"fmt"
	"strings"

	"k8s.io/utils/cpuset"
)

// Bitmap is a fixed-width bit-set over node indices [0, Size).
type Bitmap struct {
	size int
	bits cpuset.CPUSet
}

// New returns an empty Bitmap over [0, size).
func New(size int) *Bitmap {
	return &Bitmap{size: size, bits: cpuset.New()}
}

// NewFull returns a Bitmap over [0, size) with every bit set.
func NewFull(size int) *Bitmap {
	idx := make([]int, size)
	for i := range idx {
		idx[i] = i
	}
	return &Bitmap{size: size, bits: cpuset.New(idx...)}
}

// FromSlice builds a Bitmap over [0, size) with the given indices set.
func FromSlice(size int, idx []int) *Bitmap {
	return &Bitmap{size: size, bits: cpuset.New(idx...)}
}

// Size returns the fixed width of the bitmap.
func (b *Bitmap) Size() int {
	return b.size
}

// Set sets bit i.
func (b *Bitmap) Set(i int) {
	if i < 0 || i >= b.size {
		return
	}
	b.bits = b.bits.Union(cpuset.New(i))
}

// Clear clears bit i.
func (b *Bitmap) Clear(i int) {
	b.bits = b.bits.Difference(cpuset.New(i))
}

// ClearAll clears every bit.
func (b *Bitmap) ClearAll() {
	b.bits = cpuset.New()
}

// IsSet reports whether bit i is set.
func (b *Bitmap) IsSet(i int) bool {
	return b.bits.Contains(i)
}

// Count returns the number of set bits.
func (b *Bitmap) Count() int {
	return b.bits.Size()
}

// IsEmpty reports whether no bit is set.
func (b *Bitmap) IsEmpty() bool {
	return b.bits.Size() == 0
}

// FirstSet returns the lowest set bit, or -1 if none is set.
func (b *Bitmap) FirstSet() int {
	l := b.bits.List()
	if len(l) == 0 {
		return -1
	}
	return l[0]
}

// LastSet returns the highest set bit, or -1 if none is set.
func (b *Bitmap) LastSet() int {
	l := b.bits.List()
	if len(l) == 0 {
		return -1
	}
	return l[len(l)-1]
}

// Clone returns an independent copy of b.
func (b *Bitmap) Clone() *Bitmap {
	return &Bitmap{size: b.size, bits: b.bits.Clone()}
}

// And returns the intersection of b and o (size must match).
func (b *Bitmap) And(o *Bitmap) *Bitmap {
	return &Bitmap{size: b.size, bits: b.bits.Intersection(o.bits)}
}

// Or returns the union of b and o (size must match).
func (b *Bitmap) Or(o *Bitmap) *Bitmap {
	return &Bitmap{size: b.size, bits: b.bits.Union(o.bits)}
}

// Sub returns b with every bit also set in o cleared.
func (b *Bitmap) Sub(o *Bitmap) *Bitmap {
	return &Bitmap{size: b.size, bits: b.bits.Difference(o.bits)}
}

// IsSuperset reports whether every bit set in o is also set in b.
func (b *Bitmap) IsSuperset(o *Bitmap) bool {
	return o.bits.IsSubsetOf(b.bits)
}

// Overlaps reports whether b and o share at least one set bit.
func (b *Bitmap) Overlaps(o *Bitmap) bool {
	return b.bits.Intersection(o.bits).Size() > 0
}

// Equal reports whether b and o have the same set bits.
func (b *Bitmap) Equal(o *Bitmap) bool {
	return b.bits.Equals(o.bits)
}

// PickN returns a new Bitmap with at most n set bits taken from b, lowest
// index first. If b has fewer than n set bits, all of them are returned.
func (b *Bitmap) PickN(n int) *Bitmap {
	l := b.bits.List()
	if n > len(l) {
		n = len(l)
	}
	return &Bitmap{size: b.size, bits: cpuset.New(l[:n]...)}
}

// ForEachSet calls fn for every set bit in ascending order. Stops early if
// fn returns false.
func (b *Bitmap) ForEachSet(fn func(i int) bool) {
	for _, i := range b.bits.List() {
		if !fn(i) {
			return
		}
	}
}

// List returns the set bits in ascending order.
func (b *Bitmap) List() []int {
	return b.bits.List()
}

// String renders the bitmap the way Slurm node bitmaps are traditionally
// printed: a comma-separated list of indices/ranges.
func (b *Bitmap) String() string {
	l := b.bits.List()
	if len(l) == 0 {
		return "<empty>"
	}
	var sb strings.Builder
	start, prev := l[0], l[0]
	flush := func() {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		if start == prev {
			fmt.Fprintf(&sb, "%d", start)
		} else {
			fmt.Fprintf(&sb, "%d-%d", start, prev)
		}
	}
	for _, i := range l[1:] {
		if i == prev+1 {
			prev = i
			continue
		}
		flush()
		start, prev = i, i
	}
	flush()
	return sb.String()
}
