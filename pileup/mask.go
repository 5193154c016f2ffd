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
package pileup

import (
	"math/bits"

	"github.com/grailbio/base/bitset"
	"github.com/grailbio/base/log"
)

// Mask is a set of positions in the 0-based half-open interval [Start, End)
// of one reference.  All accessors take absolute reference positions, so
// callers never do position-minus-start arithmetic themselves.
type Mask struct {
	RefID      int
	Start, End PosType
	bits       []uintptr
}

// NewMask returns an empty Mask covering [start, end) of reference refID.
func NewMask(refID int, start, end PosType) *Mask {
	if end < start {
		log.Panicf("pileup.NewMask: invalid interval [%d, %d)", start, end)
	}
	nWord := (int(end-start) + bitset.BitsPerWord - 1) / bitset.BitsPerWord
	return &Mask{
		RefID: refID,
		Start: start,
		End:   end,
		bits:  make([]uintptr, nWord),
	}
}

// InRange returns true if pos is in [m.Start, m.End).
func (m *Mask) InRange(pos PosType) bool {
	return pos >= m.Start && pos < m.End
}

// Contains returns true if pos is in the set.  Positions outside [Start, End)
// are never contained.
func (m *Mask) Contains(pos PosType) bool {
	if !m.InRange(pos) {
		return false
	}
	return bitset.Test(m.bits, int(pos-m.Start))
}

// Set adds pos to the set.  It panics if pos is outside [Start, End).
func (m *Mask) Set(pos PosType) {
	if !m.InRange(pos) {
		log.Panicf("pileup.Mask.Set: position %d outside [%d, %d)", pos, m.Start, m.End)
	}
	bitset.Set(m.bits, int(pos-m.Start))
}

// Count returns the number of positions in the set.
func (m *Mask) Count() int {
	n := 0
	for _, w := range m.bits {
		n += bits.OnesCount64(uint64(w))
	}
	return n
}

// ForEach calls fn on every position in the set, in increasing order.
func (m *Mask) ForEach(fn func(pos PosType)) {
	for wordIdx, w := range m.bits {
		for w != 0 {
			bit := bits.TrailingZeros64(uint64(w))
			fn(m.Start + PosType(wordIdx*bitset.BitsPerWord+bit))
			w &= w - 1
		}
	}
}
