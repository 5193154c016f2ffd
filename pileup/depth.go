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
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/jointcov/encoding/bamprovider"
)

// DepthEvaluator answers "which positions of a region have at least N
// filter-passing reads" for one BAM.  Thread compatible.
type DepthEvaluator struct {
	provider bamprovider.Provider
	filter   ReadFilter
	// counts is the per-position depth buffer, reused across calls.
	counts []uint32
}

// NewDepthEvaluator creates a DepthEvaluator reading from provider.  The
// provider is not closed by the evaluator.
func NewDepthEvaluator(provider bamprovider.Provider, filter ReadFilter) *DepthEvaluator {
	return &DepthEvaluator{provider: provider, filter: filter}
}

// QualifyingPositions returns the positions in [start, end) of ref whose
// depth is >= minDepth.  Depth counts the filter-passing reads with an aligned
// base (CIGAR M, = or X) at the position; deletions and reference skips do not
// count.
//
// If restrict is non-nil, only positions contained in restrict are evaluated
// and returned; this is how a second sample is intersected with the first
// without recomputing the first.
//
// Errors from the underlying provider are returned unchanged.
func (e *DepthEvaluator) QualifyingPositions(ctx context.Context, ref *sam.Reference, start, end PosType, minDepth int, restrict *Mask) (*Mask, error) {
	if start < 0 || start >= end || int(end) > ref.Len() {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("pileup.QualifyingPositions: invalid region %s:%d-%d (length %d)", ref.Name(), start, end, ref.Len()))
	}
	if restrict != nil && restrict.RefID != ref.ID() {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("pileup.QualifyingPositions: restriction mask is for ref %d, not %s", restrict.RefID, ref.Name()))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := int(end - start)
	if cap(e.counts) < n {
		e.counts = make([]uint32, n)
	} else {
		e.counts = e.counts[:n]
		for i := range e.counts {
			e.counts[i] = 0
		}
	}

	iter := e.provider.NewRegionIterator(ref, int(start), int(end))
	for iter.Scan() {
		samr := iter.Record()
		if e.filter.Pass(samr) {
			if err := e.addRead(samr, start, end, restrict); err != nil {
				_ = iter.Close()
				return nil, err
			}
		}
		sam.PutInFreePool(samr)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}

	mask := NewMask(ref.ID(), start, end)
	for i, c := range e.counts {
		pos := start + PosType(i)
		if restrict != nil && !restrict.Contains(pos) {
			continue
		}
		if int(c) >= minDepth {
			mask.Set(pos)
		}
	}
	return mask, nil
}

// addRead increments the depth of every position in [start, end) where samr
// has an aligned base.
func (e *DepthEvaluator) addRead(samr *sam.Record, start, end PosType, restrict *Mask) error {
	posInRef := PosType(samr.Pos)
	for _, co := range samr.Cigar {
		cLen := PosType(co.Len())
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			lo, hi := posInRef, posInRef+cLen
			if lo < start {
				lo = start
			}
			if hi > end {
				hi = end
			}
			for pos := lo; pos < hi; pos++ {
				if restrict == nil || restrict.Contains(pos) {
					e.counts[pos-start]++
				}
			}
			posInRef += cLen
		case sam.CigarDeletion, sam.CigarSkipped:
			posInRef += cLen
		case sam.CigarInsertion, sam.CigarSoftClipped, sam.CigarHardClipped, sam.CigarPadded:
			// No reference bases consumed.
		default:
			return fmt.Errorf("pileup.addRead: unexpected CIGAR code %v in read %s", co, samr.Name)
		}
		if posInRef >= end {
			break
		}
	}
	return nil
}
