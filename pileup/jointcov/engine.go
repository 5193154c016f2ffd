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
package jointcov

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/jointcov/encoding/bamprovider"
	"github.com/grailbio/jointcov/encoding/fasta"
	"github.com/grailbio/jointcov/interval"
	"github.com/grailbio/jointcov/pileup"
)

// PosType is the integer type used to represent genomic positions.
type PosType = pileup.PosType

// Opts holds the depth thresholds.  They are fixed for the lifetime of an
// Engine.
type Opts struct {
	// Mapq is the minimum mapping quality of a read counted toward depth.
	Mapq int
	// MinDepth1 and MinDepth2 are the minimum depths in the first and second
	// sample.
	MinDepth1 int
	MinDepth2 int
	// FlagExclude drops reads with a FLAG bit intersecting this value.
	FlagExclude int
}

// DefaultOpts are the thresholds used when none are given.
var DefaultOpts = Opts{
	Mapq:        20,
	MinDepth1:   6,
	MinDepth2:   8,
	FlagExclude: pileup.DefaultFlagExclude,
}

// ROISource yields ROIs in file order.  interval.ROIScanner implements it.
type ROISource interface {
	Scan() bool
	ROI() interval.ROI
	Err() error
}

// ROIResult is the outcome of one processed ROI.
type ROIResult struct {
	ROI interval.ROI
	// Start and End are the 0-based half-open bounds that were evaluated.
	// They differ from the ROI only at a chromosome edge, where they are moved
	// inward by one base so that every evaluated base has two neighbors.
	Start, End PosType
	// Length is the length of the ROI before the edge adjustment.
	Length int
	Counts Counts
}

// Engine computes joint coverage ROI by ROI.  ROIs are processed one at a
// time in input order.  Not thread-safe.
type Engine struct {
	opts    Opts
	samples [2]*pileup.DepthEvaluator
	refs    bamprovider.RefIndex
	cache   RefCache
	totals  Totals
}

// NewEngine creates an Engine for the two samples.  Chromosome names are
// resolved with the header of bam1; both BAMs are assumed to share the same
// coordinate system.  The providers and ref are not closed by the Engine.
func NewEngine(bam1, bam2 bamprovider.Provider, ref fasta.Fasta, opts Opts) (*Engine, error) {
	header, err := bam1.GetHeader()
	if err != nil {
		return nil, err
	}
	if err = pileup.CheckRefLengths(ref, header.Refs()); err != nil {
		return nil, errors.E(errors.Invalid, err)
	}
	filter := pileup.ReadFilter{Mapq: opts.Mapq, FlagExclude: opts.FlagExclude}
	e := &Engine{opts: opts, refs: bamprovider.NewRefIndex(header), cache: NewRefCache(ref)}
	e.samples[0] = pileup.NewDepthEvaluator(bam1, filter)
	e.samples[1] = pileup.NewDepthEvaluator(bam2, filter)
	return e, nil
}

// Totals returns the non-overlapping totals accumulated so far.
func (e *Engine) Totals() Totals {
	return e.totals
}

// ProcessROI computes the coverage of one ROI.  ok is false if the ROI was
// skipped because its chromosome is unknown or its bounds are invalid; a
// warning is logged in that case.
func (e *Engine) ProcessROI(ctx context.Context, roi interval.ROI) (res ROIResult, ok bool, err error) {
	ref := e.refs.Lookup(roi.RefName)
	if ref == nil || roi.Start0 >= roi.End {
		log.Error.Printf("Skipping invalid ROI: %v", roi)
		return res, false, nil
	}
	if roi.Start0 < 0 || int(roi.End) > ref.Len() {
		log.Error.Printf("Skipping invalid ROI: %v (outside %s, length %d)", roi, ref.Name(), ref.Len())
		return res, false, nil
	}
	if err = e.cache.EnsureLoaded(ref.ID(), ref.Name()); err != nil {
		return res, false, err
	}
	res = ROIResult{ROI: roi, Start: roi.Start0, End: roi.End, Length: roi.Len()}
	if res.Start == 0 {
		res.Start++
	}
	if int(res.End) == e.cache.Len() {
		res.End--
	}
	if res.Start < res.End {
		err = e.countJointCoverage(ctx, ref, &res)
	}
	return res, err == nil, err
}

// countJointCoverage runs the two depth passes over [res.Start, res.End) and
// classifies every base that qualifies in both samples.
func (e *Engine) countJointCoverage(ctx context.Context, ref *sam.Reference, res *ROIResult) error {
	mask, err := e.samples[0].QualifyingPositions(ctx, ref, res.Start, res.End, e.opts.MinDepth1, nil)
	if err != nil {
		return errors.E(err, fmt.Sprintf("sample 1, %s:%d-%d", ref.Name(), res.Start+1, res.End))
	}
	if mask.Count() == 0 {
		return nil
	}
	if mask, err = e.samples[1].QualifyingPositions(ctx, ref, res.Start, res.End, e.opts.MinDepth2, mask); err != nil {
		return errors.E(err, fmt.Sprintf("sample 2, %s:%d-%d", ref.Name(), res.Start+1, res.End))
	}
	mask.ForEach(func(pos PosType) {
		class, first := e.cache.ClassifyAndTag(int(pos))
		res.Counts.Add(class)
		e.totals.observe(class, first)
	})
	return nil
}

// Run processes every ROI from src, writing one row per processed ROI to
// report followed by the totals line.  A read error from src stops the run;
// rows already written are kept, and the totals line is not written.
func (e *Engine) Run(ctx context.Context, src ROISource, report *Report) error {
	if err := report.WriteHeader(); err != nil {
		return err
	}
	nROI, nSkipped := 0, 0
	for src.Scan() {
		nROI++
		res, ok, err := e.ProcessROI(ctx, src.ROI())
		if err != nil {
			return err
		}
		if !ok {
			nSkipped++
			continue
		}
		if err = report.WriteRow(&res); err != nil {
			return err
		}
	}
	if err := src.Err(); err != nil {
		return err
	}
	log.Printf("jointcov: processed %d ROIs (%d skipped), %d bases jointly covered", nROI, nSkipped, e.totals.Covered)
	return report.WriteTotals(e.totals)
}
