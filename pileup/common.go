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
	"fmt"

	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/jointcov/encoding/fasta"
	"github.com/grailbio/jointcov/interval"
)

// Common pileup components.

// PosType is the integer type used to represent genomic positions.
type PosType = interval.PosType

// DefaultFlagExclude is the FLAG mask of reads that never contribute to
// depth: unmapped, secondary, QC-fail and duplicate.  It matches the default
// read filter of the samtools pileup engine.
const DefaultFlagExclude = int(sam.Unmapped | sam.Secondary | sam.QCFail | sam.Duplicate)

// ReadFilter decides which alignment records contribute to depth.
type ReadFilter struct {
	// Mapq is the minimum mapping quality.
	Mapq int
	// FlagExclude drops reads with a FLAG bit intersecting this value.
	FlagExclude int
}

// Pass returns true if samr should be piled up.
func (f ReadFilter) Pass(samr *sam.Record) bool {
	return (f.FlagExclude&int(samr.Flags) == 0) && (int(samr.MapQ) >= f.Mapq) && (len(samr.Cigar) != 0)
}

// CheckRefLengths verifies that every reference in headerRefs that is present
// in fa has the same length in both.  References missing from either side are
// reported as warnings, since an ROI file rarely touches all of them.
func CheckRefLengths(fa fasta.Fasta, headerRefs []*sam.Reference) error {
	nMissingFromFa := 0
	for _, curRef := range headerRefs {
		refName := curRef.Name()
		refLen, e := fa.Len(refName)
		if e != nil {
			nMissingFromFa++
			continue
		}
		if refLen != uint64(curRef.Len()) {
			return fmt.Errorf("pileup.CheckRefLengths: inconsistent lengths for contig %s (%d in BAM header, %d in .fa)", refName, curRef.Len(), refLen)
		}
	}
	if nMissingFromFa != 0 {
		log.Printf("pileup.CheckRefLengths: warning: %d reference(s) present in BAM header but missing from .fa", nMissingFromFa)
	}
	nMissingFromXam := len(fa.SeqNames()) + nMissingFromFa - len(headerRefs)
	if nMissingFromXam != 0 {
		log.Printf("pileup.CheckRefLengths: warning: %d reference(s) present in .fa but missing from BAM header", nMissingFromXam)
	}
	return nil
}
