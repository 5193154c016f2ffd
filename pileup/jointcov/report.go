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
	"fmt"
	"io"

	"github.com/grailbio/base/tsv"
)

const (
	reportNote   = "#NOTE: Last line in file shows non-overlapping totals across all ROIs"
	reportHeader = "#Gene\tROI\tLength\tCovered\tATs_Covered\tCGs_Covered\tCpGs_Covered"
	totalsLabel  = "#NonOverlappingTotals"
)

// Report writes the coverage table.  Every line is flushed as soon as it is
// complete, so a run that fails part way leaves all earlier rows intact.
type Report struct {
	tsvw *tsv.Writer
}

// NewReport creates a Report writing to w.
func NewReport(w io.Writer) *Report {
	return &Report{tsvw: tsv.NewWriter(w)}
}

func (r *Report) endLine() error {
	if err := r.tsvw.EndLine(); err != nil {
		return err
	}
	return r.tsvw.Flush()
}

// WriteHeader writes the two comment lines that start the table.
func (r *Report) WriteHeader() error {
	r.tsvw.WriteString(reportNote)
	if err := r.endLine(); err != nil {
		return err
	}
	r.tsvw.WriteString(reportHeader)
	return r.endLine()
}

func (r *Report) writeCounts(c Counts) {
	r.tsvw.WriteUint32(uint32(c.Covered))
	r.tsvw.WriteUint32(uint32(c.AT()))
	r.tsvw.WriteUint32(uint32(c.CG()))
	r.tsvw.WriteUint32(uint32(c.CpG()))
}

// WriteRow writes the row of one processed ROI.  IUB bases are included in
// the covered column but have no column of their own.
func (r *Report) WriteRow(res *ROIResult) error {
	r.tsvw.WriteString(res.ROI.Label)
	r.tsvw.WriteString(fmt.Sprintf("%s:%d-%d", res.ROI.RefName, res.Start+1, res.End))
	r.tsvw.WriteUint32(uint32(res.Length))
	r.writeCounts(res.Counts)
	return r.endLine()
}

// WriteTotals writes the final line holding the non-overlapping totals.
func (r *Report) WriteTotals(t Totals) error {
	r.tsvw.WriteString(totalsLabel)
	r.tsvw.WriteString("")
	r.tsvw.WriteString("")
	r.writeCounts(t.Counts)
	return r.endLine()
}
