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

// Counts holds the coverage counters of one ROI.
type Counts struct {
	// Covered is the number of jointly covered bases; it always equals the
	// sum of ByClass.
	Covered int
	ByClass [NClass]int
}

// Add counts one covered base of the given class.
func (c *Counts) Add(class Class) {
	c.Covered++
	c.ByClass[class]++
}

// AT returns the number of covered A/T bases.
func (c Counts) AT() int { return c.ByClass[ClassAT] }

// CG returns the number of covered non-CpG C/G bases.
func (c Counts) CG() int { return c.ByClass[ClassCG] }

// CpG returns the number of covered CpG bases.
func (c Counts) CpG() int { return c.ByClass[ClassCpG] }

// IUB returns the number of covered ambiguous bases.
func (c Counts) IUB() int { return c.ByClass[ClassIUB] }

// Totals holds the genome-wide counters.  Each reference base contributes at
// most once, no matter how many ROIs cover it.  Not thread-safe.
type Totals struct {
	Counts
}

// observe records the outcome of RefCache.ClassifyAndTag.  Only first
// observations are counted.
func (t *Totals) observe(class Class, first bool) {
	if first {
		t.Add(class)
	}
}
