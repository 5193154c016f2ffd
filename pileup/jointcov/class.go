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

// Package jointcov measures how much of each region of interest is covered
// at sufficient depth in two samples at once, broken down by the sequence
// context of the covered bases.  Bases shared by overlapping regions are
// reported in each region's row but counted once in the running totals.
package jointcov

// Class is the sequence context of a reference base.
type Class uint8

const (
	// ClassAT is an A or T base.
	ClassAT Class = iota
	// ClassCG is a C or G base outside a CpG dinucleotide.
	ClassCG
	// ClassCpG is the C or the G of a CpG dinucleotide.
	ClassCpG
	// ClassIUB is any other base: N or an IUB ambiguity code.
	ClassIUB
	// NClass is the number of concrete classes.
	NClass = iota
)

// ClassUnknown marks a base that has not been classified yet.
const ClassUnknown = Class(NClass)

var classNames = [...]string{"AT", "CG", "CpG", "IUB", "unknown"}

func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return "invalid"
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}

// Classify returns the class of base given its neighbors.  Comparison is
// case-insensitive.  A C followed by a G, or a G preceded by a C, is a CpG
// even though it would also qualify as a plain CG.
func Classify(base, prev, next byte) Class {
	switch upper(base) {
	case 'A', 'T':
		return ClassAT
	case 'C':
		if upper(next) == 'G' {
			return ClassCpG
		}
		return ClassCG
	case 'G':
		if upper(prev) == 'C' {
			return ClassCpG
		}
		return ClassCG
	}
	return ClassIUB
}
