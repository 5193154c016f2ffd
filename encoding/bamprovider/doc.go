// Package bamprovider provides region-based access to indexed BAM files.
//
// The Provider is an interface for fetching the alignments that overlap a
// genomic interval.  BAMProvider implements it on top of a .bam/.bai pair;
// NewFakeProvider serves a fixed record list for unittests.
package bamprovider
