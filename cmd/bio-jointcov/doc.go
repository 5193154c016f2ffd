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

/*
Given two BAMs (typically a tumor and its matched normal), a file of regions
of interest and the reference FASTA, bio-jointcov reports how many bases of
each region are covered at sufficient depth in both samples, broken down into
AT, CG and CpG bases.

A base is jointly covered when at least min_depth_bam1 reads of the first BAM
and min_depth_bam2 reads of the second BAM align to it with mapping quality
>= min_mapq.  Deletions do not count toward depth.

Each line of the ROI file holds a chromosome, a start, a stop and a gene
name, separated by whitespace.  Start and stop are 1-based and inclusive.
The file must be sorted by chromosome.
Overlapping ROIs are reported individually; the last line of the output
holds the totals with every reference base counted at most once.

Sample usage:
bio-jointcov tumor.bam normal.bam exome_rois.txt ref.fa tumor.jointcov.tsv 6 8 20
*/
package main
