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
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/sync/multierror"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/jointcov/encoding/bamprovider"
	"github.com/grailbio/jointcov/encoding/fasta"
	"github.com/grailbio/jointcov/interval"
	"github.com/grailbio/jointcov/pileup/jointcov"
)

var (
	index1Path  = flag.String("index1", "", "Index of the first BAM. Defaults to bam1 + .bai")
	index2Path  = flag.String("index2", "", "Index of the second BAM. Defaults to bam2 + .bai")
	faiPath     = flag.String("fai", "", "Index of the reference FASTA. Defaults to ref_seq_fasta + .fai; without an index the FASTA is loaded into memory")
	flagExclude = flag.Int("flag-exclude", jointcov.DefaultOpts.FlagExclude, "Reads with a FLAG bit intersecting this value are skipped")
)

// bioJointcovUsage prints the usage text and exits with status 1.  It is also
// what the flag package calls on a bad flag, which would otherwise exit
// with status 2.
func bioJointcovUsage() {
	fmt.Fprintf(os.Stderr, "\nUsage: %s [OPTIONS] <bam1> <bam2> <roi_file> <ref_seq_fasta> <output_file> [min_depth_bam1 min_depth_bam2 min_mapq]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Defaults: min_depth_bam1 = %d, min_depth_bam2 = %d, min_mapq = %d\n",
		jointcov.DefaultOpts.MinDepth1, jointcov.DefaultOpts.MinDepth2, jointcov.DefaultOpts.Mapq)
	fmt.Fprintf(os.Stderr, "NOTE: ROI file *must* be sorted by chromosome/contig names\n\n")
	fmt.Fprintf(os.Stderr, "Other options:\n")
	flag.PrintDefaults()
	os.Exit(1)
}

// paths lists every file the tool reads or writes.  An empty index path
// selects the default next to the indexed file.
type paths struct {
	bam1, index1 string
	bam2, index2 string
	roi          string
	fasta, fai   string
	out          string
}

// parseArgs interprets the positional arguments.  The thresholds are
// optional, but must be given all together.
func parseArgs(args []string, opts *jointcov.Opts) (p paths, err error) {
	if len(args) != 5 && len(args) != 8 {
		return p, fmt.Errorf("expected 5 or 8 positional arguments, got %d", len(args))
	}
	p = paths{bam1: args[0], bam2: args[1], roi: args[2], fasta: args[3], out: args[4]}
	if len(args) == 8 {
		for i, dst := range []*int{&opts.MinDepth1, &opts.MinDepth2, &opts.Mapq} {
			v, err := strconv.Atoi(args[5+i])
			if err != nil || v < 0 {
				return p, fmt.Errorf("invalid threshold %q: must be a non-negative integer", args[5+i])
			}
			*dst = v
		}
	}
	return p, nil
}

// inputs holds the open resources of one run.
type inputs struct {
	bam1, bam2 bamprovider.Provider
	rois       *interval.ROIFile
	ref        *fasta.Reference
	out        file.File
}

// openInputs opens every resource in parallel.  All failures are logged, not
// just the first, and then returned together.
func openInputs(ctx context.Context, p paths) (*inputs, error) {
	in := &inputs{
		bam1: bamprovider.NewProvider(p.bam1, bamprovider.ProviderOpts{Index: p.index1}),
		bam2: bamprovider.NewProvider(p.bam2, bamprovider.ProviderOpts{Index: p.index2}),
	}
	jobs := []func() error{
		in.bam1.Open,
		in.bam2.Open,
		func() (err error) {
			in.rois, err = interval.OpenROIFile(ctx, p.roi)
			return
		},
		func() (err error) {
			in.ref, err = fasta.Open(ctx, p.fasta, p.fai)
			return
		},
		func() (err error) {
			if in.out, err = file.Create(ctx, p.out); err != nil {
				err = errors.E(err, "failed to open output file", p.out)
			}
			return
		},
	}
	errs := multierror.NewMultiError(len(jobs))
	_ = traverse.Each(len(jobs), func(jobIdx int) error {
		if err := jobs[jobIdx](); err != nil {
			log.Error.Printf("%v", err)
			errs.Add(err)
		}
		return nil
	})
	if err := errs.Err(); err != nil {
		_ = in.close(ctx)
		return nil, err
	}
	return in, nil
}

// close releases whatever openInputs managed to open.  The output file is
// committed even after a failed run, so rows written before the failure are
// kept.
func (in *inputs) close(ctx context.Context) error {
	errs := multierror.NewMultiError(5)
	errs.Add(in.bam1.Close())
	errs.Add(in.bam2.Close())
	if in.rois != nil {
		errs.Add(in.rois.Close(ctx))
	}
	if in.ref != nil {
		errs.Add(in.ref.Close(ctx))
	}
	if in.out != nil {
		errs.Add(in.out.Close(ctx))
	}
	return errs.Err()
}

func run(ctx context.Context, p paths, opts jointcov.Opts) (err error) {
	in, err := openInputs(ctx, p)
	if err != nil {
		return err
	}
	defer func() {
		if e := in.close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	engine, err := jointcov.NewEngine(in.bam1, in.bam2, in.ref, opts)
	if err != nil {
		return err
	}
	err = engine.Run(ctx, in.rois, jointcov.NewReport(in.out.Writer(ctx)))
	if err != nil && err == in.rois.Err() {
		err = fmt.Errorf("%v\n%s", err, interval.ROIFormatHelp)
	}
	return err
}

func main() {
	flag.Usage = bioJointcovUsage
	shutdown := grail.Init()
	defer shutdown()

	opts := jointcov.DefaultOpts
	opts.FlagExclude = *flagExclude
	p, err := parseArgs(flag.Args(), &opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		flag.Usage()
	}
	p.index1, p.index2, p.fai = *index1Path, *index2Path, *faiPath
	if err := run(vcontext.Background(), p, opts); err != nil {
		log.Fatalf("%v", err)
	}
	log.Debug.Printf("exiting")
}
