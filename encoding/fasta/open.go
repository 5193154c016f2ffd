package fasta

import (
	"context"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
)

// Reference is a Fasta opened from a path.  Close must be called once the
// caller is done with it.
type Reference struct {
	Fasta
	in file.File
}

// Close releases the underlying file, if any.
func (r *Reference) Close(ctx context.Context) error {
	if r.in == nil {
		return nil
	}
	err := r.in.Close(ctx)
	r.in = nil
	return err
}

// Open opens the FASTA file at path.  If the index at indexPath (default
// path+".fai") exists, sequences are read on demand through it.  Otherwise,
// mirroring samtools' fai_load, the entire (possibly compressed) file is
// loaded into memory and a warning is logged.
func Open(ctx context.Context, path, indexPath string) (ref *Reference, err error) {
	if indexPath == "" {
		indexPath = path + ".fai"
	}
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "failed to open reference fasta file", path)
	}
	idx, idxErr := file.Open(ctx, indexPath)
	if idxErr != nil {
		log.Printf("fasta.Open: index %s unavailable (%v); loading %s into memory", indexPath, idxErr, path)
		defer file.CloseAndReport(ctx, in, &err)
		var fa Fasta
		if fa, err = loadAll(ctx, in); err != nil {
			return nil, errors.E(err, "fasta.Open", path)
		}
		return &Reference{Fasta: fa}, nil
	}
	defer file.CloseAndReport(ctx, idx, &err)
	var fa Fasta
	if fa, err = NewIndexed(in.Reader(ctx), idx.Reader(ctx)); err != nil {
		_ = in.Close(ctx)
		return nil, errors.E(err, "fasta.Open", indexPath)
	}
	return &Reference{Fasta: fa, in: in}, nil
}

func loadAll(ctx context.Context, in file.File) (fa Fasta, err error) {
	reader, _ := compress.NewReader(in.Reader(ctx))
	defer func() {
		if e := reader.Close(); e != nil && err == nil {
			err = e
		}
	}()
	return New(reader)
}
