package bamprovider

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/sync/multierror"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/bgzf"
	"github.com/grailbio/hts/bgzf/index"
	"github.com/grailbio/hts/sam"
	"v.io/x/lib/vlog"
)

// BAMProvider implements Provider for BAM files.  Both BAM and the index
// filenames may use any scheme registered with grailbio/base/file.
type BAMProvider struct {
	// Path of the *.bam file. Must be nonempty.
	Path string
	// Index is the pathname of *.bam.bai file. If "", Path + ".bai"
	Index string
	err   errors.Once

	mu     sync.Mutex
	opened bool
	active bool
	in     file.File
	reader *bam.Reader
	index  *bam.Index
	header *sam.Header
}

type bamIterator struct {
	provider *BAMProvider
	iter     *bam.Iterator
	ref      *sam.Reference
	// Half-open coordinate range to read.
	start, limit int

	err  error
	next *sam.Record
}

func (b *BAMProvider) indexPath() string {
	index := b.Index
	if index == "" {
		index = b.Path + ".bai"
	}
	return index
}

// Open implements the Provider interface.
func (b *BAMProvider) Open() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.openLocked()
}

func (b *BAMProvider) openLocked() (err error) {
	if b.opened {
		return b.err.Err()
	}
	b.opened = true
	defer func() { b.err.Set(err) }()

	ctx := vcontext.Background()
	// The index is loaded even if the BAM cannot be opened, so that both
	// problems are reported at once.
	errs := multierror.NewMultiError(2)
	if b.in, err = file.Open(ctx, b.Path); err != nil {
		errs.Add(errors.E(err, "failed to open BAM file", b.Path))
	} else if b.reader, err = bam.NewReader(b.in.Reader(ctx), 1); err != nil {
		errs.Add(errors.E(err, "failed to read BAM header", b.Path))
	} else {
		b.header = b.reader.Header()
	}
	errs.Add(b.loadIndex(ctx))
	if err = errs.Err(); err != nil {
		return err
	}
	vlog.VI(1).Infof("%v: opened with %d references", b.Path, len(b.header.Refs()))
	return nil
}

func (b *BAMProvider) loadIndex(ctx context.Context) (err error) {
	var indexIn file.File
	if indexIn, err = file.Open(ctx, b.indexPath()); err != nil {
		return errors.E(err, "BAM index file", b.indexPath(), "is not available for", b.Path)
	}
	defer file.CloseAndReport(ctx, indexIn, &err)
	if b.index, err = bam.ReadIndex(indexIn.Reader(ctx)); err != nil {
		return errors.E(err, "failed to read BAM index", b.indexPath())
	}
	return nil
}

// GetHeader implements the Provider interface.
func (b *BAMProvider) GetHeader() (*sam.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.openLocked(); err != nil {
		return nil, err
	}
	return b.header, nil
}

// Close implements the Provider interface.
func (b *BAMProvider) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active {
		vlog.Fatalf("iterator still active for %+v", b.Path)
	}
	if b.reader != nil {
		b.err.Set(b.reader.Close())
		b.reader = nil
	}
	if b.in != nil {
		b.err.Set(b.in.Close(vcontext.Background()))
		b.in = nil
	}
	return b.err.Err()
}

// NewRegionIterator implements the Provider interface.
func (b *BAMProvider) NewRegionIterator(ref *sam.Reference, start, limit int) Iterator {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.openLocked(); err != nil {
		return NewErrorIterator(err)
	}
	if b.active {
		vlog.Fatalf("%v: only one iterator may be active at a time", b.Path)
	}
	if start >= limit {
		return NewErrorIterator(fmt.Errorf("bamprovider: empty region %s:%d-%d", ref.Name(), start, limit))
	}
	i := &bamIterator{provider: b, ref: ref, start: start, limit: limit}
	chunks, err := b.index.Chunks(ref, start, limit)
	if err == index.ErrInvalid || (err == nil && len(chunks) == 0) {
		// No reads were ever indexed for this interval.
		vlog.VI(2).Infof("%v: no index chunks for %s:%d-%d", b.Path, ref.Name(), start, limit)
		return NewErrorIterator(nil)
	}
	if err != nil {
		return NewErrorIterator(errors.E(err, fmt.Sprintf("index lookup %s:%d-%d", ref.Name(), start, limit)))
	}
	if i.iter, err = bam.NewIterator(b.reader, mergeChunks(chunks)); err != nil {
		return NewErrorIterator(err)
	}
	b.active = true
	return i
}

// mergeChunks drops chunks that are wholly contained in an earlier chunk so
// that no record is yielded twice.
func mergeChunks(chunks []bgzf.Chunk) []bgzf.Chunk {
	less := func(a, b bgzf.Offset) bool {
		return a.File < b.File || (a.File == b.File && a.Block < b.Block)
	}
	out := chunks[:0]
	for _, c := range chunks {
		if n := len(out); n > 0 && !less(out[n-1].End, c.Begin) {
			if less(out[n-1].End, c.End) {
				out[n-1].End = c.End
			}
			continue
		}
		out = append(out, c)
	}
	return out
}

// Scan implements the Iterator interface.
func (i *bamIterator) Scan() bool {
	if i.err != nil || i.iter == nil {
		return false
	}
	for i.iter.Next() {
		rec := i.iter.Record()
		if rec.Ref == nil || rec.Ref.ID() != i.ref.ID() || rec.Pos >= i.limit {
			// Chunks are sorted and the BAM is coordinate-sorted, so nothing
			// further can overlap.
			sam.PutInFreePool(rec)
			return false
		}
		if !overlaps(rec, i.ref, i.start, i.limit) {
			sam.PutInFreePool(rec)
			continue
		}
		i.next = rec
		return true
	}
	i.err = i.iter.Error()
	return false
}

// Record implements the Iterator interface.
func (i *bamIterator) Record() *sam.Record {
	return i.next
}

// Err implements the Iterator interface.
func (i *bamIterator) Err() error {
	if i.err == io.EOF {
		return nil
	}
	return i.err
}

// Close implements the Iterator interface.
func (i *bamIterator) Close() error {
	if i.iter != nil {
		if e := i.iter.Close(); e != nil && e != io.EOF && i.err == nil {
			i.err = e
		}
		i.iter = nil
	}
	b := i.provider
	b.mu.Lock()
	if !b.active {
		vlog.Fatal(i)
	}
	b.active = false
	b.mu.Unlock()
	err := i.Err()
	b.err.Set(err)
	return err
}
