package bamprovider

import (
	"github.com/grailbio/hts/sam"
)

// ProviderOpts defines options for NewProvider.
type ProviderOpts struct {
	// Index specifies the name of the BAM index file.  If Index=="", it
	// defaults to path + ".bai".
	Index string
}

// Provider allows reading the alignments of a BAM file, one genomic region at
// a time.  Implementations are thread compatible: at most one Iterator may be
// active at a time.
type Provider interface {
	// Open opens the alignment file and loads its index.  Calling it is
	// optional since the other methods open lazily, but it lets a caller
	// report file and index problems before any work starts.
	Open() error

	// GetHeader returns the header for the provided BAM data.  The callee
	// must not modify the returned header object.
	//
	// REQUIRES: Close has not been called.
	GetHeader() (*sam.Header, error)

	// NewRegionIterator returns an iterator over the records that overlap the
	// 0-based half-open interval [start, limit) of ref.  A record overlaps the
	// interval if its reference span, computed from its CIGAR, intersects it.
	//
	// REQUIRES: Close has not been called, and no other iterator is active.
	NewRegionIterator(ref *sam.Reference, start, limit int) Iterator

	// Close must be called exactly once.  It returns any error encountered
	// by the provider, or any iterator created by the provider.
	//
	// REQUIRES: All the iterators created by NewRegionIterator have been closed.
	Close() error
}

// Iterator iterates over sam.Records in a particular genomic range, in
// coordinate order. Thread compatible.
type Iterator interface {
	// Scan returns where there are any records remaining in the iterator,
	// and if so, advances the iterator to the next record. If the iterator
	// reaches the end of its range, Scan() returns false.  If an error
	// occurs, Scan() returns false and the error can be retrieved by
	// calling Err().
	//
	// REQUIRES: Close has not been called.
	Scan() bool

	// Record returns the current record in the iterator. This must be
	// called only after a call to Scan() returns true.  The caller may hand
	// the record back with sam.PutInFreePool once it is done with it.
	//
	// REQUIRES: Close has not been called.
	Record() *sam.Record

	// Err returns the error encoutered during iteration, or nil if no error
	// occurred.  An io.EOF error will be translated to nil.
	Err() error

	// Close must be called exactly once. It returns the value of Err().
	Close() error
}

func mergeOpts(optList []ProviderOpts) ProviderOpts {
	opts := ProviderOpts{}
	for _, o := range optList {
		if o.Index != "" {
			opts.Index = o.Index
		}
	}
	return opts
}

// NewProvider creates a Provider object for the BAM file at "path".
func NewProvider(path string, optList ...ProviderOpts) Provider {
	opts := mergeOpts(optList)
	return &BAMProvider{Path: path, Index: opts.Index}
}

// overlaps reports whether rec's alignment intersects [start, limit) on ref.
func overlaps(rec *sam.Record, ref *sam.Reference, start, limit int) bool {
	if rec.Ref == nil || rec.Ref.ID() != ref.ID() {
		return false
	}
	return rec.Pos < limit && rec.End() > start
}
