package bamprovider

import (
	"fmt"

	"github.com/grailbio/hts/sam"
)

// fakeProvider is only for unittests. It yields the given records.
type fakeProvider struct {
	header *sam.Header
	recs   []*sam.Record
	err    error
}

type fakeIterator struct {
	recs         []*sam.Record
	rec          *sam.Record
	ref          *sam.Reference
	start, limit int
}

// NewFakeProvider creates a provider that returns "header" in response to a
// GetHeader() call, and the members of recs overlapping the requested region
// from NewRegionIterator.  recs must be coordinate-sorted.
func NewFakeProvider(header *sam.Header, recs []*sam.Record) Provider {
	return &fakeProvider{header: header, recs: recs}
}

// NewFailingProvider creates a provider whose iterators all fail with err.
func NewFailingProvider(header *sam.Header, err error) Provider {
	return &fakeProvider{header: header, err: err}
}

// Open implements the Provider interface.
func (b *fakeProvider) Open() error {
	return nil
}

// GetHeader implements the Provider interface. It returns the header passed to
// the constructor.
func (b *fakeProvider) GetHeader() (*sam.Header, error) {
	return b.header, nil
}

// Close implements the Provider interface.
func (b *fakeProvider) Close() error {
	return nil
}

// NewRegionIterator implements the Provider interface.
func (b *fakeProvider) NewRegionIterator(ref *sam.Reference, start, limit int) Iterator {
	if b.err != nil {
		return NewErrorIterator(b.err)
	}
	if start >= limit {
		return NewErrorIterator(fmt.Errorf("bamprovider: empty region %s:%d-%d", ref.Name(), start, limit))
	}
	return &fakeIterator{recs: b.recs, ref: ref, start: start, limit: limit}
}

// Err implements the Iterator interface.
func (i *fakeIterator) Err() error {
	return nil
}

// Close implements the Iterator interface.
func (i *fakeIterator) Close() error {
	return nil
}

func (i *fakeIterator) Scan() bool {
	for len(i.recs) > 0 {
		i.rec = i.recs[0]
		i.recs = i.recs[1:]
		if overlaps(i.rec, i.ref, i.start, i.limit) {
			return true
		}
	}
	return false
}

func (i *fakeIterator) Record() *sam.Record {
	// Return a copy so that the code under test cannot alter the
	// original test input data.
	copy := sam.GetFromFreePool()
	*copy = *i.rec
	return copy
}
