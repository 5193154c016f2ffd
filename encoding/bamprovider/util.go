package bamprovider

import (
	"github.com/grailbio/hts/sam"
)

// RefIndex maps reference names to the header's references.  It is the
// name -> id table shared between two BAMs assumed to have identical
// coordinate systems.
type RefIndex map[string]*sam.Reference

// NewRefIndex builds a RefIndex for h.
func NewRefIndex(h *sam.Header) RefIndex {
	refs := h.Refs()
	idx := make(RefIndex, len(refs))
	for _, ref := range refs {
		idx[ref.Name()] = ref
	}
	return idx
}

// Lookup returns the reference named refName, or nil.
func (idx RefIndex) Lookup(refName string) *sam.Reference {
	return idx[refName]
}
