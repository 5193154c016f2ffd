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

import (
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/jointcov/encoding/fasta"
)

// RefCache holds the reference sequence of one chromosome at a time, plus a
// per-base tag recording the class of every base already counted.  Tags are
// kept for every chromosome visited, so input that returns to an earlier
// chromosome only costs a sequence reload, and each base is still reported as
// a first observation at most once.  Not thread-safe: a caller processing ROIs
// in parallel must serialize ClassifyAndTag, since its check-and-set has to be
// atomic per position.
type RefCache interface {
	// EnsureLoaded makes refName (with BAM reference ID refID) the resident
	// chromosome.  It is a no-op if refID is already resident; otherwise the
	// previous sequence is discarded.  The tags of a chromosome seen for the
	// first time all start out as ClassUnknown; a chromosome seen before gets
	// its earlier tags back.
	EnsureLoaded(refID int, refName string) error
	// ClassifyAndTag returns the class of the base at 0-based position pos of
	// the resident chromosome.  first is true iff no earlier call tagged pos
	// on this chromosome.  pos must have a neighbor on both sides, i.e.
	// 0 < pos < Len()-1.
	ClassifyAndTag(pos int) (class Class, first bool)
	// Seq returns the resident sequence.
	Seq() string
	// Tags returns the tag array of the resident chromosome.  Callers must not
	// modify it.
	Tags() []Class
	// Len returns the length of the resident chromosome, or 0 if none.
	Len() int
}

type singleRefCache struct {
	fa      fasta.Fasta
	refID   int
	refName string
	seq     string
	tags    []Class
	// tagsByRef holds the tags of every chromosome loaded so far, by refID.
	tagsByRef map[int][]Class
}

// NewRefCache returns a RefCache that keeps a single chromosome sequence
// resident.  Input sorted by chromosome loads each sequence once.
func NewRefCache(fa fasta.Fasta) RefCache {
	return &singleRefCache{fa: fa, refID: -1, tagsByRef: map[int][]Class{}}
}

func (c *singleRefCache) EnsureLoaded(refID int, refName string) error {
	if refID == c.refID && c.refID >= 0 {
		return nil
	}
	seq, err := fasta.Seq(c.fa, refName)
	if err != nil {
		c.refID, c.refName, c.seq, c.tags = -1, "", "", nil
		return errors.E(errors.NotExist, err, "jointcov: loading reference sequence", refName)
	}
	tags, ok := c.tagsByRef[refID]
	if !ok || len(tags) != len(seq) {
		tags = make([]Class, len(seq))
		for i := range tags {
			tags[i] = ClassUnknown
		}
		c.tagsByRef[refID] = tags
	}
	log.Debug.Printf("jointcov: loaded %s (ID %d, %d bases, revisit=%v)", refName, refID, len(seq), ok)
	c.refID, c.refName, c.seq, c.tags = refID, refName, seq, tags
	return nil
}

func (c *singleRefCache) ClassifyAndTag(pos int) (Class, bool) {
	if pos < 1 || pos >= len(c.seq)-1 {
		log.Panicf("jointcov.ClassifyAndTag: position %d of %s has no neighbor on both sides (length %d)", pos, c.refName, len(c.seq))
	}
	if class := c.tags[pos]; class != ClassUnknown {
		return class, false
	}
	class := Classify(c.seq[pos], c.seq[pos-1], c.seq[pos+1])
	c.tags[pos] = class
	return class, true
}

func (c *singleRefCache) Seq() string   { return c.seq }
func (c *singleRefCache) Tags() []Class { return c.tags }
func (c *singleRefCache) Len() int      { return len(c.seq) }
