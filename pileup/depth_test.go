package pileup_test

import (
	"errors"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/jointcov/encoding/bamprovider"
	"github.com/grailbio/jointcov/pileup"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func newRead(ref *sam.Reference, pos int, mapq byte, flags sam.Flags, cigar ...sam.CigarOp) *sam.Record {
	return &sam.Record{Name: "r", Ref: ref, Pos: pos, MapQ: mapq, Flags: flags, Cigar: cigar}
}

func op(t sam.CigarOpType, n int) sam.CigarOp { return sam.NewCigarOp(t, n) }

func positions(m *pileup.Mask) []pileup.PosType {
	got := []pileup.PosType{}
	m.ForEach(func(pos pileup.PosType) { got = append(got, pos) })
	return got
}

func TestQualifyingPositions(t *testing.T) {
	ref, _ := sam.NewReference("chr1", "", "", 100, nil, nil)
	header, _ := sam.NewHeader(nil, []*sam.Reference{ref})
	recs := []*sam.Record{
		// Two clean reads covering [10, 20).
		newRead(ref, 10, 60, 0, op(sam.CigarMatch, 10)),
		newRead(ref, 10, 60, 0, op(sam.CigarMatch, 10)),
		// Deletion at [14, 16); soft clip does not consume reference.
		newRead(ref, 10, 60, 0, op(sam.CigarSoftClipped, 3), op(sam.CigarMatch, 4), op(sam.CigarDeletion, 2), op(sam.CigarMatch, 4)),
		// Low MAPQ.
		newRead(ref, 10, 19, 0, op(sam.CigarMatch, 10)),
		// Duplicate.
		newRead(ref, 10, 60, sam.Duplicate, op(sam.CigarMatch, 10)),
		// Insertion, then =/X bases at [18, 22).
		newRead(ref, 18, 60, 0, op(sam.CigarInsertion, 2), op(sam.CigarEqual, 2), op(sam.CigarMismatch, 2)),
	}
	e := pileup.NewDepthEvaluator(bamprovider.NewFakeProvider(header, recs),
		pileup.ReadFilter{Mapq: 20, FlagExclude: pileup.DefaultFlagExclude})
	ctx := vcontext.Background()

	m, err := e.QualifyingPositions(ctx, ref, 0, 100, 3, nil)
	assert.NoError(t, err)
	expect.EQ(t, positions(m), []pileup.PosType{10, 11, 12, 13, 16, 17, 18, 19})

	m, err = e.QualifyingPositions(ctx, ref, 12, 19, 2, nil)
	assert.NoError(t, err)
	expect.EQ(t, positions(m), []pileup.PosType{12, 13, 14, 15, 16, 17, 18})

	m, err = e.QualifyingPositions(ctx, ref, 0, 100, 4, nil)
	assert.NoError(t, err)
	expect.EQ(t, positions(m), []pileup.PosType{18, 19})
}

func TestQualifyingPositionsRestrict(t *testing.T) {
	ref, _ := sam.NewReference("chr1", "", "", 100, nil, nil)
	header, _ := sam.NewHeader(nil, []*sam.Reference{ref})
	recs := []*sam.Record{
		newRead(ref, 0, 60, 0, op(sam.CigarMatch, 50)),
	}
	e := pileup.NewDepthEvaluator(bamprovider.NewFakeProvider(header, recs), pileup.ReadFilter{Mapq: 20})
	ctx := vcontext.Background()

	restrict := pileup.NewMask(ref.ID(), 5, 60)
	restrict.Set(5)
	restrict.Set(30)
	restrict.Set(55) // not covered by any read
	m, err := e.QualifyingPositions(ctx, ref, 5, 60, 1, restrict)
	assert.NoError(t, err)
	expect.EQ(t, positions(m), []pileup.PosType{5, 30})

	// minDepth 0 qualifies every position of the restriction.
	m, err = e.QualifyingPositions(ctx, ref, 5, 60, 0, restrict)
	assert.NoError(t, err)
	expect.EQ(t, positions(m), []pileup.PosType{5, 30, 55})

	other := pileup.NewMask(ref.ID()+1, 5, 60)
	_, err = e.QualifyingPositions(ctx, ref, 5, 60, 1, other)
	expect.NotNil(t, err)
}

func TestQualifyingPositionsErrors(t *testing.T) {
	ref, _ := sam.NewReference("chr1", "", "", 100, nil, nil)
	header, _ := sam.NewHeader(nil, []*sam.Reference{ref})
	ctx := vcontext.Background()

	e := pileup.NewDepthEvaluator(bamprovider.NewFakeProvider(header, nil), pileup.ReadFilter{})
	_, err := e.QualifyingPositions(ctx, ref, 10, 10, 1, nil)
	expect.NotNil(t, err)
	_, err = e.QualifyingPositions(ctx, ref, 90, 101, 1, nil)
	expect.NotNil(t, err)

	fetchErr := errors.New("index is corrupt")
	e = pileup.NewDepthEvaluator(bamprovider.NewFailingProvider(header, fetchErr), pileup.ReadFilter{})
	_, err = e.QualifyingPositions(ctx, ref, 0, 10, 1, nil)
	expect.EQ(t, err, fetchErr)
}
