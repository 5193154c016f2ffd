package jointcov_test

import (
	"strings"
	"testing"

	"github.com/grailbio/jointcov/encoding/fasta"
	"github.com/grailbio/jointcov/pileup/jointcov"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		base, prev, next byte
		want             jointcov.Class
	}{
		{'A', 'C', 'G', jointcov.ClassAT},
		{'t', 'N', 'N', jointcov.ClassAT},
		{'C', 'A', 'G', jointcov.ClassCpG},
		{'c', 'A', 'g', jointcov.ClassCpG},
		{'G', 'C', 'A', jointcov.ClassCpG},
		{'g', 'c', 'T', jointcov.ClassCpG},
		// A CpG on either side wins over the plain CG rule.
		{'C', 'C', 'G', jointcov.ClassCpG},
		{'G', 'C', 'G', jointcov.ClassCpG},
		{'C', 'G', 'A', jointcov.ClassCG},
		{'G', 'G', 'C', jointcov.ClassCG},
		{'g', 'a', 'c', jointcov.ClassCG},
		{'N', 'C', 'G', jointcov.ClassIUB},
		{'R', 'A', 'A', jointcov.ClassIUB},
		{'n', 'A', 'A', jointcov.ClassIUB},
	}
	for _, test := range tests {
		expect.EQ(t, jointcov.Classify(test.base, test.prev, test.next), test.want,
			"base %c prev %c next %c", test.base, test.prev, test.next)
	}
	expect.EQ(t, jointcov.ClassCpG.String(), "CpG")
	expect.EQ(t, jointcov.ClassUnknown.String(), "unknown")
}

func TestCounts(t *testing.T) {
	var c jointcov.Counts
	for _, class := range []jointcov.Class{jointcov.ClassAT, jointcov.ClassCpG, jointcov.ClassCpG, jointcov.ClassIUB} {
		c.Add(class)
	}
	expect.EQ(t, c.Covered, 4)
	expect.EQ(t, c.AT(), 1)
	expect.EQ(t, c.CG(), 0)
	expect.EQ(t, c.CpG(), 2)
	expect.EQ(t, c.IUB(), 1)
}

func expectPanic(t *testing.T, fn func()) {
	defer func() {
		expect.NotNil(t, recover())
	}()
	fn()
}

func TestRefCache(t *testing.T) {
	fa, err := fasta.New(strings.NewReader(">chr1\nACGTT\n>chr2\nccgN\n"))
	assert.NoError(t, err)
	c := jointcov.NewRefCache(fa)
	expect.EQ(t, c.Len(), 0)

	assert.NoError(t, c.EnsureLoaded(0, "chr1"))
	expect.EQ(t, c.Seq(), "ACGTT")
	expect.EQ(t, c.Len(), 5)
	for _, tag := range c.Tags() {
		expect.EQ(t, tag, jointcov.ClassUnknown)
	}

	class, first := c.ClassifyAndTag(1)
	expect.EQ(t, class, jointcov.ClassCpG)
	expect.True(t, first)
	class, first = c.ClassifyAndTag(1)
	expect.EQ(t, class, jointcov.ClassCpG)
	expect.False(t, first)
	class, first = c.ClassifyAndTag(3)
	expect.EQ(t, class, jointcov.ClassAT)
	expect.True(t, first)
	expect.EQ(t, c.Tags(), []jointcov.Class{
		jointcov.ClassUnknown, jointcov.ClassCpG, jointcov.ClassUnknown, jointcov.ClassAT, jointcov.ClassUnknown})

	// Bases without two neighbors are never classified.
	expectPanic(t, func() { c.ClassifyAndTag(0) })
	expectPanic(t, func() { c.ClassifyAndTag(4) })

	// Same chromosome: tags survive.
	assert.NoError(t, c.EnsureLoaded(0, "chr1"))
	_, first = c.ClassifyAndTag(1)
	expect.False(t, first)

	// New chromosome: tags start over.
	assert.NoError(t, c.EnsureLoaded(1, "chr2"))
	expect.EQ(t, c.Seq(), "ccgN")
	class, first = c.ClassifyAndTag(1)
	expect.EQ(t, class, jointcov.ClassCpG)
	expect.True(t, first)
	class, first = c.ClassifyAndTag(2)
	expect.EQ(t, class, jointcov.ClassCpG)
	expect.True(t, first)

	// Going back reloads the chr1 sequence but keeps its tags.
	assert.NoError(t, c.EnsureLoaded(0, "chr1"))
	expect.EQ(t, c.Seq(), "ACGTT")
	class, first = c.ClassifyAndTag(1)
	expect.EQ(t, class, jointcov.ClassCpG)
	expect.False(t, first)
	_, first = c.ClassifyAndTag(2)
	expect.True(t, first)
	// And so does chr2.
	assert.NoError(t, c.EnsureLoaded(1, "chr2"))
	_, first = c.ClassifyAndTag(2)
	expect.False(t, first)

	expect.NotNil(t, c.EnsureLoaded(2, "chrM"))
	expect.EQ(t, c.Len(), 0)
}
