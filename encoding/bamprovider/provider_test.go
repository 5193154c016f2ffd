package bamprovider_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/jointcov/encoding/bamprovider"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	shutdown := grail.Init()
	status := m.Run()
	shutdown()
	os.Exit(status)
}

func newRead(name string, ref *sam.Reference, pos int, cigar ...sam.CigarOp) *sam.Record {
	_, readLen := sam.Cigar(cigar).Lengths()
	seq := make([]byte, readLen)
	qual := make([]byte, readLen)
	for i := range seq {
		seq[i] = 'A'
		qual[i] = 30
	}
	return &sam.Record{
		Name:    name,
		Ref:     ref,
		Pos:     pos,
		MapQ:    60,
		Cigar:   cigar,
		MatePos: -1,
		Seq:     sam.NewSeq(seq),
		Qual:    qual,
	}
}

func match(n int) sam.CigarOp { return sam.NewCigarOp(sam.CigarMatch, n) }

// writeIndexedBAM writes recs to dir/name.bam along with a .bai, and returns
// the BAM path.
func writeIndexedBAM(t *testing.T, dir, name string, header *sam.Header, recs []*sam.Record) string {
	bampath := filepath.Join(dir, name+".bam")
	out, err := os.Create(bampath)
	require.NoError(t, err)
	w, err := bam.NewWriter(out, header, 1)
	require.NoError(t, err)
	for _, r := range recs {
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, w.Close())
	require.NoError(t, out.Close())

	in, err := os.Open(bampath)
	require.NoError(t, err)
	defer in.Close()
	br, err := bam.NewReader(in, 1)
	require.NoError(t, err)
	var idx bam.Index
	for {
		r, err := br.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.NoError(t, idx.Add(r, br.LastChunk()))
	}
	require.NoError(t, br.Close())
	baiOut, err := os.Create(bampath + ".bai")
	require.NoError(t, err)
	require.NoError(t, bam.WriteIndex(baiOut, &idx))
	require.NoError(t, baiOut.Close())
	return bampath
}

func regionNames(t *testing.T, p bamprovider.Provider, ref *sam.Reference, start, limit int) []string {
	iter := p.NewRegionIterator(ref, start, limit)
	names := []string{}
	for iter.Scan() {
		names = append(names, iter.Record().Name)
	}
	require.NoError(t, iter.Err())
	require.NoError(t, iter.Close())
	return names
}

func testRefs(t *testing.T) (*sam.Header, *sam.Reference, *sam.Reference) {
	chr1, err := sam.NewReference("chr1", "", "", 10000, nil, nil)
	require.NoError(t, err)
	chr2, err := sam.NewReference("chr2", "", "", 10000, nil, nil)
	require.NoError(t, err)
	header, err := sam.NewHeader(nil, []*sam.Reference{chr1, chr2})
	require.NoError(t, err)
	header.SortOrder = sam.Coordinate
	return header, chr1, chr2
}

func testRecords(chr1, chr2 *sam.Reference) []*sam.Record {
	return []*sam.Record{
		newRead("a", chr1, 100, match(50)),
		newRead("b", chr1, 120, match(10), sam.NewCigarOp(sam.CigarDeletion, 20), match(10)),
		newRead("c", chr1, 200, match(50)),
		newRead("d", chr1, 5000, match(50)),
		newRead("e", chr2, 100, match(50)),
	}
}

func TestBAMRegionIterator(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)

	header, chr1, chr2 := testRefs(t)
	bampath := writeIndexedBAM(t, tmpdir, "sample", header, testRecords(chr1, chr2))

	p := bamprovider.NewProvider(bampath)
	require.NoError(t, p.Open())
	h, err := p.GetHeader()
	require.NoError(t, err)
	require.Equal(t, 2, len(h.Refs()))

	// Repeat to exercise reader reuse across regions.
	for i := 0; i < 2; i++ {
		require.Equal(t, []string{"a", "b"}, regionNames(t, p, chr1, 140, 150))
		// "b" spans [120, 160) including its deletion.
		require.Equal(t, []string{"b"}, regionNames(t, p, chr1, 155, 160))
		require.Equal(t, []string{"a", "b", "c"}, regionNames(t, p, chr1, 0, 1000))
		require.Equal(t, []string{}, regionNames(t, p, chr1, 1000, 2000))
		require.Equal(t, []string{"d"}, regionNames(t, p, chr1, 5049, 5050))
		require.Equal(t, []string{"e"}, regionNames(t, p, chr2, 0, 10000))
	}
	require.NoError(t, p.Close())
}

func TestBAMMissingIndex(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)

	header, chr1, chr2 := testRefs(t)
	bampath := writeIndexedBAM(t, tmpdir, "sample", header, testRecords(chr1, chr2))
	p := bamprovider.NewProvider(bampath, bamprovider.ProviderOpts{Index: filepath.Join(tmpdir, "nonexistent.bai")})
	require.Error(t, p.Open())
	require.Error(t, p.Close())

	// A missing BAM and a missing index are both reported.
	missingBAM := filepath.Join(tmpdir, "nonexistent.bam")
	p = bamprovider.NewProvider(missingBAM)
	_, err := p.GetHeader()
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to open BAM file")
	require.Contains(t, err.Error(), missingBAM+".bai")
	require.Equal(t, err, p.Open())
	iter := p.NewRegionIterator(chr1, 0, 10)
	require.False(t, iter.Scan())
	require.Error(t, iter.Close())
	require.Error(t, p.Close())
}

func TestFakeProvider(t *testing.T) {
	header, chr1, chr2 := testRefs(t)
	p := bamprovider.NewFakeProvider(header, testRecords(chr1, chr2))
	require.Equal(t, []string{"a", "b"}, regionNames(t, p, chr1, 140, 150))
	require.Equal(t, []string{"e"}, regionNames(t, p, chr2, 149, 150))
	require.Equal(t, []string{}, regionNames(t, p, chr2, 150, 151))
	require.NoError(t, p.Close())
}

func TestRefIndex(t *testing.T) {
	header, chr1, _ := testRefs(t)
	idx := bamprovider.NewRefIndex(header)
	require.Equal(t, chr1, idx.Lookup("chr1"))
	require.Nil(t, idx.Lookup("chrM"))
}
