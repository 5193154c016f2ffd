package interval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/klauspost/compress/gzip"
)

// PosType is the coordinate type used for reference positions.
type PosType int32

// PosTypeMax is the maximum value that can be represented by a PosType.
const PosTypeMax = math.MaxInt32

// ROIFormatHelp describes the expected ROI file format, for error messages.
const ROIFormatHelp = `ROI file should be a tab-delimited list of [chrom, start, stop, annotation]
where start and stop are both 1-based chromosomal loci
For example:
20	44429404	44429608	ELMO2
MT	5903	7445	MT-CO1
NOTE: ROI file *must* be sorted by chromosome/contig names`

// ROI is a region of interest.  The interval is stored 0-based half-open;
// the file holds 1-based inclusive coordinates.
type ROI struct {
	RefName string
	// Start0 is the 0-based first position.  It is negative if the file said
	// 0 or less.
	Start0 PosType
	// End is the 0-based exclusive end, which equals the 1-based inclusive
	// stop in the file.
	End   PosType
	Label string
	// LineIdx is the 1-based line number the ROI was read from.
	LineIdx int
}

// Len returns the number of bases in the ROI.  It is <= 0 for an inverted
// interval.
func (r ROI) Len() int {
	return int(r.End) - int(r.Start0)
}

// String formats the ROI the way it appeared in the input file.
func (r ROI) String() string {
	return fmt.Sprintf("%s\t%d\t%d\t%s", r.RefName, r.Start0+1, r.End, r.Label)
}

// getTokens identifies up to the first len(tokens) tokens from curLine,
// returning the number of tokens saved.  Any (group of) characters <= ' ' is
// treated as a delimiter.
func getTokens(tokens [][]byte, curLine []byte) int {
	posEnd := 0
	lineLen := len(curLine)
	for tokenIdx := range tokens {
		pos := posEnd
		for ; pos != lineLen; pos++ {
			if curLine[pos] > ' ' {
				break
			}
		}
		if pos == lineLen {
			return tokenIdx
		}
		posEnd = pos
		for ; posEnd != lineLen; posEnd++ {
			if curLine[posEnd] <= ' ' {
				break
			}
		}
		tokens[tokenIdx] = curLine[pos:posEnd]
	}
	return len(tokens)
}

// ROIScanner reads ROIs from a whitespace-delimited text stream with lines
// of the form "chrom start stop label".  Blank lines and lines starting with
// '#' are skipped; any other line that does not parse stops the scan with an
// error.  Tokens past the fourth are ignored.
type ROIScanner struct {
	scanner *bufio.Scanner
	lineIdx int
	roi     ROI
	err     error
	tokens  [4][]byte
}

// maxROILineLen bounds the length of one ROI file line.  Scanner does not
// resize its buffer past this on its own.
const maxROILineLen = 64 * 1024 * 1024

// NewROIScanner creates an ROIScanner reading from r.
func NewROIScanner(r io.Reader) *ROIScanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, maxROILineLen)
	return &ROIScanner{scanner: scanner}
}

// Scan advances to the next ROI.  It returns false at the end of the input or
// on error; Err distinguishes the two.
func (s *ROIScanner) Scan() bool {
	if s.err != nil {
		return false
	}
	for s.scanner.Scan() {
		s.lineIdx++
		curLine := s.scanner.Bytes()
		nToken := getTokens(s.tokens[:], curLine)
		if nToken == 0 || s.tokens[0][0] == '#' {
			continue
		}
		if nToken != len(s.tokens) {
			s.err = s.malformed(curLine, "has fewer tokens than expected")
			return false
		}
		// Coordinates outside the chromosome, negative ones included, are
		// well-formed; the consumer decides whether to skip them.
		start1, err := strconv.ParseInt(gunsafe.BytesToString(s.tokens[1]), 10, 32)
		if err != nil || start1 == math.MinInt32 {
			s.err = s.malformed(curLine, "has an invalid start coordinate")
			return false
		}
		end1, err := strconv.ParseInt(gunsafe.BytesToString(s.tokens[2]), 10, 32)
		if err != nil {
			s.err = s.malformed(curLine, "has an invalid stop coordinate")
			return false
		}
		s.roi = ROI{
			RefName: string(s.tokens[0]),
			Start0:  PosType(start1 - 1),
			End:     PosType(end1),
			Label:   string(s.tokens[3]),
			LineIdx: s.lineIdx,
		}
		return true
	}
	s.err = s.scanner.Err()
	return false
}

func (s *ROIScanner) malformed(curLine []byte, why string) error {
	return errors.E(errors.Invalid,
		fmt.Sprintf("interval.ROIScanner: badly formatted ROI: line %d %s: %q", s.lineIdx, why, string(curLine)))
}

// ROI returns the most recently scanned ROI.
func (s *ROIScanner) ROI() ROI {
	return s.roi
}

// Err returns the first error encountered, or nil at a clean end of input.
func (s *ROIScanner) Err() error {
	return s.err
}

// ROIFile is an ROIScanner reading from a (possibly gzipped) file.
type ROIFile struct {
	*ROIScanner
	in file.File
	gz *gzip.Reader
}

// OpenROIFile opens the ROI file at path.  Paths ending in .gz are
// decompressed.
func OpenROIFile(ctx context.Context, path string) (*ROIFile, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "failed to open ROI file", path)
	}
	f := &ROIFile{in: in}
	reader := io.Reader(in.Reader(ctx))
	switch fileio.DetermineType(path) {
	case fileio.Gzip:
		if f.gz, err = gzip.NewReader(reader); err != nil {
			_ = in.Close(ctx)
			return nil, errors.E(err, "failed to open ROI file", path)
		}
		reader = f.gz
	}
	f.ROIScanner = NewROIScanner(reader)
	return f, nil
}

// Close closes the underlying file.
func (f *ROIFile) Close(ctx context.Context) error {
	var err error
	if f.gz != nil {
		err = f.gz.Close()
	}
	if e := f.in.Close(ctx); e != nil && err == nil {
		err = e
	}
	return err
}
