package fasta

import (
	"bufio"
	"io"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/pkg/errors"
)

// Index files consist of one tab-separated line per sequence in the associated
// FASTA file.  The format is: "<sequence name>\t<length>\t<byte
// offset>\t<bases per line>\t<bytes per line>".
// For example: "chr3\t12345\t9000\t80\t81".
var indexRegExp = regexp.MustCompile(`^(\S+)\t(\d+)\t(\d+)\t(\d+)\t(\d+)`)

type indexEntry struct {
	length    uint64
	offset    uint64
	lineBase  uint64
	lineWidth uint64
}

type indexedFasta struct {
	seqs     map[string]indexEntry
	seqNames []string // returned by SeqNames()

	mu        sync.Mutex
	reader    io.ReadSeeker
	raw       []byte // temp for the on-disk bytes, newlines included.
	resultBuf []byte // temp for concatenating multi-line sequences.
}

// NewIndexed creates a new Fasta that can perform efficient random lookups
// using the provided index, without reading the data into memory.
func NewIndexed(fasta io.ReadSeeker, index io.Reader) (Fasta, error) {
	f := &indexedFasta{seqs: make(map[string]indexEntry), reader: fasta}
	scanner := bufio.NewScanner(index)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		matches := indexRegExp.FindStringSubmatch(scanner.Text())
		if len(matches) != 6 {
			return nil, errors.Errorf("invalid index line: %s", scanner.Text())
		}
		ent := indexEntry{}
		ent.length, _ = strconv.ParseUint(matches[2], 10, 64)
		ent.offset, _ = strconv.ParseUint(matches[3], 10, 64)
		ent.lineBase, _ = strconv.ParseUint(matches[4], 10, 64)
		ent.lineWidth, _ = strconv.ParseUint(matches[5], 10, 64)
		if ent.length > 0 && (ent.lineBase == 0 || ent.lineWidth < ent.lineBase) {
			return nil, errors.Errorf("invalid line geometry in index line: %s", scanner.Text())
		}
		f.seqs[matches[1]] = ent
		f.seqNames = append(f.seqNames, matches[1])
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "couldn't read FASTA index")
	}
	sort.SliceStable(f.seqNames, func(i, j int) bool {
		return f.seqs[f.seqNames[i]].offset < f.seqs[f.seqNames[j]].offset
	})
	return f, nil
}

// Len implements Fasta.Len().
func (f *indexedFasta) Len(seqName string) (uint64, error) {
	ent, ok := f.seqs[seqName]
	if !ok {
		return 0, errors.Errorf("sequence not found in index: %s", seqName)
	}
	return ent.length, nil
}

func resizeBuf(buf *[]byte, n int) {
	if cap(*buf) < n {
		*buf = make([]byte, n)
	} else {
		*buf = (*buf)[:n]
	}
}

// Get implements Fasta.Get().
func (f *indexedFasta) Get(seqName string, start, end uint64) (string, error) {
	if end <= start {
		return "", errors.Errorf("start must be less than end")
	}
	ent, ok := f.seqs[seqName]
	if !ok {
		return "", errors.Errorf("sequence not found in index: %s", seqName)
	}
	if end > ent.length {
		return "", errors.Errorf("end is past end of sequence %s: %d", seqName, ent.length)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Start the read at a byte offset allowing for the presence of newline
	// characters.
	charsPerNewline := ent.lineWidth - ent.lineBase
	offset := ent.offset + start + charsPerNewline*(start/ent.lineBase)

	// Number of line terminators between start and end.
	firstLineBases := ent.lineBase - (start % ent.lineBase)
	newlinesToRead := uint64(0)
	if end-start > firstLineBases {
		newlinesToRead = 1 + (end-start-firstLineBases-1)/ent.lineBase
	}
	capacity := end - start + newlinesToRead*charsPerNewline

	if _, err := f.reader.Seek(int64(offset), io.SeekStart); err != nil {
		return "", errors.Wrapf(err, "failed to seek to offset %d", offset)
	}
	resizeBuf(&f.raw, int(capacity))
	if _, err := io.ReadFull(f.reader, f.raw); err != nil {
		return "", errors.Wrapf(err, "reading %s:%d-%d (bad index?)", seqName, start, end)
	}

	// Copy the non-newline characters to the result.
	resizeBuf(&f.resultBuf, int(end-start))
	linePos := (offset - ent.offset) % ent.lineWidth
	resultPos := 0
	for _, c := range f.raw {
		if linePos < ent.lineBase {
			f.resultBuf[resultPos] = c
			resultPos++
		}
		linePos++
		if linePos == ent.lineWidth {
			linePos = 0
		}
	}
	if resultPos != len(f.resultBuf) {
		return "", errors.Errorf("inconsistent index for %s: got %d bases, want %d", seqName, resultPos, len(f.resultBuf))
	}
	return string(f.resultBuf), nil
}

// SeqNames implements Fasta.SeqNames().
func (f *indexedFasta) SeqNames() []string {
	return f.seqNames
}
