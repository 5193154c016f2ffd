// Package fasta reads reference sequences from (optionally indexed) FASTA
// files.  See http://www.htslib.org/doc/faidx.html.  FASTA files consist of a
// number of named sequences that may be interrupted by newlines:
//
// >chr7
// ACGTAC
// GAGGAC
// GCG
// >chr8
// ACGT
//
// Sequence names are the stretch of characters immediately after '>' up to the
// first space, so '>chr1 A viral sequence' names 'chr1'.
//
// The coverage engine only ever asks for whole chromosomes, one at a time, so
// both implementations are optimized for Get(name, 0, Len(name)).
package fasta

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

const (
	bufferInitSize = 1024 * 1024 * 300 // 300 MB
)

// Fasta represents FASTA-formatted data, consisting of a set of named
// sequences.
type Fasta interface {
	// Get returns a substring of the given sequence name at the given
	// coordinates, which are treated as a 0-based half-open interval
	// [start, end). Get is thread-safe.
	Get(seqName string, start, end uint64) (string, error)

	// Len returns the length of the given sequence.
	Len(seqName string) (uint64, error)

	// SeqNames returns the names of all sequences, in the order of appearance in
	// the FASTA file.
	SeqNames() []string
}

// Seq returns the entire sequence named seqName.
func Seq(fa Fasta, seqName string) (string, error) {
	n, err := fa.Len(seqName)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	return fa.Get(seqName, 0, n)
}

type fasta struct {
	seqs     map[string]string
	seqNames []string
}

// New creates a new Fasta that holds all the FASTA data from the given reader
// in memory.
func New(r io.Reader) (Fasta, error) {
	f := &fasta{seqs: make(map[string]string)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, bufferInitSize)
	var seqName string
	var seq strings.Builder
	flush := func() error {
		if seqName == "" {
			if seq.Len() != 0 {
				return errors.Errorf("malformed FASTA file: sequence data before first header")
			}
			return nil
		}
		if _, ok := f.seqs[seqName]; ok {
			return errors.Errorf("malformed FASTA file: duplicate sequence name %s", seqName)
		}
		f.seqs[seqName] = seq.String()
		f.seqNames = append(f.seqNames, seqName)
		seq.Reset()
		return nil
	}
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			if err := flush(); err != nil {
				return nil, err
			}
			seqName = strings.Split(line[1:], " ")[0]
			if seqName == "" {
				return nil, errors.Errorf("malformed FASTA file: empty sequence name")
			}
			continue
		}
		seq.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "couldn't read FASTA data")
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return f, nil
}

// Get implements Fasta.Get().
func (f *fasta) Get(seqName string, start, end uint64) (string, error) {
	s, ok := f.seqs[seqName]
	if !ok {
		return "", errors.Errorf("sequence not found: %s", seqName)
	}
	if end <= start {
		return "", errors.Errorf("start must be less than end")
	}
	if end > uint64(len(s)) {
		return "", errors.Errorf("invalid query range %d - %d for sequence %s with length %d",
			start, end, seqName, len(s))
	}
	return s[start:end], nil
}

// Len implements Fasta.Len().
func (f *fasta) Len(seqName string) (uint64, error) {
	s, ok := f.seqs[seqName]
	if !ok {
		return 0, errors.Errorf("sequence not found: %s", seqName)
	}
	return uint64(len(s)), nil
}

// SeqNames implements Fasta.SeqNames().
func (f *fasta) SeqNames() []string {
	return f.seqNames
}
