// Package fasta provides an in-memory reader for FASTA-formatted sequence
// data, as used by the reference databases.
package fasta

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

const bufferInitSize = 1024 * 1024

// Fasta holds a set of named sequences.
type Fasta struct {
	seqs     map[string]string
	seqNames []string
}

// New creates a new Fasta that holds all the FASTA data from the given
// reader in memory. Sequence names are the header up to the first space;
// multi-line sequences are concatenated.
func New(r io.Reader) (*Fasta, error) {
	f := &Fasta{seqs: make(map[string]string)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, bufferInitSize)
	var seqName string
	var seq strings.Builder
	flush := func() error {
		if seq.Len() == 0 {
			return nil
		}
		if seqName == "" {
			return errors.Errorf("malformed FASTA file")
		}
		f.seqs[seqName] = seq.String()
		f.seqNames = append(f.seqNames, seqName)
		seq.Reset()
		return nil
	}
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' { // Start a new sequence.
			if err := flush(); err != nil {
				return nil, err
			}
			seqName = strings.Split(line[1:], " ")[0]
		} else {
			seq.WriteString(line)
		}
	}
	if scanner.Err() != nil {
		return nil, errors.Wrap(scanner.Err(), "couldn't read FASTA data")
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return f, nil
}

// Seq returns the sequence with the given name.
func (f *Fasta) Seq(seqName string) (string, error) {
	seq, ok := f.seqs[seqName]
	if !ok {
		return "", errors.Errorf("sequence not found: %s", seqName)
	}
	return seq, nil
}

// Len returns the length of the given sequence.
func (f *Fasta) Len(seqName string) (uint64, error) {
	seq, ok := f.seqs[seqName]
	if !ok {
		return 0, errors.Errorf("sequence not found: %s", seqName)
	}
	return uint64(len(seq)), nil
}

// SeqNames returns the names of all sequences, in the order of appearance in
// the FASTA file.
func (f *Fasta) SeqNames() []string {
	return f.seqNames
}
