// Package fastq reads and writes FASTQ files holding single-end long reads.
// Quality strings are decoded to numeric Phred scores (ASCII offset 33) on
// the way in and re-encoded on the way out.
package fastq

import (
	"bufio"
	"errors"
	"io"
)

var (
	// ErrShort is returned when a truncated FASTQ file is encountered.
	ErrShort = errors.New("short FASTQ file")
	// ErrInvalid is returned when an invalid FASTQ file is encountered.
	ErrInvalid = errors.New("invalid FASTQ file")
)

// qualOffset is the Phred+33 ASCII encoding offset.
const qualOffset = 33

// A Read is one FASTQ record: the ID line without its leading "@", the base
// sequence, and the decoded per-base Phred scores.
type Read struct {
	ID   string
	Seq  string
	Qual []byte
}

var errEOF = errors.New("eof")

// maxLine bounds a single FASTQ line. Nanopore reads run to tens of
// kilobases, well past bufio's default token size.
const maxLine = 1 << 20

// Scanner provides a convenient interface for reading FASTQ read data. The
// Scan method returns the next read, returning a boolean indicating whether
// the read succeeded. Scanners are not threadsafe.
//
// Scanner requires ID lines to begin with "@", line 3 to begin with "+", and
// quality characters to be valid Phred+33. It does not require seq and qual
// to be of equal length; downstream QC tags such records as malformed.
type Scanner struct {
	b   *bufio.Scanner
	err error
}

// NewScanner constructs a new Scanner that reads raw FASTQ data from the
// provided reader.
func NewScanner(r io.Reader) *Scanner {
	b := bufio.NewScanner(r)
	b.Buffer(make([]byte, 64*1024), maxLine)
	return &Scanner{b: b}
}

// Scan the next read into the provided read. Scan returns a boolean
// indicating whether the scan succeeded. Once Scan returns false, it never
// returns true again. Upon completion, the user should check the Err method
// to determine whether scanning stopped because of an error or because the
// end of the stream was reached.
func (f *Scanner) Scan(read *Read) bool {
	if f.err != nil {
		return false
	}
	if !f.b.Scan() {
		if f.err = f.b.Err(); f.err == nil {
			f.err = errEOF
		}
		return false
	}
	id := f.b.Bytes()
	if len(id) == 0 || id[0] != '@' {
		f.err = ErrInvalid
		return false
	}
	read.ID = string(id[1:])
	if !f.scan() {
		return false
	}
	read.Seq = f.b.Text()
	if !f.scan() {
		return false
	}
	sep := f.b.Bytes()
	if len(sep) == 0 || sep[0] != '+' {
		f.err = ErrInvalid
		return false
	}
	if !f.scan() {
		return false
	}
	qual := f.b.Bytes()
	read.Qual = make([]byte, len(qual))
	for i, c := range qual {
		if c < qualOffset {
			f.err = ErrInvalid
			return false
		}
		read.Qual[i] = c - qualOffset
	}
	return true
}

func (f *Scanner) scan() bool {
	ok := f.b.Scan()
	if !ok {
		if f.err = f.b.Err(); f.err == nil {
			f.err = ErrShort
		}
	}
	return ok
}

// Err returns the scanning error, if any.
func (f *Scanner) Err() error {
	if f.err == errEOF {
		return nil
	}
	return f.err
}
