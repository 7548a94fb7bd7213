package fastq

import (
	"bufio"
	"bytes"
	"io"
	"math/rand"

	"github.com/pkg/errors"
)

const linesPerRead = 4

// Downsample copies a random subset of the FASTQ records from in to out at
// the given sampling rate. Selection uses a fixed seed so repeated runs over
// the same input pick the same reads. Records are copied verbatim, without
// quality decoding.
func Downsample(rate float64, in io.Reader, out io.Writer) error {
	if rate < 0.0 || rate > 1.0 {
		return errors.New("rate must be between 0 and 1 (inclusive)")
	}
	random := rand.New(rand.NewSource(0))
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	for {
		record, err := scanRecord(scanner)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "error reading FASTQ input")
		}
		if random.Float64() < rate {
			if _, err := out.Write(record); err != nil {
				return errors.Wrap(err, "error writing FASTQ output")
			}
		}
	}
}

func scanRecord(scanner *bufio.Scanner) ([]byte, error) {
	var buffer bytes.Buffer
	for i := 0; i < linesPerRead; i++ {
		if !scanner.Scan() {
			if i == 0 && scanner.Err() == nil {
				// Reached end of input.
				return nil, io.EOF
			}
			if scanner.Err() != nil {
				return nil, scanner.Err()
			}
			return nil, errors.Errorf("too few lines in FASTQ record: want %d, got %d", linesPerRead, i)
		}
		buffer.Write(scanner.Bytes())
		buffer.WriteString("\n")
	}
	return buffer.Bytes(), nil
}
