package runner

import (
	"context"
	"io"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/marinebio/edna/edna"
	"github.com/marinebio/edna/encoding/fastq"
)

// ReadSampleFASTQ loads one sample's reads from a FASTQ file, transparently
// decompressing by file extension. Structural FASTQ corruption is an input
// format error; per-read problems (length mismatches and the like) are left
// for QC to tag.
func ReadSampleFASTQ(ctx context.Context, id string, meta edna.Metadata, path string) (edna.Sample, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return edna.Sample{}, errors.E(errors.NotExist, "open FASTQ", path, err)
	}
	var r io.Reader = in.Reader(ctx)
	u, _ := compress.NewReaderPath(r, in.Name())
	r = u

	s := edna.Sample{ID: id, Meta: meta}
	sc := fastq.NewScanner(r)
	var fr fastq.Read
	for sc.Scan(&fr) {
		s.Reads = append(s.Reads, edna.Read{Name: fr.ID, Seq: fr.Seq, Qual: fr.Qual})
	}
	once := errors.Once{}
	if err := sc.Err(); err != nil {
		once.Set(errors.E(errors.Invalid, "parse FASTQ", path, err))
	}
	once.Set(in.Close(ctx))
	if err := once.Err(); err != nil {
		return edna.Sample{}, err
	}
	log.Printf("%s: read %d reads from %s", id, len(s.Reads), path)
	return s, nil
}
