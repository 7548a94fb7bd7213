package runner

// Checkpoints are recordio files holding one gob-encoded SampleResult per
// record, with the run's options gob-encoded in the trailer. A resumed run
// restores the committed samples and refuses checkpoints written under
// different options, since mixed-option outputs would not be comparable.

import (
	"bytes"
	"context"
	"encoding/gob"
	"reflect"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
	"github.com/marinebio/edna/edna"
)

const (
	checkpointVersionHeader = "ednaversion"
	checkpointVersion       = "EDNA_CKPT_V1"
)

type checkpointWriter struct {
	out  file.File
	w    recordio.Writer
	opts edna.Opts
}

func newCheckpointWriter(ctx context.Context, path string, opts edna.Opts) (*checkpointWriter, error) {
	recordiozstd.Init()
	out, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E("create checkpoint", path, err)
	}
	w := recordio.NewWriter(out.Writer(ctx), recordio.WriterOpts{
		Transformers: []string{recordiozstd.Name},
	})
	w.AddHeader(checkpointVersionHeader, checkpointVersion)
	w.AddHeader(recordio.KeyTrailer, true)
	return &checkpointWriter{out: out, w: w, opts: opts}, nil
}

// Append commits one finished sample to the checkpoint.
func (w *checkpointWriter) Append(sr SampleResult) error {
	b := bytes.NewBuffer(nil)
	if err := gob.NewEncoder(b).Encode(sr); err != nil {
		return errors.E("encode checkpoint record", sr.SampleID, err)
	}
	w.w.Append(b.Bytes())
	return nil
}

// Close writes the options trailer and finishes the file. It must be called
// exactly once, after the last Append.
func (w *checkpointWriter) Close(ctx context.Context) error {
	b := bytes.NewBuffer(nil)
	if err := gob.NewEncoder(b).Encode(w.opts); err != nil {
		return errors.E("encode checkpoint trailer", err)
	}
	w.w.SetTrailer(b.Bytes())
	once := errors.Once{}
	once.Set(w.w.Finish())
	once.Set(w.out.Close(ctx))
	return once.Err()
}

// readCheckpoint restores the committed sample results of a previous run.
// The checkpoint must have been written under the same options as the
// resuming run.
func readCheckpoint(ctx context.Context, path string, opts edna.Opts) (map[string]SampleResult, error) {
	recordiozstd.Init()
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E("open checkpoint", path, err)
	}
	defer in.Close(ctx) // nolint: errcheck
	r := recordio.NewScanner(in.Reader(ctx), recordio.ScannerOpts{})

	versionFound := false
	for _, kv := range r.Header() {
		if kv.Key == checkpointVersionHeader {
			if kv.Value.(string) != checkpointVersion {
				return nil, errors.E(errors.Invalid,
					"checkpoint version mismatch: got "+kv.Value.(string)+", want "+checkpointVersion)
			}
			versionFound = true
			break
		}
	}
	if !versionFound {
		return nil, errors.E(errors.Invalid, path+": not a checkpoint file")
	}
	if len(r.Trailer()) == 0 {
		return nil, errors.E(errors.Invalid, path+": checkpoint has no trailer; the writing run did not finish")
	}
	var ckptOpts edna.Opts
	if err := gob.NewDecoder(bytes.NewReader(r.Trailer())).Decode(&ckptOpts); err != nil {
		return nil, errors.E("decode checkpoint trailer", err)
	}
	if !reflect.DeepEqual(ckptOpts, opts) {
		return nil, errors.E(errors.Invalid,
			path+": checkpoint was written with different options; rerun from scratch or restore the original options")
	}

	restored := map[string]SampleResult{}
	for r.Scan() {
		var sr SampleResult
		if err := gob.NewDecoder(bytes.NewReader(r.Get().([]byte))).Decode(&sr); err != nil {
			return nil, errors.E("decode checkpoint record", err)
		}
		// Failed samples are not restored; a resume retries them.
		if sr.State == StateDone {
			restored[sr.SampleID] = sr
		}
	}
	if err := r.Err(); err != nil {
		return nil, errors.E("read checkpoint", path, err)
	}
	return restored, nil
}
