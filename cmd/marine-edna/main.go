// marine-edna runs the marine eDNA metabolic-pathway pipeline over a YAML
// run manifest.
//
// The pipeline takes long-read FASTQ samples through quality and
// contamination filtering, denoising, depth-aware taxonomic profiling,
// pathway quantification and environment-aware normalization, then
// decomposes per-site pathway time series and flags anomalies.
//
// Example: process a manifest, checkpointing as samples finish.
//
//	marine-edna -config run.yaml -checkpoint run.ckpt
//
// Example: resume after an interruption; committed samples are restored from
// the checkpoint and only the remainder is recomputed.
//
//	marine-edna -config run.yaml -resume run.ckpt -checkpoint run2.ckpt
package main

import (
	"context"
	"flag"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/base/vcontext"
	"github.com/marinebio/edna/edna"
	"github.com/marinebio/edna/refdb"
	"github.com/marinebio/edna/runner"
)

// Collection of options set via cmdline flags.
type ednaFlags struct {
	configPath     string
	parallelism    int
	queueCapacity  int
	refTimeout     time.Duration
	checkpointPath string
	resumeFrom     string
	pathways       string
	sampleReport   string
	abundanceOut   string
	seriesOut      string
}

func main() {
	flags := ednaFlags{}
	flag.StringVar(&flags.configPath, "config", "", "YAML run manifest: options, reference paths and samples. Required.")
	flag.IntVar(&flags.parallelism, "parallelism", runtime.NumCPU(), "Number of samples processed concurrently.")
	flag.IntVar(&flags.queueCapacity, "queue-capacity", 0, "Bound on the sample dispatch queue. Zero means twice the parallelism.")
	flag.DurationVar(&flags.refTimeout, "ref-timeout", runner.DefaultRefTimeout, "Per-stage timeout for reference lookups.")
	flag.StringVar(&flags.checkpointPath, "checkpoint", "", "File to commit per-sample checkpoint records to as they finish.")
	flag.StringVar(&flags.resumeFrom, "resume", "", `Checkpoint written by a previous run. Samples committed there are
restored instead of recomputed; failed samples are retried.`)
	flag.StringVar(&flags.pathways, "pathways", "", "Comma-separated pathway whitelist. Empty keeps all pathways.")
	flag.StringVar(&flags.sampleReport, "sample-report", "./samples.tsv", "TSV file for the per-sample report.")
	flag.StringVar(&flags.abundanceOut, "abundance-output", "./abundances.tsv", "TSV file for the normalized pathway abundances.")
	flag.StringVar(&flags.seriesOut, "series-output", "./series.tsv", "TSV file for the per-site series decompositions and anomaly flags.")

	cleanup := grail.Init()
	defer cleanup()
	ctx := vcontext.Background()

	if flags.configPath == "" {
		log.Fatal("-config is required")
	}
	cfg, err := loadConfig(ctx, flags.configPath)
	if err != nil {
		log.Panic(err)
	}
	refs, err := loadRefs(ctx, cfg.References)
	if err != nil {
		log.Panic(err)
	}

	samples := make([]edna.Sample, len(cfg.Samples))
	err = traverse.Each(len(cfg.Samples), func(i int) error {
		e := cfg.Samples[i]
		s, err := runner.ReadSampleFASTQ(ctx, e.ID, e.metadata(), e.FASTQ)
		if err != nil {
			return err
		}
		samples[i] = s
		return nil
	})
	if err != nil {
		log.Panic(err)
	}

	res, err := runner.Run(ctx, samples, refs, runner.Config{
		Opts:             cfg.Options,
		Parallelism:      flags.parallelism,
		QueueCapacity:    flags.queueCapacity,
		RefTimeout:       flags.refTimeout,
		CheckpointPath:   flags.checkpointPath,
		ResumeFrom:       flags.resumeFrom,
		PathwayWhitelist: splitList(flags.pathways),
	})
	if err != nil {
		log.Panic(err)
	}

	for _, out := range []struct {
		path  string
		write func(io.Writer, *runner.Result) error
	}{
		{flags.sampleReport, runner.WriteSampleReport},
		{flags.abundanceOut, runner.WriteAbundanceTable},
		{flags.seriesOut, runner.WriteSeriesReport},
	} {
		if err := writeTSV(ctx, out.path, res, out.write); err != nil {
			log.Panic(err)
		}
	}
	log.Printf("%d samples, %d series, %d skipped", len(res.Samples), len(res.Series), len(res.Skipped))
	log.Printf("All done")
}

// loadRefs builds the in-memory reference databases named by the manifest.
// Marker FASTAs are optional individually; the contamination screen only
// knows the classes it was given sequences for.
func loadRefs(ctx context.Context, refs references) (runner.Refs, error) {
	markers := refdb.NewMarkerSet(refdb.DefaultK)
	for _, m := range []struct {
		class edna.MarkerClass
		path  string
	}{
		{edna.MarkerMarine, refs.MarineMarkers},
		{edna.MarkerTerrestrial, refs.TerrestrialMarkers},
		{edna.MarkerFreshwater, refs.FreshwaterMarkers},
	} {
		if m.path == "" {
			continue
		}
		class := m.class
		if err := withReader(ctx, m.path, func(r io.Reader) error {
			return markers.AddFASTA(class, r)
		}); err != nil {
			return runner.Refs{}, err
		}
	}

	var taxonomy *refdb.Taxonomy
	if err := withReader(ctx, refs.Taxonomy, func(r io.Reader) error {
		var err error
		taxonomy, err = refdb.ReadTaxonomyTSV(r, refdb.DefaultK)
		return err
	}); err != nil {
		return runner.Refs{}, err
	}

	pathways := refdb.NewPathwayDB(refdb.DefaultK, refdb.DefaultGeneMatch)
	if err := withReader(ctx, refs.Genes, pathways.AddGeneFASTA); err != nil {
		return runner.Refs{}, err
	}
	if err := withReader(ctx, refs.Pathways, pathways.ReadPathwayTSV); err != nil {
		return runner.Refs{}, err
	}
	return runner.Refs{Markers: markers, Taxonomy: taxonomy, Pathways: pathways}, nil
}

// withReader opens path, transparently decompressing by extension, and runs
// fn over the contents.
func withReader(ctx context.Context, path string, fn func(io.Reader) error) error {
	in, err := file.Open(ctx, path)
	if err != nil {
		return errors.E("open reference", path, err)
	}
	var r io.Reader = in.Reader(ctx)
	u, _ := compress.NewReaderPath(r, in.Name())
	r = u
	once := errors.Once{}
	if err := fn(r); err != nil {
		once.Set(errors.E("load reference", path, err))
	}
	once.Set(in.Close(ctx))
	return once.Err()
}

func writeTSV(ctx context.Context, path string, res *runner.Result, fn func(io.Writer, *runner.Result) error) error {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E("create report", path, err)
	}
	once := errors.Once{}
	once.Set(fn(out.Writer(ctx), res))
	once.Set(out.Close(ctx))
	if err := once.Err(); err != nil {
		return errors.E("write report", path, err)
	}
	log.Printf("wrote %s", path)
	return nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
