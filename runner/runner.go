// Package runner orchestrates the per-sample pipeline stages across a worker
// pool and aggregates per-site time series from the finished samples. One
// sample failing never aborts the run; its failure is recorded and the
// remaining samples proceed.
package runner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/marinebio/edna/edna"
	"github.com/marinebio/edna/timeseries"
)

// State is the terminal disposition of one sample.
type State int

const (
	// StatePending means the sample has not finished yet. It never appears
	// in a final Result.
	StatePending State = iota
	// StateDone means every stage completed.
	StateDone
	// StateFailed means a stage failed; Err holds the reason.
	StateFailed
	// StateRestored means the sample's outputs were restored from a
	// checkpoint instead of being recomputed.
	StateRestored
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateRestored:
		return "restored"
	}
	return "invalid"
}

// Refs bundles the three reference collaborators. All must be safe for
// concurrent use.
type Refs struct {
	Markers  edna.MarkerClassifier
	Taxonomy edna.TaxonomyClassifier
	Pathways edna.PathwayRef
}

// DefaultRefTimeout is the per-stage bound on reference lookups when
// Config.RefTimeout is left unset. Generous for in-memory backends; remote
// backends should configure their own.
const DefaultRefTimeout = time.Minute

// Config controls one pipeline run.
type Config struct {
	Opts edna.Opts
	// Parallelism is the worker pool size. Zero means one worker per CPU is
	// chosen by the caller; the runner itself requires a positive value.
	Parallelism int
	// QueueCapacity bounds the sample dispatch queue so a slow pool applies
	// backpressure to the producer instead of buffering every sample.
	QueueCapacity int
	// RefTimeout bounds each sample's reference-dependent stages. Zero
	// means DefaultRefTimeout; reference calls are never issued without a
	// deadline.
	RefTimeout time.Duration
	// CheckpointPath, when nonempty, receives a checkpoint record after
	// each sample completes.
	CheckpointPath string
	// ResumeFrom, when nonempty, names a checkpoint from a previous run;
	// samples committed there are restored, not recomputed.
	ResumeFrom string
	// PathwayWhitelist narrows the reported pathways. Empty keeps all.
	PathwayWhitelist []string
}

// SampleResult is the complete outcome of one sample: its disposition plus
// every per-stage artifact. Failed samples carry the artifacts of the stages
// that completed before the failure.
type SampleResult struct {
	SampleID string
	Site     string
	Meta     edna.Metadata
	State    State
	// Err is the failure reason for StateFailed samples.
	Err string
	// Warning carries a non-fatal data-quality message.
	Warning string

	QC         []edna.QCResult
	Correction edna.CorrectionReport
	Profile    *edna.TaxonomicProfile
	Table      *edna.NormalizedAbundanceTable
}

// SeriesSkip records a (site, pathway) series that could not be decomposed,
// with the reason.
type SeriesSkip struct {
	Site    string
	Pathway string
	Reason  string
}

// Result is the outcome of a whole run.
type Result struct {
	// Samples holds one entry per input sample, sorted by sample ID.
	Samples []SampleResult
	// Series holds the per-(site, pathway) decompositions, sorted by site
	// and then pathway.
	Series []*timeseries.Result
	// Skipped lists the series with too few observations to decompose.
	Skipped []SeriesSkip
	// Stats aggregates the per-worker stage counters.
	Stats edna.Stats
}

// Run processes every sample through QC, denoising, profiling,
// quantification and normalization on a bounded worker pool, then aggregates
// per-site time series. A canceled context stops dispatch and discards
// partial work; committed checkpoint records survive for a later resume.
func Run(ctx context.Context, samples []edna.Sample, refs Refs, cfg Config) (*Result, error) {
	if err := cfg.Opts.Validate(); err != nil {
		return nil, err
	}
	if cfg.Parallelism <= 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("parallelism %d must be positive", cfg.Parallelism))
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 2 * cfg.Parallelism
	}
	if cfg.RefTimeout <= 0 {
		cfg.RefTimeout = DefaultRefTimeout
	}

	restored := map[string]SampleResult{}
	if cfg.ResumeFrom != "" {
		var err error
		if restored, err = readCheckpoint(ctx, cfg.ResumeFrom, cfg.Opts); err != nil {
			return nil, err
		}
		log.Printf("restored %d samples from %s", len(restored), cfg.ResumeFrom)
	}

	var ckpt *checkpointWriter
	if cfg.CheckpointPath != "" {
		var err error
		if ckpt, err = newCheckpointWriter(ctx, cfg.CheckpointPath, cfg.Opts); err != nil {
			return nil, err
		}
	}

	reqCh := make(chan edna.Sample, cfg.QueueCapacity)
	resCh := make(chan SampleResult, cfg.Parallelism)
	statsCh := make(chan edna.Stats, cfg.Parallelism)

	wg1 := sync.WaitGroup{}
	for i := 0; i < cfg.Parallelism; i++ {
		wg1.Add(1)
		go func() {
			defer wg1.Done()
			stats := edna.Stats{}
			for s := range reqCh {
				resCh <- processSample(ctx, s, refs, cfg, &stats)
			}
			statsCh <- stats
		}()
	}

	res := &Result{}
	wg2 := sync.WaitGroup{}
	wg2.Add(1)
	var ckptErr error
	go func() {
		defer wg2.Done()
		for sr := range resCh {
			res.Samples = append(res.Samples, sr)
			if ckpt == nil {
				continue
			}
			// Restored samples are re-committed so the new checkpoint is
			// complete on its own.
			rec := sr
			if rec.State == StateRestored {
				rec.State = StateDone
			}
			if err := ckpt.Append(rec); err != nil && ckptErr == nil {
				ckptErr = err
			}
		}
	}()

	// Dispatch. Restored samples bypass the pool.
	dispatched := 0
dispatch:
	for _, s := range samples {
		if sr, ok := restored[s.ID]; ok {
			sr.State = StateRestored
			resCh <- sr
			continue
		}
		select {
		case reqCh <- s:
			dispatched++
		case <-ctx.Done():
			break dispatch
		}
	}
	close(reqCh)
	wg1.Wait()
	close(resCh)
	close(statsCh)
	wg2.Wait()
	for stats := range statsCh {
		res.Stats = res.Stats.Merge(stats)
	}

	if ckpt != nil {
		if err := ckpt.Close(ctx); err != nil && ckptErr == nil {
			ckptErr = err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ckptErr != nil {
		return nil, ckptErr
	}
	sort.Slice(res.Samples, func(i, j int) bool {
		return res.Samples[i].SampleID < res.Samples[j].SampleID
	})

	if err := aggregateSeries(res, cfg.Opts); err != nil {
		return nil, err
	}
	return res, nil
}

// processSample runs the per-sample stages in order. The first failing stage
// terminates the sample with StateFailed; artifacts of earlier stages are
// kept for the report.
func processSample(ctx context.Context, s edna.Sample, refs Refs, cfg Config, stats *edna.Stats) SampleResult {
	sr := SampleResult{SampleID: s.ID, Site: s.Meta.Site, Meta: s.Meta, State: StateDone}
	stats.Samples++

	stageCtx, cancel := context.WithTimeout(ctx, cfg.RefTimeout)
	fr, err := edna.FilterSample(stageCtx, s, refs.Markers, stats, cfg.Opts)
	cancel()
	if err != nil {
		return fail(sr, "qc", err)
	}
	sr.QC = fr.Results
	if fr.Warning != nil {
		sr.Warning = fr.Warning.Error()
		log.Error.Printf("sample %s: %v", s.ID, fr.Warning)
	}

	reads, report := edna.Denoise(fr.Sample.Reads, stats, cfg.Opts)
	sr.Correction = report
	clean := fr.Sample.WithReads(reads)

	stageCtx, cancel = context.WithTimeout(ctx, cfg.RefTimeout)
	sr.Profile, err = edna.ProfileSample(stageCtx, clean, refs.Taxonomy, stats, cfg.Opts)
	cancel()
	if err != nil {
		return fail(sr, "profile", err)
	}

	stageCtx, cancel = context.WithTimeout(ctx, cfg.RefTimeout)
	table, err := edna.QuantifyPathways(stageCtx, clean, refs.Pathways, stats, cfg.Opts)
	cancel()
	if err != nil {
		return fail(sr, "quantify", err)
	}
	table.Whitelist(cfg.PathwayWhitelist)

	sr.Table, err = edna.Normalize(table, s.Meta, cfg.Opts.NormMethod, cfg.Opts)
	if err != nil {
		return fail(sr, "normalize", err)
	}
	return sr
}

func fail(sr SampleResult, stage string, err error) SampleResult {
	sr.State = StateFailed
	sr.Err = fmt.Sprintf("%s: %v", stage, err)
	log.Error.Printf("sample %s failed at %s: %v", sr.SampleID, stage, err)
	return sr
}

// aggregateSeries groups the normalized abundances of completed samples into
// (site, pathway) series and decomposes each site's series concurrently.
// Series shorter than two seasonal cycles are skipped, not fatal.
func aggregateSeries(res *Result, opts edna.Opts) error {
	type key struct{ site, pathway string }
	series := map[key][]timeseries.Observation{}
	for _, sr := range res.Samples {
		if sr.Table == nil || (sr.State != StateDone && sr.State != StateRestored) {
			continue
		}
		for _, p := range sr.Table.Pathways {
			k := key{sr.Site, p.Pathway}
			series[k] = append(series[k], timeseries.Observation{
				SampleID:  sr.SampleID,
				Timestamp: sr.Meta.CollectedAt,
				Value:     p.Normalized,
			})
		}
	}
	keys := make([]key, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].site != keys[j].site {
			return keys[i].site < keys[j].site
		}
		return keys[i].pathway < keys[j].pathway
	})

	results := make([]*timeseries.Result, len(keys))
	skips := make([]*SeriesSkip, len(keys))
	err := traverse.Each(len(keys), func(i int) error {
		k := keys[i]
		r, err := timeseries.Decompose(k.site, k.pathway, series[k], opts.SeasonalPeriod, opts.AnomalyK)
		if err != nil {
			if _, ok := err.(*timeseries.InsufficientDataError); ok {
				skips[i] = &SeriesSkip{Site: k.site, Pathway: k.pathway, Reason: err.Error()}
				return nil
			}
			return err
		}
		results[i] = r
		return nil
	})
	if err != nil {
		return err
	}
	for i := range keys {
		if results[i] != nil {
			res.Series = append(res.Series, results[i])
		}
		if skips[i] != nil {
			res.Skipped = append(res.Skipped, *skips[i])
		}
	}
	return nil
}
