package edna

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
)

// QCVerdict is the per-read quality-control outcome.
type QCVerdict int

const (
	// QCPass means the read survived every filter.
	QCPass QCVerdict = iota
	// QCFailLength means the read length fell outside the configured window.
	QCFailLength
	// QCFailQuality means the mean Phred score fell below the threshold.
	QCFailQuality
	// QCFailContamination means the marker classifier flagged the read as
	// non-marine above the confidence threshold.
	QCFailContamination
	// QCFailMalformed means the record itself was invalid (sequence/quality
	// length mismatch). Malformed records are skipped, never fatal.
	QCFailMalformed
)

// String implements fmt.Stringer.
func (v QCVerdict) String() string {
	switch v {
	case QCPass:
		return "pass"
	case QCFailLength:
		return "fail-length"
	case QCFailQuality:
		return "fail-quality"
	case QCFailContamination:
		return "fail-contamination"
	case QCFailMalformed:
		return "fail-malformed"
	}
	return "invalid"
}

// QCResult is the verdict for a single read. The QCResults of a sample form
// an ordered sequence matching the input read order; the order carries no
// semantics but keeps runs reproducible and auditable.
type QCResult struct {
	ReadName string
	Verdict  QCVerdict
	// Source is the contamination origin when Verdict is
	// QCFailContamination, and MarkerMarine ("none") otherwise. Flagged
	// reads are recorded here rather than silently dropped.
	Source MarkerClass
	// Similarity is the marker-classifier confidence for flagged reads.
	Similarity float64
	// GC is the read's G+C base fraction, recorded for run audit.
	GC float64
}

// Contaminated reports whether the read was flagged by the marker screen.
func (r QCResult) Contaminated() bool { return r.Verdict == QCFailContamination }

// DataQualityError is attached as a warning when most of a sample's reads
// fail QC. The sample still proceeds with whatever passed, possibly nothing;
// downstream stages operate on the surviving reads.
type DataQualityError struct {
	SampleID string
	Failed   int
	Total    int
}

// Error implements error.
func (e *DataQualityError) Error() string {
	return fmt.Sprintf("sample %s: %d of %d reads failed QC", e.SampleID, e.Failed, e.Total)
}

// lowQualityFraction is the QC failure fraction above which a sample gets a
// DataQualityError warning attached.
const lowQualityFraction = 0.9

// FilterResult is the outcome of running QC on one sample.
type FilterResult struct {
	// Sample holds only the passing reads, in input order.
	Sample Sample
	// Results holds one QCResult per ingested read, in input order.
	Results []QCResult
	// Warning is a *DataQualityError when more than 90% of reads failed,
	// nil otherwise.
	Warning error
}

// FilterSample validates and screens every read of a sample. Filters run in
// cost order and short-circuit: length, then mean quality, and only for
// survivors the contamination screen against the marker classifier.
// Contamination-flagged reads remain visible in Results for audit.
//
// A marker-classifier failure is fatal to the sample and is returned as an
// Unavailable error; sibling samples are unaffected.
func FilterSample(ctx context.Context, s Sample, markers MarkerClassifier, stats *Stats, opts Opts) (FilterResult, error) {
	res := FilterResult{
		Results: make([]QCResult, 0, len(s.Reads)),
	}
	passed := make([]Read, 0, len(s.Reads))
	failed := 0
	for _, read := range s.Reads {
		stats.Reads++
		r := QCResult{ReadName: read.Name, Source: MarkerMarine, GC: read.GCFraction()}
		switch {
		case !read.WellFormed():
			r.Verdict = QCFailMalformed
			stats.MalformedReads++
		case read.Len() < opts.MinLength || read.Len() > opts.MaxLength:
			r.Verdict = QCFailLength
			stats.FailedLength++
		case read.MeanQuality() < opts.MinMeanQuality:
			r.Verdict = QCFailQuality
			stats.FailedQuality++
		default:
			class, confidence, err := markers.Classify(ctx, read.Seq)
			if err != nil {
				return FilterResult{}, errors.E(errors.Unavailable, "contamination marker classifier", err)
			}
			if class != MarkerMarine && confidence >= opts.ContaminationConfidence {
				r.Verdict = QCFailContamination
				r.Source = class
				r.Similarity = confidence
				stats.FailedContamination++
			} else {
				r.Verdict = QCPass
				stats.PassedReads++
				passed = append(passed, read)
			}
		}
		if r.Verdict != QCPass {
			failed++
		}
		res.Results = append(res.Results, r)
	}
	res.Sample = s.WithReads(passed)
	if n := len(s.Reads); n > 0 && float64(failed) > lowQualityFraction*float64(n) {
		res.Warning = &DataQualityError{SampleID: s.ID, Failed: failed, Total: n}
		stats.LowQualitySamples++
	}
	return res, nil
}
