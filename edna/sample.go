// Package edna implements the per-sample stages of the marine eDNA
// metabolic-pathway pipeline: quality and contamination filtering, long-read
// denoising, depth-aware taxonomic profiling, pathway quantification, and
// environment-aware abundance normalization.
//
// Artifacts produced by each stage are immutable; a stage never modifies its
// input in place, so samples can be processed concurrently without locking.
package edna

import "time"

// Read is a single long read: the base sequence over {A,C,G,T} and the
// per-base Phred quality scores. Reads are never mutated after ingestion;
// the denoiser produces new Read values.
type Read struct {
	// Name is the read identifier from the FASTQ ID line, without the "@".
	Name string
	// Seq is the base sequence.
	Seq string
	// Qual holds one Phred score per base. len(Qual) == len(Seq) for a
	// well-formed read; the QC stage tags mismatches as malformed.
	Qual []byte
}

// Len returns the sequence length.
func (r Read) Len() int { return len(r.Seq) }

// WellFormed reports whether the read has a nonempty sequence and matching
// quality length.
func (r Read) WellFormed() bool {
	return len(r.Seq) > 0 && len(r.Seq) == len(r.Qual)
}

// MeanQuality returns the mean Phred score of the read, or 0 for an empty
// quality string.
func (r Read) MeanQuality() float64 {
	if len(r.Qual) == 0 {
		return 0
	}
	total := 0
	for _, q := range r.Qual {
		total += int(q)
	}
	return float64(total) / float64(len(r.Qual))
}

// GCFraction returns the fraction of G and C bases, or 0 for an empty read.
func (r Read) GCFraction() float64 {
	if len(r.Seq) == 0 {
		return 0
	}
	n := 0
	for i := 0; i < len(r.Seq); i++ {
		if c := r.Seq[i]; c == 'G' || c == 'C' {
			n++
		}
	}
	return float64(n) / float64(len(r.Seq))
}

// Metadata describes where and how a sample was collected.
type Metadata struct {
	Site         string
	Latitude     float64
	Longitude    float64
	DepthM       float64
	CollectedAt  time.Time
	SalinityPSU  float64
	TemperatureC float64
}

// Sample is one sequencing run plus its environmental metadata. A Sample is
// owned by exactly one pipeline run and is immutable once ingested; stages
// that narrow or correct the read set return a new Sample value.
type Sample struct {
	ID    string
	Meta  Metadata
	Reads []Read
}

// WithReads returns a copy of the sample holding the given reads instead of
// the original ones. Metadata is carried over unchanged.
func (s Sample) WithReads(reads []Read) Sample {
	return Sample{ID: s.ID, Meta: s.Meta, Reads: reads}
}

// DepthZone is the oceanographic depth zone a sample was collected in. It
// drives the taxonomic profiler's prior weighting.
type DepthZone int

const (
	// ZonePhotic is 0-200m: light penetrates, phototrophs expected.
	ZonePhotic DepthZone = iota
	// ZoneMesopelagic is 200-1000m: heterotrophs dominate.
	ZoneMesopelagic
	// ZoneDeep is >1000m: pressure-adapted taxa expected.
	ZoneDeep
)

// String implements fmt.Stringer.
func (z DepthZone) String() string {
	switch z {
	case ZonePhotic:
		return "photic"
	case ZoneMesopelagic:
		return "mesopelagic"
	case ZoneDeep:
		return "deep"
	}
	return "unknown"
}

// ZoneForDepth classifies a collection depth into a DepthZone.
func ZoneForDepth(depthM float64) DepthZone {
	switch {
	case depthM <= 200:
		return ZonePhotic
	case depthM <= 1000:
		return ZoneMesopelagic
	default:
		return ZoneDeep
	}
}
