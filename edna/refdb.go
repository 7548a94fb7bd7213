package edna

import "context"

// The pipeline queries three external reference collaborators: a
// contamination-marker classifier, a taxonomy classifier, and a gene/pathway
// reference. They are modeled as interfaces so any backend (a local index, a
// remote service, an in-memory test double) can be substituted. All backends
// must be safe for concurrent use; the pipeline shares one instance of each
// across all workers without locking.

// MarkerClass is the origin class a contamination-marker classifier assigns
// to a sequence.
type MarkerClass int

const (
	// MarkerMarine means the sequence matched marine markers (not a
	// contaminant).
	MarkerMarine MarkerClass = iota
	// MarkerTerrestrial means the sequence matched terrestrial markers.
	MarkerTerrestrial
	// MarkerFreshwater means the sequence matched freshwater markers.
	MarkerFreshwater
	// MarkerUnknown means no marker set matched.
	MarkerUnknown
)

// String implements fmt.Stringer.
func (c MarkerClass) String() string {
	switch c {
	case MarkerMarine:
		return "marine"
	case MarkerTerrestrial:
		return "terrestrial"
	case MarkerFreshwater:
		return "freshwater"
	}
	return "unknown"
}

// MarkerClassifier screens a sequence against curated origin-marker sets.
type MarkerClassifier interface {
	// Classify returns the best-matching origin class for seq and the
	// similarity confidence in [0,1]. A sequence matching nothing returns
	// (MarkerUnknown, 0, nil).
	Classify(ctx context.Context, seq string) (MarkerClass, float64, error)
}

// Trophic is a taxon's broad trophic class, used by the depth-zone prior.
type Trophic int

const (
	// TrophicUnknown leaves the prior weight at 1.
	TrophicUnknown Trophic = iota
	// TrophicPhototroph marks light-dependent taxa.
	TrophicPhototroph
	// TrophicHeterotroph marks organic-matter consumers.
	TrophicHeterotroph
	// TrophicPressureAdapted marks deep-sea specialists.
	TrophicPressureAdapted
)

// String implements fmt.Stringer.
func (t Trophic) String() string {
	switch t {
	case TrophicPhototroph:
		return "phototroph"
	case TrophicHeterotroph:
		return "heterotroph"
	case TrophicPressureAdapted:
		return "pressure-adapted"
	}
	return "unknown"
}

// TaxonHit is one candidate taxonomic assignment for a read.
type TaxonHit struct {
	Taxon      string
	Confidence float64
}

// TaxonInfo describes a taxon known to the taxonomy reference.
type TaxonInfo struct {
	Taxon string
	// Habitat is the taxon's known habitat. Taxa with a non-marine,
	// non-unknown habitat are treated as contaminants by the profiler.
	Habitat MarkerClass
	// Trophic drives the depth-zone prior weighting.
	Trophic Trophic
}

// TaxonomyClassifier assigns candidate taxa to reads.
type TaxonomyClassifier interface {
	// ClassifyTaxon returns candidate assignments for seq with raw
	// confidences in [0,1], ordered by descending confidence. An empty
	// slice means no candidate.
	ClassifyTaxon(ctx context.Context, seq string) ([]TaxonHit, error)
	// TaxonInfo describes a taxon returned by ClassifyTaxon. Unknown taxa
	// yield a zero TaxonInfo (habitat and trophic class unknown).
	TaxonInfo(taxon string) TaxonInfo
}

// GeneHit is one gene-level call on a read, with its abundance contribution.
type GeneHit struct {
	Gene      string
	Abundance float64
}

// PathwayRef maps sequences to gene calls and genes to metabolic pathways.
type PathwayRef interface {
	// GenesFor returns gene-level calls for seq. An empty slice means the
	// read maps to no known gene.
	GenesFor(ctx context.Context, seq string) ([]GeneHit, error)
	// PathwaysContaining lists the pathways that include gene as a
	// constituent.
	PathwaysContaining(gene string) []string
	// RequiredGenes lists the genes a pathway requires to be considered
	// complete.
	RequiredGenes(pathway string) []string
}
