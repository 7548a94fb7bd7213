package edna

import (
	"context"
	"math"
	"sort"

	"github.com/grailbio/base/errors"
)

// Diversity holds the standard alpha-diversity indices of a profile.
type Diversity struct {
	// Richness is the number of distinct taxa.
	Richness int
	// Shannon is -sum(p*ln p) over taxon frequencies.
	Shannon float64
	// Simpson is 1-sum(p^2).
	Simpson float64
	// Pielou is Shannon evenness, Shannon/ln(Richness). Zero when fewer
	// than two taxa are present.
	Pielou float64
}

// TaxonomicProfile is the community composition of one sample. Abundances
// are relative frequencies over the assigned, non-contaminant reads and sum
// to 1 unless the profile is empty.
type TaxonomicProfile struct {
	SampleID string
	Zone     DepthZone
	// Abundances maps taxon to relative abundance.
	Abundances map[string]float64
	// Assigned and Unassigned count reads by assignment outcome. Unassigned
	// reads are excluded from Abundances but reported here.
	Assigned   int
	Unassigned int
	// Removed lists contaminant taxa stripped from the profile, sorted.
	// Their reads do not count toward Assigned.
	Removed   []string
	Diversity Diversity
}

// zonePrior returns the candidate-weighting prior for the sample's depth
// zone.
func zonePrior(zone DepthZone, opts Opts) DepthPrior {
	switch zone {
	case ZoneMesopelagic:
		return opts.MesopelagicPrior
	case ZoneDeep:
		return opts.DeepPrior
	}
	return opts.PhoticPrior
}

// ProfileSample assigns each read of the sample to a taxon and builds the
// sample's community profile. Raw classifier confidences are reweighted by
// the depth-zone prior for the candidate's trophic class before the best
// candidate is chosen; the prior shifts probability mass, it never
// hard-filters. Reads whose best weighted confidence stays below
// opts.MinTaxonConfidence are counted unassigned.
//
// Taxa the reference tags with a non-marine habitat are removed from the
// finished profile and the remainder renormalized; the removal is recorded
// in Removed. A reference failure aborts the sample with an Unavailable
// error.
func ProfileSample(ctx context.Context, s Sample, taxa TaxonomyClassifier, stats *Stats, opts Opts) (*TaxonomicProfile, error) {
	zone := ZoneForDepth(s.Meta.DepthM)
	prior := zonePrior(zone, opts)
	p := &TaxonomicProfile{
		SampleID:   s.ID,
		Zone:       zone,
		Abundances: map[string]float64{},
	}

	counts := map[string]int{}
	for _, read := range s.Reads {
		hits, err := taxa.ClassifyTaxon(ctx, read.Seq)
		if err != nil {
			return nil, errors.E(errors.Unavailable, "taxonomy reference", err)
		}
		best, bestScore := "", 0.0
		for _, hit := range hits {
			score := hit.Confidence * prior.weight(taxa.TaxonInfo(hit.Taxon).Trophic)
			if score > bestScore || (score == bestScore && best != "" && hit.Taxon < best) {
				best, bestScore = hit.Taxon, score
			}
		}
		if best == "" || bestScore < opts.MinTaxonConfidence {
			p.Unassigned++
			stats.UnassignedReads++
			continue
		}
		counts[best]++
	}

	// Strip taxa the reference knows to be non-marine. Unknown-habitat taxa
	// stay; only a positive non-marine tag counts as contamination.
	assigned := 0
	for taxon, n := range counts {
		habitat := taxa.TaxonInfo(taxon).Habitat
		if habitat == MarkerTerrestrial || habitat == MarkerFreshwater {
			p.Removed = append(p.Removed, taxon)
			delete(counts, taxon)
			continue
		}
		assigned += n
	}
	sort.Strings(p.Removed)
	stats.ContaminantTaxaRemoved += len(p.Removed)
	p.Assigned = assigned
	stats.AssignedReads += assigned

	for taxon, n := range counts {
		p.Abundances[taxon] = float64(n) / float64(assigned)
	}
	p.Diversity = diversityOf(p.Abundances)
	return p, nil
}

func diversityOf(abundances map[string]float64) Diversity {
	d := Diversity{Richness: len(abundances)}
	for _, p := range abundances {
		if p > 0 {
			d.Shannon -= p * math.Log(p)
		}
		d.Simpson += p * p
	}
	if len(abundances) > 0 {
		d.Simpson = 1 - d.Simpson
	} else {
		d.Simpson = 0
	}
	if d.Richness > 1 {
		d.Pielou = d.Shannon / math.Log(float64(d.Richness))
	}
	return d
}
