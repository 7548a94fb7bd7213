package edna

import (
	"context"
	"sort"

	"github.com/grailbio/base/errors"
)

// PathwayAbundance is the quantification of one metabolic pathway in one
// sample.
type PathwayAbundance struct {
	Pathway string
	// Raw is the summed abundance of the pathway's observed required genes.
	Raw float64
	// GenesObserved and GenesRequired count the pathway's required genes
	// seen in the sample and in total.
	GenesObserved int
	GenesRequired int
	// Coverage is GenesObserved/GenesRequired, in [0,1].
	Coverage float64
	// LowConfidence marks pathways whose coverage fell below the configured
	// threshold. They are flagged, never dropped.
	LowConfidence bool
}

// PathwayAbundanceTable holds the per-pathway quantifications of one sample,
// sorted by pathway name.
type PathwayAbundanceTable struct {
	SampleID string
	Pathways []PathwayAbundance
}

// Whitelist narrows the table to the named pathways, preserving order. A nil
// or empty whitelist keeps everything.
func (t *PathwayAbundanceTable) Whitelist(names []string) {
	if len(names) == 0 {
		return
	}
	keep := make(map[string]bool, len(names))
	for _, name := range names {
		keep[name] = true
	}
	kept := t.Pathways[:0]
	for _, p := range t.Pathways {
		if keep[p.Pathway] {
			kept = append(kept, p)
		}
	}
	t.Pathways = kept
}

// QuantifyPathways maps the sample's reads to genes and aggregates gene
// abundances into pathway abundances. A pathway's raw abundance is the sum
// over its required genes of the observed gene abundance; its coverage is
// the fraction of required genes observed at all. Reads mapping to no gene
// are counted unmapped, not errors. A reference failure aborts the sample
// with an Unavailable error.
func QuantifyPathways(ctx context.Context, s Sample, ref PathwayRef, stats *Stats, opts Opts) (*PathwayAbundanceTable, error) {
	geneAbundance := map[string]float64{}
	for _, read := range s.Reads {
		hits, err := ref.GenesFor(ctx, read.Seq)
		if err != nil {
			return nil, errors.E(errors.Unavailable, "gene/pathway reference", err)
		}
		if len(hits) == 0 {
			stats.UnmappedReads++
			continue
		}
		for _, hit := range hits {
			geneAbundance[hit.Gene] += hit.Abundance
		}
	}

	seen := map[string]bool{}
	table := &PathwayAbundanceTable{SampleID: s.ID}
	for gene := range geneAbundance {
		for _, pathway := range ref.PathwaysContaining(gene) {
			if seen[pathway] {
				continue
			}
			seen[pathway] = true
			required := ref.RequiredGenes(pathway)
			if len(required) == 0 {
				continue
			}
			pa := PathwayAbundance{Pathway: pathway, GenesRequired: len(required)}
			for _, g := range required {
				if a, ok := geneAbundance[g]; ok {
					pa.Raw += a
					pa.GenesObserved++
				}
			}
			pa.Coverage = float64(pa.GenesObserved) / float64(pa.GenesRequired)
			if pa.Coverage < opts.MinPathwayCoverage {
				pa.LowConfidence = true
				stats.LowCoveragePathways++
			}
			table.Pathways = append(table.Pathways, pa)
		}
	}
	sort.Slice(table.Pathways, func(i, j int) bool {
		return table.Pathways[i].Pathway < table.Pathways[j].Pathway
	})
	stats.Pathways += len(table.Pathways)
	return table, nil
}
