package edna

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

type taxonomyStub struct {
	hits map[string][]TaxonHit // keyed by sequence
	info map[string]TaxonInfo
	err  error
}

func (c *taxonomyStub) ClassifyTaxon(_ context.Context, seq string) ([]TaxonHit, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.hits[seq], nil
}

func (c *taxonomyStub) TaxonInfo(taxon string) TaxonInfo {
	info, ok := c.info[taxon]
	if !ok {
		return TaxonInfo{Taxon: taxon}
	}
	return info
}

func profileSample(seqs ...string) Sample {
	s := Sample{ID: "s1"}
	for i, seq := range seqs {
		s.Reads = append(s.Reads, Read{Name: fmt.Sprintf("r%d", i), Seq: seq, Qual: []byte{30}})
	}
	return s
}

// In the photic zone a phototroph candidate outscores a heterotroph with the
// same raw confidence; in the deep zone the 0.01 phototroph prior flips the
// choice.
func TestProfileSampleDepthPrior(t *testing.T) {
	stub := &taxonomyStub{
		hits: map[string][]TaxonHit{
			"AAAA": {
				{Taxon: "Prochlorococcus", Confidence: 0.8},
				{Taxon: "Pelagibacter", Confidence: 0.8},
			},
		},
		info: map[string]TaxonInfo{
			"Prochlorococcus": {Taxon: "Prochlorococcus", Habitat: MarkerMarine, Trophic: TrophicPhototroph},
			"Pelagibacter":    {Taxon: "Pelagibacter", Habitat: MarkerMarine, Trophic: TrophicHeterotroph},
		},
	}
	s := profileSample("AAAA")
	s.Meta.DepthM = 50

	var stats Stats
	p, err := ProfileSample(context.Background(), s, stub, &stats, DefaultOpts)
	assert.NoError(t, err)
	expect.EQ(t, p.Zone, ZonePhotic)
	expect.EQ(t, p.Abundances, map[string]float64{"Prochlorococcus": 1.0})

	s.Meta.DepthM = 3000
	p, err = ProfileSample(context.Background(), s, stub, &stats, DefaultOpts)
	assert.NoError(t, err)
	expect.EQ(t, p.Zone, ZoneDeep)
	expect.EQ(t, p.Abundances, map[string]float64{"Pelagibacter": 1.0})
}

func TestProfileSampleConfidenceThreshold(t *testing.T) {
	stub := &taxonomyStub{
		hits: map[string][]TaxonHit{
			"AAAA": {{Taxon: "Synechococcus", Confidence: 0.9}},
			"CCCC": {{Taxon: "Synechococcus", Confidence: 0.2}},
			"GGGG": nil,
		},
		info: map[string]TaxonInfo{
			"Synechococcus": {Taxon: "Synechococcus", Habitat: MarkerMarine, Trophic: TrophicPhototroph},
		},
	}
	var stats Stats
	p, err := ProfileSample(context.Background(), profileSample("AAAA", "CCCC", "GGGG"), stub, &stats, DefaultOpts)
	assert.NoError(t, err)
	expect.EQ(t, p.Assigned, 1)
	expect.EQ(t, p.Unassigned, 2)
	expect.EQ(t, stats.AssignedReads, 1)
	expect.EQ(t, stats.UnassignedReads, 2)
}

// Ties in weighted confidence resolve to the lexicographically smaller taxon
// so repeated runs agree.
func TestProfileSampleTieBreak(t *testing.T) {
	stub := &taxonomyStub{
		hits: map[string][]TaxonHit{
			"AAAA": {
				{Taxon: "Vibrio", Confidence: 0.9},
				{Taxon: "Alteromonas", Confidence: 0.9},
			},
		},
		info: map[string]TaxonInfo{
			"Vibrio":      {Taxon: "Vibrio", Habitat: MarkerMarine, Trophic: TrophicHeterotroph},
			"Alteromonas": {Taxon: "Alteromonas", Habitat: MarkerMarine, Trophic: TrophicHeterotroph},
		},
	}
	var stats Stats
	p, err := ProfileSample(context.Background(), profileSample("AAAA"), stub, &stats, DefaultOpts)
	assert.NoError(t, err)
	expect.EQ(t, p.Abundances, map[string]float64{"Alteromonas": 1.0})
}

func TestProfileSampleRemovesContaminantTaxa(t *testing.T) {
	stub := &taxonomyStub{
		hits: map[string][]TaxonHit{
			"AAAA": {{Taxon: "Pelagibacter", Confidence: 0.9}},
			"CCCC": {{Taxon: "Zea mays", Confidence: 0.9}},
			"GGGG": {{Taxon: "Vibrio", Confidence: 0.9}},
		},
		info: map[string]TaxonInfo{
			"Pelagibacter": {Taxon: "Pelagibacter", Habitat: MarkerMarine, Trophic: TrophicHeterotroph},
			"Zea mays":     {Taxon: "Zea mays", Habitat: MarkerTerrestrial},
			"Vibrio":       {Taxon: "Vibrio", Habitat: MarkerMarine, Trophic: TrophicHeterotroph},
		},
	}
	var stats Stats
	p, err := ProfileSample(context.Background(), profileSample("AAAA", "CCCC", "GGGG", "GGGG"), stub, &stats, DefaultOpts)
	assert.NoError(t, err)
	expect.EQ(t, p.Removed, []string{"Zea mays"})
	expect.EQ(t, p.Assigned, 3)
	expect.EQ(t, p.Abundances["Vibrio"], 2.0/3.0)
	expect.EQ(t, p.Abundances["Pelagibacter"], 1.0/3.0)
	expect.EQ(t, stats.ContaminantTaxaRemoved, 1)

	sum := 0.0
	for _, v := range p.Abundances {
		sum += v
	}
	expect.True(t, math.Abs(sum-1) < 1e-12)
}

func TestProfileSampleDiversity(t *testing.T) {
	stub := &taxonomyStub{
		hits: map[string][]TaxonHit{
			"AAAA": {{Taxon: "A", Confidence: 0.9}},
			"CCCC": {{Taxon: "B", Confidence: 0.9}},
		},
		info: map[string]TaxonInfo{
			"A": {Taxon: "A", Habitat: MarkerMarine},
			"B": {Taxon: "B", Habitat: MarkerMarine},
		},
	}
	var stats Stats
	p, err := ProfileSample(context.Background(), profileSample("AAAA", "CCCC"), stub, &stats, DefaultOpts)
	assert.NoError(t, err)
	expect.EQ(t, p.Diversity.Richness, 2)
	expect.True(t, math.Abs(p.Diversity.Shannon-math.Log(2)) < 1e-12)
	expect.True(t, math.Abs(p.Diversity.Simpson-0.5) < 1e-12)
	expect.True(t, math.Abs(p.Diversity.Pielou-1) < 1e-12)
}

func TestProfileSampleEmpty(t *testing.T) {
	stub := &taxonomyStub{}
	var stats Stats
	p, err := ProfileSample(context.Background(), Sample{ID: "s1"}, stub, &stats, DefaultOpts)
	assert.NoError(t, err)
	expect.EQ(t, p.Assigned, 0)
	expect.EQ(t, len(p.Abundances), 0)
	expect.EQ(t, p.Diversity, Diversity{})
}

func TestProfileSampleReferenceError(t *testing.T) {
	stub := &taxonomyStub{err: fmt.Errorf("taxonomy shard lost")}
	var stats Stats
	_, err := ProfileSample(context.Background(), profileSample("AAAA"), stub, &stats, DefaultOpts)
	assert.NotNil(t, err)
	assert.HasSubstr(t, err.Error(), "taxonomy shard lost")
}
