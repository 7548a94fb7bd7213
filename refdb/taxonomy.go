package refdb

import (
	"context"
	"io"
	"sort"

	"github.com/grailbio/base/tsv"
	"github.com/marinebio/edna/edna"
	"github.com/pkg/errors"
)

// Taxonomy assigns reads to taxa by shared-k-mer fraction against reference
// sequences. It implements edna.TaxonomyClassifier.
type Taxonomy struct {
	k     int
	infos map[string]edna.TaxonInfo
	names []string         // taxon id -> name
	index map[string][]int // k-mer -> taxon ids, ascending
}

// NewTaxonomy creates an empty taxonomy with the given k-mer size.
func NewTaxonomy(k int) *Taxonomy {
	return &Taxonomy{
		k:     k,
		infos: map[string]edna.TaxonInfo{},
		index: map[string][]int{},
	}
}

// Add indexes one reference sequence for the given taxon. Repeated calls for
// the same taxon extend its k-mer set; the habitat and trophic class of the
// first call win.
func (t *Taxonomy) Add(info edna.TaxonInfo, seq string) {
	id := -1
	if _, ok := t.infos[info.Taxon]; !ok {
		t.infos[info.Taxon] = info
		t.names = append(t.names, info.Taxon)
		id = len(t.names) - 1
	} else {
		id = t.idOf(info.Taxon)
	}
	for i := 0; i+t.k <= len(seq); i++ {
		kmer := seq[i : i+t.k]
		ids := t.index[kmer]
		if len(ids) == 0 || ids[len(ids)-1] != id {
			t.index[kmer] = append(ids, id)
		}
	}
}

func (t *Taxonomy) idOf(taxon string) int {
	for id, name := range t.names {
		if name == taxon {
			return id
		}
	}
	return -1
}

// taxonomyRow is one line of a taxonomy reference TSV file.
type taxonomyRow struct {
	Taxon    string `tsv:"taxon"`
	Habitat  string `tsv:"habitat"`
	Trophic  string `tsv:"trophic"`
	Sequence string `tsv:"sequence"`
}

// ReadTaxonomyTSV loads a taxonomy reference from a TSV stream with a header
// row of taxon, habitat, trophic and sequence columns.
func ReadTaxonomyTSV(r io.Reader, k int) (*Taxonomy, error) {
	reader := tsv.NewReader(r)
	reader.HasHeaderRow = true
	reader.UseHeaderNames = true
	t := NewTaxonomy(k)
	for {
		var row taxonomyRow
		if err := reader.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrap(err, "reading taxonomy TSV")
		}
		habitat, err := parseHabitat(row.Habitat)
		if err != nil {
			return nil, errors.Wrapf(err, "taxon %s", row.Taxon)
		}
		trophic, err := parseTrophic(row.Trophic)
		if err != nil {
			return nil, errors.Wrapf(err, "taxon %s", row.Taxon)
		}
		t.Add(edna.TaxonInfo{Taxon: row.Taxon, Habitat: habitat, Trophic: trophic}, row.Sequence)
	}
	return t, nil
}

func parseHabitat(s string) (edna.MarkerClass, error) {
	switch s {
	case "marine":
		return edna.MarkerMarine, nil
	case "terrestrial":
		return edna.MarkerTerrestrial, nil
	case "freshwater":
		return edna.MarkerFreshwater, nil
	case "", "unknown":
		return edna.MarkerUnknown, nil
	}
	return edna.MarkerUnknown, errors.Errorf("unknown habitat %q", s)
}

func parseTrophic(s string) (edna.Trophic, error) {
	switch s {
	case "phototroph":
		return edna.TrophicPhototroph, nil
	case "heterotroph":
		return edna.TrophicHeterotroph, nil
	case "pressure-adapted":
		return edna.TrophicPressureAdapted, nil
	case "", "unknown":
		return edna.TrophicUnknown, nil
	}
	return edna.TrophicUnknown, errors.Errorf("unknown trophic class %q", s)
}

// ClassifyTaxon returns the taxa sharing k-mers with seq, with the shared
// fraction of seq's k-mers as the confidence, ordered by descending
// confidence and then by name.
func (t *Taxonomy) ClassifyTaxon(ctx context.Context, seq string) ([]edna.TaxonHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	total := len(seq) - t.k + 1
	if total <= 0 {
		return nil, nil
	}
	hits := make([]int, len(t.names))
	for i := 0; i < total; i++ {
		for _, id := range t.index[seq[i:i+t.k]] {
			hits[id]++
		}
	}
	var out []edna.TaxonHit
	for id, n := range hits {
		if n > 0 {
			out = append(out, edna.TaxonHit{
				Taxon:      t.names[id],
				Confidence: float64(n) / float64(total),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Taxon < out[j].Taxon
	})
	return out, nil
}

// TaxonInfo implements edna.TaxonomyClassifier.
func (t *Taxonomy) TaxonInfo(taxon string) edna.TaxonInfo {
	return t.infos[taxon]
}
