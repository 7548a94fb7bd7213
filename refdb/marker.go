// Package refdb provides in-memory k-mer index backends for the three
// reference collaborators of the pipeline: origin-marker screening,
// taxonomic assignment, and gene/pathway mapping. Indexes are built once at
// load time and are read-only afterwards, so they are safe for concurrent
// use by all pipeline workers.
package refdb

import (
	"context"
	"io"

	"github.com/marinebio/edna/edna"
	"github.com/marinebio/edna/encoding/fasta"
	"github.com/pkg/errors"
)

// DefaultK is the k-mer size used by the index constructors in this package.
// Long reads tolerate a large k; 16 keeps random collisions negligible.
const DefaultK = 16

// MarkerSet screens sequences against curated origin-marker k-mer sets. It
// implements edna.MarkerClassifier.
type MarkerSet struct {
	k     int
	index map[string]classMask
}

type classMask uint8

func maskFor(class edna.MarkerClass) classMask { return 1 << uint(class) }

// markerClasses are the classes a marker set can vote for, in tie-break
// order: a sequence matching marine and non-marine markers equally well
// counts as marine.
var markerClasses = []edna.MarkerClass{
	edna.MarkerMarine,
	edna.MarkerTerrestrial,
	edna.MarkerFreshwater,
}

// NewMarkerSet creates an empty marker set with the given k-mer size.
func NewMarkerSet(k int) *MarkerSet {
	return &MarkerSet{k: k, index: map[string]classMask{}}
}

// Add indexes one marker sequence under the given origin class.
func (m *MarkerSet) Add(class edna.MarkerClass, seq string) {
	for i := 0; i+m.k <= len(seq); i++ {
		m.index[seq[i:i+m.k]] |= maskFor(class)
	}
}

// AddFASTA indexes every sequence of a FASTA stream under the given origin
// class.
func (m *MarkerSet) AddFASTA(class edna.MarkerClass, r io.Reader) error {
	f, err := fasta.New(r)
	if err != nil {
		return errors.Wrap(err, "loading marker FASTA")
	}
	for _, name := range f.SeqNames() {
		seq, err := f.Seq(name)
		if err != nil {
			return err
		}
		m.Add(class, seq)
	}
	return nil
}

// Classify reports the origin class whose markers cover the largest fraction
// of seq's k-mers, with that fraction as the confidence. Sequences shorter
// than k or matching no marker return (MarkerUnknown, 0, nil).
func (m *MarkerSet) Classify(ctx context.Context, seq string) (edna.MarkerClass, float64, error) {
	if err := ctx.Err(); err != nil {
		return edna.MarkerUnknown, 0, err
	}
	total := len(seq) - m.k + 1
	if total <= 0 {
		return edna.MarkerUnknown, 0, nil
	}
	hits := make([]int, len(markerClasses))
	for i := 0; i < total; i++ {
		mask := m.index[seq[i:i+m.k]]
		for _, class := range markerClasses {
			if mask&maskFor(class) != 0 {
				hits[class]++
			}
		}
	}
	best, bestHits := edna.MarkerUnknown, 0
	for _, class := range markerClasses {
		if hits[class] > bestHits {
			best, bestHits = class, hits[class]
		}
	}
	if bestHits == 0 {
		return edna.MarkerUnknown, 0, nil
	}
	return best, float64(bestHits) / float64(total), nil
}
