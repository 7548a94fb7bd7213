package refdb

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/grailbio/base/tsv"
	"github.com/marinebio/edna/edna"
	"github.com/marinebio/edna/encoding/fasta"
	"github.com/pkg/errors"
)

// DefaultGeneMatch is the fraction of a read's k-mers that must match a gene
// for the read to count as an observation of that gene.
const DefaultGeneMatch = 0.5

// PathwayDB maps sequences to gene calls by shared-k-mer fraction and genes
// to the metabolic pathways that require them. It implements edna.PathwayRef.
type PathwayDB struct {
	k        int
	minMatch float64
	names    []string         // gene id -> name
	ids      map[string]int   // gene name -> id
	index    map[string][]int // k-mer -> gene ids, ascending

	required map[string][]string // pathway -> required genes, sorted
	byGene   map[string][]string // gene -> pathways, sorted
}

// NewPathwayDB creates an empty pathway database with the given k-mer size.
// Reads matching a gene on less than minMatch of their k-mers are not called
// for that gene.
func NewPathwayDB(k int, minMatch float64) *PathwayDB {
	return &PathwayDB{
		k:        k,
		minMatch: minMatch,
		ids:      map[string]int{},
		index:    map[string][]int{},
		required: map[string][]string{},
		byGene:   map[string][]string{},
	}
}

// AddGene indexes one reference sequence for the given gene.
func (p *PathwayDB) AddGene(gene, seq string) {
	id, ok := p.ids[gene]
	if !ok {
		id = len(p.names)
		p.ids[gene] = id
		p.names = append(p.names, gene)
	}
	for i := 0; i+p.k <= len(seq); i++ {
		kmer := seq[i : i+p.k]
		ids := p.index[kmer]
		if len(ids) == 0 || ids[len(ids)-1] != id {
			p.index[kmer] = append(ids, id)
		}
	}
}

// AddGeneFASTA indexes every sequence of a FASTA stream, using the FASTA
// sequence names as gene names.
func (p *PathwayDB) AddGeneFASTA(r io.Reader) error {
	f, err := fasta.New(r)
	if err != nil {
		return errors.Wrap(err, "loading gene FASTA")
	}
	for _, name := range f.SeqNames() {
		seq, err := f.Seq(name)
		if err != nil {
			return err
		}
		p.AddGene(name, seq)
	}
	return nil
}

// DefinePathway registers a pathway and its required genes. Defining the
// same pathway twice replaces its gene list.
func (p *PathwayDB) DefinePathway(pathway string, genes []string) {
	sorted := append([]string(nil), genes...)
	sort.Strings(sorted)
	p.required[pathway] = sorted
	// Rebuild the reverse index eagerly; lookups must stay lock-free for
	// concurrent workers.
	p.byGene = map[string][]string{}
	for name, required := range p.required {
		for _, g := range required {
			p.byGene[g] = append(p.byGene[g], name)
		}
	}
	for g := range p.byGene {
		sort.Strings(p.byGene[g])
	}
}

// pathwayRow is one line of a pathway definition TSV file. The genes column
// holds the required genes separated by commas.
type pathwayRow struct {
	Pathway string `tsv:"pathway"`
	Genes   string `tsv:"genes"`
}

// ReadPathwayTSV loads pathway definitions from a TSV stream with a header
// row of pathway and genes columns.
func (p *PathwayDB) ReadPathwayTSV(r io.Reader) error {
	reader := tsv.NewReader(r)
	reader.HasHeaderRow = true
	reader.UseHeaderNames = true
	for {
		var row pathwayRow
		if err := reader.Read(&row); err != nil {
			if err == io.EOF {
				return nil
			}
			return errors.Wrap(err, "reading pathway TSV")
		}
		var genes []string
		for _, g := range strings.Split(row.Genes, ",") {
			if g = strings.TrimSpace(g); g != "" {
				genes = append(genes, g)
			}
		}
		if len(genes) == 0 {
			return errors.Errorf("pathway %s has no genes", row.Pathway)
		}
		p.DefinePathway(row.Pathway, genes)
	}
}

// GenesFor returns the genes whose reference k-mers cover at least the
// configured fraction of seq's k-mers, with that fraction as the abundance
// contribution, ordered by gene name.
func (p *PathwayDB) GenesFor(ctx context.Context, seq string) ([]edna.GeneHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	total := len(seq) - p.k + 1
	if total <= 0 {
		return nil, nil
	}
	hits := make([]int, len(p.names))
	for i := 0; i < total; i++ {
		for _, id := range p.index[seq[i:i+p.k]] {
			hits[id]++
		}
	}
	var out []edna.GeneHit
	for id, n := range hits {
		if n == 0 {
			// A zero-threshold DB must still not call genes sharing no
			// k-mers with the read.
			continue
		}
		frac := float64(n) / float64(total)
		if frac >= p.minMatch {
			out = append(out, edna.GeneHit{Gene: p.names[id], Abundance: frac})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Gene < out[j].Gene })
	return out, nil
}

// PathwaysContaining implements edna.PathwayRef.
func (p *PathwayDB) PathwaysContaining(gene string) []string {
	return p.byGene[gene]
}

// RequiredGenes implements edna.PathwayRef.
func (p *PathwayDB) RequiredGenes(pathway string) []string {
	return p.required[pathway]
}
