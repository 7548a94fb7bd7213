package edna

// CorrectionReport summarizes the edits the denoiser made to one batch of
// reads.
type CorrectionReport struct {
	// Homopolymer is the # of over-long low-quality homopolymer runs
	// trimmed.
	Homopolymer int
	// Consensus is the # of bases restored by dinucleotide-repeat consensus
	// repair.
	Consensus int
	// ReadsChanged is the # of reads that received at least one edit.
	ReadsChanged int
}

// Denoise corrects the systematic long-read error modes in the given reads
// and returns new reads plus a report of the edits. Input reads are never
// modified; an untouched read is carried through as-is.
//
// Two corrections apply, in order. Homopolymer runs longer than
// opts.MaxHomopolymerRun whose mean quality is below opts.LowQualityCeil are
// trimmed back to the maximum run length, except A/T runs inside AT-rich
// regions, which are presumed real. Then isolated low-quality bases that
// break an otherwise clean dinucleotide repeat are restored to the repeat
// consensus.
func Denoise(reads []Read, stats *Stats, opts Opts) ([]Read, CorrectionReport) {
	var report CorrectionReport
	out := make([]Read, 0, len(reads))
	for _, r := range reads {
		if !r.WellFormed() {
			// Quality scores cannot be trusted to line up with bases;
			// malformed records are QC's to tag, not ours to edit.
			out = append(out, r)
			continue
		}
		trimmed, nTrim := trimHomopolymers(r, opts)
		repaired, nRepair := repairDinucleotideRepeats(trimmed, opts)
		report.Homopolymer += nTrim
		report.Consensus += nRepair
		if nTrim+nRepair > 0 {
			report.ReadsChanged++
		}
		out = append(out, repaired)
	}
	stats.HomopolymerCorrections += report.Homopolymer
	stats.ConsensusCorrections += report.Consensus
	stats.ReadsCorrected += report.ReadsChanged
	return out, report
}

// trimHomopolymers shortens over-long low-quality homopolymer runs to
// opts.MaxHomopolymerRun bases. The run's own mean quality decides whether it
// is a sequencing artifact; high-quality long runs are kept.
func trimHomopolymers(r Read, opts Opts) (Read, int) {
	n := 0
	var seq []byte
	var qual []byte
	for i := 0; i < len(r.Seq); {
		j := i + 1
		for j < len(r.Seq) && r.Seq[j] == r.Seq[i] {
			j++
		}
		keep := j - i
		if keep > opts.MaxHomopolymerRun &&
			runMeanQuality(r.Qual[i:j]) < opts.LowQualityCeil &&
			!atRichRun(r.Seq, i, j, opts) {
			keep = opts.MaxHomopolymerRun
			n++
		}
		if n > 0 && seq == nil {
			// First edit: copy the prefix kept so far.
			seq = append(seq, r.Seq[:i]...)
			qual = append(qual, r.Qual[:i]...)
		}
		if seq != nil {
			seq = append(seq, r.Seq[i:i+keep]...)
			qual = append(qual, r.Qual[i:i+keep]...)
		}
		i = j
	}
	if n == 0 {
		return r, 0
	}
	return Read{Name: r.Name, Seq: string(seq), Qual: qual}, n
}

func runMeanQuality(qual []byte) float64 {
	total := 0
	for _, q := range qual {
		total += int(q)
	}
	return float64(total) / float64(len(qual))
}

// atRichRun reports whether the A or T homopolymer run at seq[i:j] sits in an
// AT-rich neighborhood. Long A/T runs are common in AT-rich marine bacterial
// genomes, so trimming there destroys real signal.
func atRichRun(seq string, i, j int, opts Opts) bool {
	if b := seq[i]; b != 'A' && b != 'T' {
		return false
	}
	// Window of opts.ATWindow bases centered on the run, clamped to the read.
	mid := (i + j) / 2
	lo := mid - opts.ATWindow/2
	hi := lo + opts.ATWindow
	if lo < 0 {
		lo = 0
	}
	if hi > len(seq) {
		hi = len(seq)
	}
	if hi <= lo {
		return false
	}
	at := 0
	for k := lo; k < hi; k++ {
		if seq[k] == 'A' || seq[k] == 'T' {
			at++
		}
	}
	return float64(at)/float64(hi-lo) >= opts.ATRichFraction
}

// repairDinucleotideRepeats restores isolated low-quality bases that break an
// otherwise clean period-2 repeat. A base qualifies when opts.RepeatFlank
// repeat-consistent high-quality bases surround it on each side; it is
// restored to the base two positions earlier.
func repairDinucleotideRepeats(r Read, opts Opts) (Read, int) {
	n := 0
	var seq []byte
	for i := 2; i < len(r.Seq)-2; i++ {
		if float64(r.Qual[i]) >= opts.LowQualityCeil {
			continue
		}
		want := r.Seq[i-2]
		if r.Seq[i] == want || want == r.Seq[i-1] {
			continue
		}
		if !cleanRepeatFlank(r, i, opts) {
			continue
		}
		if seq == nil {
			seq = []byte(r.Seq)
		}
		seq[i] = want
		n++
	}
	if n == 0 {
		return r, 0
	}
	return Read{Name: r.Name, Seq: string(seq), Qual: r.Qual}, n
}

// cleanRepeatFlank reports whether position i is surrounded on both sides by
// opts.RepeatFlank bases that follow the period-2 pattern with quality at or
// above opts.LowQualityCeil.
func cleanRepeatFlank(r Read, i int, opts Opts) bool {
	for k := 1; k <= opts.RepeatFlank; k++ {
		l, ll := i-k, i-k-2
		if ll < 0 || r.Seq[l] != r.Seq[ll] || float64(r.Qual[l]) < opts.LowQualityCeil {
			return false
		}
		h, hh := i+k, i+k-2
		if h >= len(r.Seq) || float64(r.Qual[h]) < opts.LowQualityCeil {
			return false
		}
		if hh != i && r.Seq[h] != r.Seq[hh] {
			return false
		}
		if hh == i && r.Seq[h] != r.Seq[i-2] {
			return false
		}
	}
	return true
}
