package edna

// Stats represents high-level counters accumulated while running the
// per-sample stages. Each worker keeps its own Stats and the results are
// combined with Merge at the end of the run.
type Stats struct {
	// Samples counts the samples processed.
	Samples int
	// Reads counts all ingested reads, including malformed ones.
	Reads int
	// MalformedReads is the # of records skipped for sequence/quality
	// length mismatch or an empty sequence.
	MalformedReads int
	// FailedLength/FailedQuality/FailedContamination count QC rejections
	// per filter.
	FailedLength        int
	FailedQuality       int
	FailedContamination int
	// PassedReads is the # of reads surviving all QC filters.
	PassedReads int
	// LowQualitySamples counts samples that proceeded with a data-quality
	// warning because most of their reads failed QC.
	LowQualitySamples int

	// HomopolymerCorrections and ConsensusCorrections count denoiser edits.
	HomopolymerCorrections int
	ConsensusCorrections   int
	// ReadsCorrected is the # of reads changed by the denoiser.
	ReadsCorrected int

	// AssignedReads/UnassignedReads count taxonomic assignment outcomes.
	AssignedReads   int
	UnassignedReads int
	// ContaminantTaxaRemoved counts taxa stripped from profiles because the
	// reference tags them with a non-marine habitat.
	ContaminantTaxaRemoved int

	// UnmappedReads is the # of reads with no gene call.
	UnmappedReads int
	// Pathways and LowCoveragePathways count quantified pathways and those
	// flagged below the coverage threshold.
	Pathways            int
	LowCoveragePathways int
}

// Merge adds the field values of the two Stats objects and creates new Stats.
func (s Stats) Merge(o Stats) Stats {
	s.Samples += o.Samples
	s.Reads += o.Reads
	s.MalformedReads += o.MalformedReads
	s.FailedLength += o.FailedLength
	s.FailedQuality += o.FailedQuality
	s.FailedContamination += o.FailedContamination
	s.PassedReads += o.PassedReads
	s.LowQualitySamples += o.LowQualitySamples
	s.HomopolymerCorrections += o.HomopolymerCorrections
	s.ConsensusCorrections += o.ConsensusCorrections
	s.ReadsCorrected += o.ReadsCorrected
	s.AssignedReads += o.AssignedReads
	s.UnassignedReads += o.UnassignedReads
	s.ContaminantTaxaRemoved += o.ContaminantTaxaRemoved
	s.UnmappedReads += o.UnmappedReads
	s.Pathways += o.Pathways
	s.LowCoveragePathways += o.LowCoveragePathways
	return s
}
