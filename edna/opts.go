package edna

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// Method selects the abundance normalization applied by Normalize.
type Method string

const (
	// MethodNone is the identity normalization.
	MethodNone Method = "none"
	// MethodBiomass corrects for the depth-dependent biomass gradient.
	MethodBiomass Method = "biomass"
	// MethodSalinity corrects for salinity-dependent DNA recovery efficiency.
	MethodSalinity Method = "salinity"
	// MethodTemperature corrects for temperature-dependent metabolic rates.
	MethodTemperature Method = "temperature"
	// MethodCombined composes biomass, salinity and temperature corrections
	// multiplicatively.
	MethodCombined Method = "combined"
)

func validMethod(m Method) bool {
	switch m {
	case MethodNone, MethodBiomass, MethodSalinity, MethodTemperature, MethodCombined:
		return true
	}
	return false
}

// CurvePoint is one knot of the depth -> biomass-correction lookup curve.
// Factors between knots are linearly interpolated; depths outside the curve
// clamp to the nearest knot.
type CurvePoint struct {
	DepthM float64 `yaml:"depth_m"`
	Factor float64 `yaml:"factor"`
}

// DepthPrior holds the multiplicative weights applied to taxonomic candidates
// in one depth zone, keyed by the candidate's trophic class. A weight of 1
// leaves the raw classifier confidence unchanged; weights never hard-filter.
type DepthPrior struct {
	Phototroph      float64 `yaml:"phototroph"`
	Heterotroph     float64 `yaml:"heterotroph"`
	PressureAdapted float64 `yaml:"pressure_adapted"`
}

func (p DepthPrior) weight(t Trophic) float64 {
	switch t {
	case TrophicPhototroph:
		return p.Phototroph
	case TrophicHeterotroph:
		return p.Heterotroph
	case TrophicPressureAdapted:
		return p.PressureAdapted
	}
	return 1.0
}

// Opts holds the tunable parameters of the per-sample stages. The zero value
// is not usable; start from DefaultOpts.
type Opts struct {
	// MinLength and MaxLength bound the accepted read length.
	MinLength int `yaml:"min_length"`
	MaxLength int `yaml:"max_length"`
	// MinMeanQuality is the minimum mean Phred score for a read to pass QC.
	MinMeanQuality float64 `yaml:"min_mean_quality"`
	// ContaminationConfidence is the minimum marker-classifier confidence at
	// which a non-marine classification rejects a read.
	ContaminationConfidence float64 `yaml:"contamination_confidence_threshold"`

	// MaxHomopolymerRun is the longest run of identical bases the sequencing
	// technology is expected to report faithfully. Longer low-quality runs
	// are trimmed back to this length by the denoiser.
	MaxHomopolymerRun int `yaml:"max_homopolymer_run"`
	// LowQualityCeil is the Phred score below which a base is considered
	// unreliable during denoising.
	LowQualityCeil float64 `yaml:"low_quality_ceil"`
	// ATWindow and ATRichFraction define AT-rich regions, in which
	// homopolymer trimming of A/T runs is suppressed: many marine bacteria
	// are naturally AT-rich and over-correction removes real biology.
	ATWindow       int     `yaml:"at_window"`
	ATRichFraction float64 `yaml:"at_rich_fraction"`
	// RepeatFlank is the number of clean period-2 repeat bases required on
	// each side of a low-quality base before consensus repair applies.
	RepeatFlank int `yaml:"repeat_flank"`

	// MinTaxonConfidence is the minimum prior-weighted confidence for a read
	// to receive a taxonomic assignment; below it the read is unassigned.
	MinTaxonConfidence float64 `yaml:"min_taxon_confidence"`
	// Depth-zone priors. Multiplicative weights, not hard filters.
	PhoticPrior      DepthPrior `yaml:"photic_prior"`
	MesopelagicPrior DepthPrior `yaml:"mesopelagic_prior"`
	DeepPrior        DepthPrior `yaml:"deep_prior"`

	// MinPathwayCoverage is the coverage fraction below which a pathway is
	// flagged low-confidence. Flagged pathways are retained, never dropped.
	MinPathwayCoverage float64 `yaml:"min_pathway_coverage"`

	// NormMethod selects the normalization applied after quantification.
	NormMethod Method `yaml:"normalization_method"`
	// BiomassCurve maps depth to the biomass correction factor. Must be
	// sorted by ascending depth.
	BiomassCurve []CurvePoint `yaml:"biomass_curve"`
	// OptimalSalinityPSU is the salinity of maximum DNA recovery efficiency;
	// SalinitySlope is the efficiency loss per PSU away from it, and
	// MinRecoveryEfficiency floors the resulting efficiency.
	OptimalSalinityPSU    float64 `yaml:"optimal_salinity_psu"`
	SalinitySlope         float64 `yaml:"salinity_slope"`
	MinRecoveryEfficiency float64 `yaml:"min_recovery_efficiency"`
	// Q10 and Q10ReferenceC parameterize the temperature correction
	// factor Q10^((t-ref)/10).
	Q10           float64 `yaml:"q10"`
	Q10ReferenceC float64 `yaml:"q10_reference_c"`

	// SeasonalPeriod is the number of observations per seasonal cycle
	// (12 for monthly sampling). AnomalyK is the residual threshold in
	// standard deviations.
	SeasonalPeriod int     `yaml:"seasonal_period"`
	AnomalyK       float64 `yaml:"anomaly_k"`
}

// DefaultOpts sets the default values of Opts. Thresholds follow the values
// tuned for Nanopore marine samples.
var DefaultOpts = Opts{
	MinLength:               1000,  // shorter than any marine microbial gene of interest
	MaxLength:               50000, // longer reads are almost always chimeric
	MinMeanQuality:          7,     // Nanopore chemistry produces Q7-Q15
	ContaminationConfidence: 0.85,

	MaxHomopolymerRun: 8,
	LowQualityCeil:    10,
	ATWindow:          50,
	ATRichFraction:    0.75,
	RepeatFlank:       6,

	MinTaxonConfidence: 0.5,
	PhoticPrior:        DepthPrior{Phototroph: 1.3, Heterotroph: 1.0, PressureAdapted: 0.8},
	MesopelagicPrior:   DepthPrior{Phototroph: 0.5, Heterotroph: 1.3, PressureAdapted: 1.0},
	DeepPrior:          DepthPrior{Phototroph: 0.01, Heterotroph: 1.0, PressureAdapted: 1.5},

	MinPathwayCoverage: 0.5,

	NormMethod: MethodCombined,
	BiomassCurve: []CurvePoint{
		{DepthM: 0, Factor: 1.25},
		{DepthM: 50, Factor: 1.2},
		{DepthM: 200, Factor: 1.0},
		{DepthM: 1000, Factor: 0.85},
		{DepthM: 4000, Factor: 0.7},
	},
	OptimalSalinityPSU:    35,
	SalinitySlope:         0.02,
	MinRecoveryEfficiency: 0.7,
	Q10:                   2,
	Q10ReferenceC:         20,

	SeasonalPeriod: 12,
	AnomalyK:       3,
}

// Validate checks the option set for contradictions. It is called once at
// run start, before any sample is processed; a failure aborts the run.
func (o Opts) Validate() error {
	if o.MinLength < 0 || o.MaxLength < 0 || o.MinLength > o.MaxLength {
		return errors.E(errors.Invalid,
			fmt.Sprintf("bad read length window [%d, %d]", o.MinLength, o.MaxLength))
	}
	if o.ContaminationConfidence < 0 || o.ContaminationConfidence > 1 {
		return errors.E(errors.Invalid,
			fmt.Sprintf("contamination confidence threshold %v out of [0,1]", o.ContaminationConfidence))
	}
	if o.MaxHomopolymerRun < 1 {
		return errors.E(errors.Invalid,
			fmt.Sprintf("max homopolymer run %d must be >= 1", o.MaxHomopolymerRun))
	}
	if o.MinTaxonConfidence < 0 {
		return errors.E(errors.Invalid, "negative taxon confidence threshold")
	}
	if o.MinPathwayCoverage < 0 || o.MinPathwayCoverage > 1 {
		return errors.E(errors.Invalid,
			fmt.Sprintf("min pathway coverage %v out of [0,1]", o.MinPathwayCoverage))
	}
	if !validMethod(o.NormMethod) {
		return errors.E(errors.Invalid,
			fmt.Sprintf("unknown normalization method %q", o.NormMethod))
	}
	if len(o.BiomassCurve) == 0 {
		return errors.E(errors.Invalid, "empty biomass curve")
	}
	for i := 1; i < len(o.BiomassCurve); i++ {
		if o.BiomassCurve[i].DepthM <= o.BiomassCurve[i-1].DepthM {
			return errors.E(errors.Invalid, "biomass curve depths must be strictly increasing")
		}
	}
	if o.MinRecoveryEfficiency <= 0 || o.MinRecoveryEfficiency > 1 {
		return errors.E(errors.Invalid,
			fmt.Sprintf("min recovery efficiency %v out of (0,1]", o.MinRecoveryEfficiency))
	}
	if o.Q10 <= 0 {
		return errors.E(errors.Invalid, "q10 must be positive")
	}
	if o.SeasonalPeriod < 2 {
		return errors.E(errors.Invalid,
			fmt.Sprintf("seasonal period %d must be >= 2", o.SeasonalPeriod))
	}
	if o.AnomalyK <= 0 {
		return errors.E(errors.Invalid, "anomaly threshold k must be positive")
	}
	return nil
}
