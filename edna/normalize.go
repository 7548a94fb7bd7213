package edna

import (
	"math"

	"github.com/grailbio/base/errors"
)

// Factors records the environmental correction factors applied to one
// sample. Factors not selected by the method are reported as 1.
type Factors struct {
	Biomass     float64
	Salinity    float64
	Temperature float64
	// Combined is the product of the applied factors.
	Combined float64
}

// NormalizedPathway is one pathway of a sample after environmental
// normalization. Raw and the QC fields are carried over from the
// quantification stage.
type NormalizedPathway struct {
	Pathway       string
	Raw           float64
	Normalized    float64
	Coverage      float64
	LowConfidence bool
}

// NormalizedAbundanceTable is the per-sample normalization output. Rows keep
// the quantifier's pathway-name order.
type NormalizedAbundanceTable struct {
	SampleID string
	Method   Method
	Factors  Factors
	Pathways []NormalizedPathway
}

// Normalize applies environment-aware corrections to a pathway abundance
// table. Pure and deterministic: the same table, metadata and options always
// yield the same output, and the input table is never modified. Zero
// abundances stay zero under every method.
//
// An unknown method is a configuration error.
func Normalize(table *PathwayAbundanceTable, meta Metadata, method Method, opts Opts) (*NormalizedAbundanceTable, error) {
	if !validMethod(method) {
		return nil, errors.E(errors.Invalid, "unknown normalization method: "+string(method))
	}
	f := Factors{Biomass: 1, Salinity: 1, Temperature: 1}
	if method == MethodBiomass || method == MethodCombined {
		f.Biomass = biomassFactor(meta.DepthM, opts.BiomassCurve)
	}
	if method == MethodSalinity || method == MethodCombined {
		f.Salinity = salinityFactor(meta.SalinityPSU, opts)
	}
	if method == MethodTemperature || method == MethodCombined {
		f.Temperature = temperatureFactor(meta.TemperatureC, opts)
	}
	f.Combined = f.Biomass * f.Salinity * f.Temperature

	out := &NormalizedAbundanceTable{
		SampleID: table.SampleID,
		Method:   method,
		Factors:  f,
		Pathways: make([]NormalizedPathway, 0, len(table.Pathways)),
	}
	for _, p := range table.Pathways {
		out.Pathways = append(out.Pathways, NormalizedPathway{
			Pathway:       p.Pathway,
			Raw:           p.Raw,
			Normalized:    p.Raw * f.Combined,
			Coverage:      p.Coverage,
			LowConfidence: p.LowConfidence,
		})
	}
	return out, nil
}

// biomassFactor interpolates the depth -> correction curve linearly between
// knots and clamps to the first/last knot outside the covered depth range.
// An empty curve applies no correction.
func biomassFactor(depthM float64, curve []CurvePoint) float64 {
	if len(curve) == 0 {
		return 1
	}
	if depthM <= curve[0].DepthM {
		return curve[0].Factor
	}
	for i := 1; i < len(curve); i++ {
		if depthM <= curve[i].DepthM {
			lo, hi := curve[i-1], curve[i]
			t := (depthM - lo.DepthM) / (hi.DepthM - lo.DepthM)
			return lo.Factor + t*(hi.Factor-lo.Factor)
		}
	}
	return curve[len(curve)-1].Factor
}

// salinityFactor corrects for salinity-dependent DNA recovery: extraction
// efficiency drops linearly away from the optimum and is floored, and the
// correction is the reciprocal of the efficiency.
func salinityFactor(psu float64, opts Opts) float64 {
	eff := 1 - opts.SalinitySlope*math.Abs(psu-opts.OptimalSalinityPSU)
	if eff < opts.MinRecoveryEfficiency {
		eff = opts.MinRecoveryEfficiency
	}
	if eff > 1 {
		eff = 1
	}
	return 1 / eff
}

// temperatureFactor scales by the Q10 metabolic-rate factor relative to the
// reference temperature.
func temperatureFactor(tempC float64, opts Opts) float64 {
	return math.Pow(opts.Q10, (tempC-opts.Q10ReferenceC)/10)
}
