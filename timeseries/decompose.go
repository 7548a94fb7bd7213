// Package timeseries detects trends, seasonal cycles and anomalies in
// per-site pathway abundance series using additive decomposition.
package timeseries

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Observation is one normalized pathway abundance at one collection time.
type Observation struct {
	SampleID  string
	Timestamp time.Time
	Value     float64
}

// Result is the additive decomposition of one (site, pathway) series:
// Observed[i] = Trend[i] + Seasonal[i] + Residual[i] at Times[i], with
// observations in ascending time order. Anomalies lists the indices whose
// residual magnitude exceeded the configured threshold.
type Result struct {
	Site    string
	Pathway string

	Times    []time.Time
	Observed []float64
	Trend    []float64
	Seasonal []float64
	Residual []float64

	Anomalies []int
}

// InsufficientDataError is returned when a series is too short to support a
// seasonal decomposition.
type InsufficientDataError struct {
	Site    string
	Pathway string
	Need    int
	Got     int
}

// Error implements error.
func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("site %s pathway %s: need >= %d observations for seasonal decomposition, got %d",
		e.Site, e.Pathway, e.Need, e.Got)
}

// Decompose runs an additive seasonal decomposition over the observations of
// one (site, pathway) series. Observations are ordered by timestamp, sample
// ID breaking ties, so the decomposition is deterministic regardless of
// input order. At least two full seasonal cycles are required.
//
// The seasonal component is estimated robustly in two passes: phase means
// are computed over the detrended series, points whose provisional residual
// exceeds anomalyK standard deviations are set aside, and the phase means
// are recomputed without them. A single spike therefore surfaces as an
// anomaly instead of leaking into the seasonal estimate of its phase.
func Decompose(site, pathway string, obs []Observation, period int, anomalyK float64) (*Result, error) {
	need := 2 * period
	if len(obs) < need {
		return nil, &InsufficientDataError{Site: site, Pathway: pathway, Need: need, Got: len(obs)}
	}
	sorted := append([]Observation(nil), obs...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].SampleID < sorted[j].SampleID
	})

	n := len(sorted)
	r := &Result{
		Site:     site,
		Pathway:  pathway,
		Times:    make([]time.Time, n),
		Observed: make([]float64, n),
	}
	for i, o := range sorted {
		r.Times[i] = o.Timestamp
		r.Observed[i] = o.Value
	}

	r.Trend = movingTrend(r.Observed, period)
	detrended := make([]float64, n)
	for i := range detrended {
		detrended[i] = r.Observed[i] - r.Trend[i]
	}

	// Pass 1: provisional phase means and anomaly flags.
	phase := phaseMeans(detrended, period, nil)
	resid := residuals(detrended, phase, period)
	flagged := flagAnomalies(resid, anomalyK)

	// Pass 2: recompute the phase means without the flagged points.
	phase = phaseMeans(detrended, period, flagged)
	r.Seasonal = make([]float64, n)
	for i := range r.Seasonal {
		r.Seasonal[i] = phase[i%period]
	}
	r.Residual = residuals(detrended, phase, period)
	for i, bad := range flagAnomalies(r.Residual, anomalyK) {
		if bad {
			r.Anomalies = append(r.Anomalies, i)
		}
	}
	return r, nil
}

// movingTrend computes the centered moving average of xs with the given
// period. An even period uses the classic 2x(period) average with half
// weight on the window endpoints. Positions too close to either edge hold
// the nearest computed trend value.
func movingTrend(xs []float64, period int) []float64 {
	n := len(xs)
	trend := make([]float64, n)
	half := period / 2
	lo, hi := half, n-1-half
	for i := lo; i <= hi; i++ {
		if period%2 == 1 {
			sum := 0.0
			for j := i - half; j <= i+half; j++ {
				sum += xs[j]
			}
			trend[i] = sum / float64(period)
		} else {
			sum := 0.5*xs[i-half] + 0.5*xs[i+half]
			for j := i - half + 1; j <= i+half-1; j++ {
				sum += xs[j]
			}
			trend[i] = sum / float64(period)
		}
	}
	for i := 0; i < lo; i++ {
		trend[i] = trend[lo]
	}
	for i := hi + 1; i < n; i++ {
		trend[i] = trend[hi]
	}
	return trend
}

// phaseMeans averages the detrended values per seasonal phase, skipping
// excluded points, and centers the means to sum to zero. A phase left with
// no points contributes zero before centering.
func phaseMeans(detrended []float64, period int, exclude []bool) []float64 {
	sums := make([]float64, period)
	counts := make([]int, period)
	for i, v := range detrended {
		if exclude != nil && exclude[i] {
			continue
		}
		sums[i%period] += v
		counts[i%period]++
	}
	means := make([]float64, period)
	total := 0.0
	for p := range means {
		if counts[p] > 0 {
			means[p] = sums[p] / float64(counts[p])
		}
		total += means[p]
	}
	center := total / float64(period)
	for p := range means {
		means[p] -= center
	}
	return means
}

func residuals(detrended, phase []float64, period int) []float64 {
	resid := make([]float64, len(detrended))
	for i, v := range detrended {
		resid[i] = v - phase[i%period]
	}
	return resid
}

// flagAnomalies marks the residuals whose magnitude exceeds k standard
// deviations. A zero-variance series has no anomalies.
func flagAnomalies(resid []float64, k float64) []bool {
	mean := 0.0
	for _, v := range resid {
		mean += v
	}
	mean /= float64(len(resid))
	variance := 0.0
	for _, v := range resid {
		variance += (v - mean) * (v - mean)
	}
	sigma := math.Sqrt(variance / float64(len(resid)))
	flagged := make([]bool, len(resid))
	if sigma == 0 {
		return flagged
	}
	for i, v := range resid {
		if math.Abs(v-mean) > k*sigma {
			flagged[i] = true
		}
	}
	return flagged
}
