package timeseries

import (
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func monthly(values []float64) []Observation {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	obs := make([]Observation, len(values))
	for i, v := range values {
		obs[i] = Observation{
			SampleID:  fmt.Sprintf("s%02d", i),
			Timestamp: start.AddDate(0, i, 0),
			Value:     v,
		}
	}
	return obs
}

// seasonalValues builds n observations of baseline + a sinusoidal annual
// cycle.
func seasonalValues(n int, baseline, amplitude float64) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = baseline + amplitude*math.Sin(2*math.Pi*float64(i%12)/12)
	}
	return values
}

func TestDecomposeInsufficientData(t *testing.T) {
	obs := monthly(seasonalValues(23, 10, 2))
	_, err := Decompose("st-1", "photosystem-II", obs, 12, 3)
	assert.NotNil(t, err)
	ie, ok := err.(*InsufficientDataError)
	assert.True(t, ok)
	expect.EQ(t, ie.Need, 24)
	expect.EQ(t, ie.Got, 23)
	assert.HasSubstr(t, err.Error(), "st-1")
}

func TestDecomposeFlatSeries(t *testing.T) {
	obs := monthly(make([]float64, 24))
	for i := range obs {
		obs[i].Value = 10
	}
	r, err := Decompose("st-1", "p", obs, 12, 3)
	assert.NoError(t, err)
	for i := 0; i < 24; i++ {
		expect.EQ(t, r.Trend[i], 10.0)
		expect.EQ(t, r.Seasonal[i], 0.0)
		expect.EQ(t, r.Residual[i], 0.0)
	}
	expect.EQ(t, len(r.Anomalies), 0)
}

func TestDecomposeRecoversSeasonalCycle(t *testing.T) {
	obs := monthly(seasonalValues(24, 10, 2))
	r, err := Decompose("st-1", "p", obs, 12, 3)
	assert.NoError(t, err)
	for i := 0; i < 24; i++ {
		expect.True(t, math.Abs(r.Trend[i]-10) < 1e-9, "trend[%d]=%v", i, r.Trend[i])
		want := 2 * math.Sin(2*math.Pi*float64(i%12)/12)
		expect.True(t, math.Abs(r.Seasonal[i]-want) < 1e-9, "seasonal[%d]=%v", i, r.Seasonal[i])
	}
	expect.EQ(t, len(r.Anomalies), 0)
}

// A single spike in an otherwise regular series is flagged as an anomaly,
// and its seasonal phase partner is not dragged along with it.
func TestDecomposeSpikeAnomaly(t *testing.T) {
	values := seasonalValues(24, 10, 2)
	values[13] += 5
	r, err := Decompose("st-1", "p", monthly(values), 12, 3)
	assert.NoError(t, err)
	expect.EQ(t, r.Anomalies, []int{13})

	// The decomposition identity holds everywhere.
	for i := 0; i < 24; i++ {
		sum := r.Trend[i] + r.Seasonal[i] + r.Residual[i]
		expect.True(t, math.Abs(sum-r.Observed[i]) < 1e-9, "identity at %d", i)
	}
}

// Input order must not matter: observations are sorted by timestamp with
// sample ID breaking ties.
func TestDecomposeDeterministicOrder(t *testing.T) {
	values := seasonalValues(24, 10, 2)
	values[13] += 5
	obs := monthly(values)
	shuffled := append([]Observation(nil), obs...)
	rand.New(rand.NewSource(1)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	r1, err := Decompose("st-1", "p", obs, 12, 3)
	assert.NoError(t, err)
	r2, err := Decompose("st-1", "p", shuffled, 12, 3)
	assert.NoError(t, err)
	expect.EQ(t, r1, r2)
	for i := 1; i < len(r2.Times); i++ {
		expect.True(t, !r2.Times[i].Before(r2.Times[i-1]))
	}

	// Equal timestamps order by sample ID.
	same := []Observation{
		{SampleID: "b", Timestamp: obs[0].Timestamp, Value: 2},
		{SampleID: "a", Timestamp: obs[0].Timestamp, Value: 1},
	}
	r3, err := Decompose("st-1", "p", append(same, obs[2:]...), 12, 3)
	assert.NoError(t, err)
	expect.EQ(t, r3.Observed[0], 1.0)
	expect.EQ(t, r3.Observed[1], 2.0)
}

func TestDecomposeLongerSeriesWithTrend(t *testing.T) {
	// Three years of data with a linear trend on top of the cycle.
	values := seasonalValues(36, 10, 2)
	for i := range values {
		values[i] += 0.1 * float64(i)
	}
	r, err := Decompose("st-1", "p", monthly(values), 12, 3)
	assert.NoError(t, err)
	// Interior trend follows the linear ramp.
	for i := 6; i <= 29; i++ {
		want := 10 + 0.1*float64(i)
		expect.True(t, math.Abs(r.Trend[i]-want) < 1e-9, "trend[%d]=%v want %v", i, r.Trend[i], want)
	}
	expect.EQ(t, len(r.Anomalies), 0)
}
