package refdb

import (
	"context"
	"strings"
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/marinebio/edna/edna"
)

func TestMarkerSetClassify(t *testing.T) {
	m := NewMarkerSet(4)
	m.Add(edna.MarkerMarine, "ACGTACGTACGT")
	m.Add(edna.MarkerTerrestrial, "TTTTCCCCGGGG")

	ctx := context.Background()
	class, conf, err := m.Classify(ctx, "ACGTACGTACGT")
	assert.NoError(t, err)
	expect.EQ(t, class, edna.MarkerMarine)
	expect.EQ(t, conf, 1.0)

	class, conf, err = m.Classify(ctx, "TTTTCCCCGGGG")
	assert.NoError(t, err)
	expect.EQ(t, class, edna.MarkerTerrestrial)
	expect.EQ(t, conf, 1.0)

	// No marker k-mers at all.
	class, conf, err = m.Classify(ctx, "AAAAAAAAAAAA")
	assert.NoError(t, err)
	expect.EQ(t, class, edna.MarkerUnknown)
	expect.EQ(t, conf, 0.0)

	// Shorter than k.
	class, _, err = m.Classify(ctx, "ACG")
	assert.NoError(t, err)
	expect.EQ(t, class, edna.MarkerUnknown)
}

func TestMarkerSetPartialMatch(t *testing.T) {
	m := NewMarkerSet(4)
	m.Add(edna.MarkerFreshwater, "CCCCGGGG")

	// 13 k-mers total, 5 of them from the freshwater marker.
	_, conf, err := m.Classify(context.Background(), "CCCCGGGGATATATAT")
	assert.NoError(t, err)
	expect.EQ(t, conf, 5.0/13.0)
}

// A sequence matching marine and terrestrial markers equally is called
// marine.
func TestMarkerSetTieBreaksMarine(t *testing.T) {
	m := NewMarkerSet(4)
	m.Add(edna.MarkerMarine, "ACGTACGT")
	m.Add(edna.MarkerTerrestrial, "ACGTACGT")
	class, _, err := m.Classify(context.Background(), "ACGTACGT")
	assert.NoError(t, err)
	expect.EQ(t, class, edna.MarkerMarine)
}

func TestMarkerSetAddFASTA(t *testing.T) {
	m := NewMarkerSet(4)
	err := m.AddFASTA(edna.MarkerTerrestrial, strings.NewReader(">soil1\nGGGGTTTT\n"))
	assert.NoError(t, err)
	class, _, err := m.Classify(context.Background(), "GGGGTTTT")
	assert.NoError(t, err)
	expect.EQ(t, class, edna.MarkerTerrestrial)

	assert.NotNil(t, m.AddFASTA(edna.MarkerMarine, strings.NewReader("ACGT\n>oops\n")))
}

func TestMarkerSetCanceledContext(t *testing.T) {
	m := NewMarkerSet(4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := m.Classify(ctx, "ACGTACGT")
	assert.NotNil(t, err)
}
