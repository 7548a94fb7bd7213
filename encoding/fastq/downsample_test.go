package fastq

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeFASTQ(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "@read%d\nACGTACGT\n+\n((((((((\n", i)
	}
	return b.String()
}

func TestDownsampleRate(t *testing.T) {
	in := makeFASTQ(1000)
	var out bytes.Buffer
	require.NoError(t, Downsample(0.5, strings.NewReader(in), &out))
	n := strings.Count(out.String(), "@read")
	assert.True(t, n > 400 && n < 600, "selected %d of 1000", n)

	// Deterministic: the same input selects the same reads.
	var out2 bytes.Buffer
	require.NoError(t, Downsample(0.5, strings.NewReader(in), &out2))
	assert.Equal(t, out.String(), out2.String())
}

func TestDownsampleBoundaryRates(t *testing.T) {
	in := makeFASTQ(10)
	var out bytes.Buffer
	require.NoError(t, Downsample(0, strings.NewReader(in), &out))
	assert.Equal(t, 0, out.Len())
	out.Reset()
	require.NoError(t, Downsample(1, strings.NewReader(in), &out))
	assert.Equal(t, in, out.String())

	assert.Error(t, Downsample(1.5, strings.NewReader(in), &out))
	assert.Error(t, Downsample(-0.1, strings.NewReader(in), &out))
}

func TestDownsampleTruncatedRecord(t *testing.T) {
	err := Downsample(1, strings.NewReader("@read0\nACGT\n+\n((((\n@read1\nACGT\n"), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too few lines")
}
