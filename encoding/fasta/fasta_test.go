package fasta

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const data = `>seq1 marine marker
ACGTACGT
TTTT
>seq2
GGGG
`

func TestNew(t *testing.T) {
	f, err := New(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"seq1", "seq2"}, f.SeqNames())

	seq, err := f.Seq("seq1")
	require.NoError(t, err)
	assert.Equal(t, "ACGTACGTTTTT", seq)

	n, err := f.Len("seq2")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), n)

	_, err = f.Seq("nope")
	assert.Error(t, err)
}

func TestNewMalformed(t *testing.T) {
	_, err := New(strings.NewReader("ACGT\n>seq1\nACGT\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed")
}

func TestNewEmpty(t *testing.T) {
	f, err := New(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, f.SeqNames())
}
