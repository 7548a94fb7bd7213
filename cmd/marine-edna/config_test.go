package main

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/marinebio/edna/edna"
)

const manifest = `
options:
  min_length: 150
  normalization_method: salinity
references:
  marine_markers: refs/marine.fa
  taxonomy: refs/taxonomy.tsv
  genes: refs/genes.fa
  pathways: refs/pathways.tsv
samples:
  - id: s1
    site: st-1
    fastq: data/s1.fastq.gz
    depth_m: 50
    collected_at: 2024-01-15T00:00:00Z
    salinity_psu: 34.5
    temperature_c: 12
  - id: s2
    site: st-1
    fastq: data/s2.fastq.gz
    depth_m: 800
    collected_at: 2024-02-15T00:00:00Z
    salinity_psu: 35.1
    temperature_c: 8
`

func writeManifest(t *testing.T, dir, body string) string {
	path := filepath.Join(dir, "run.yaml")
	assert.NoError(t, ioutil.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadConfig(t *testing.T) {
	tmp, cleanup := testutil.TempDir(t, "", "config")
	defer cleanup()
	cfg, err := loadConfig(context.Background(), writeManifest(t, tmp, manifest))
	assert.NoError(t, err)

	// Keys present in the file override the defaults; absent keys keep them.
	expect.EQ(t, cfg.Options.MinLength, 150)
	expect.EQ(t, cfg.Options.NormMethod, edna.MethodSalinity)
	expect.EQ(t, cfg.Options.MaxLength, edna.DefaultOpts.MaxLength)

	expect.EQ(t, cfg.References.MarineMarkers, "refs/marine.fa")
	expect.EQ(t, cfg.References.TerrestrialMarkers, "")
	assert.EQ(t, len(cfg.Samples), 2)
	expect.EQ(t, cfg.Samples[0].ID, "s1")
	expect.EQ(t, cfg.Samples[1].DepthM, 800.0)
	meta := cfg.Samples[0].metadata()
	expect.EQ(t, meta.Site, "st-1")
	expect.EQ(t, meta.SalinityPSU, 34.5)
	expect.EQ(t, meta.CollectedAt.Year(), 2024)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	tmp, cleanup := testutil.TempDir(t, "", "config")
	defer cleanup()
	assert.NoError(t, os.Setenv("EDNA_TAXONOMY", "/staged/taxonomy.tsv"))
	defer os.Unsetenv("EDNA_TAXONOMY") // nolint: errcheck
	cfg, err := loadConfig(context.Background(), writeManifest(t, tmp, manifest))
	assert.NoError(t, err)
	expect.EQ(t, cfg.References.Taxonomy, "/staged/taxonomy.tsv")
	expect.EQ(t, cfg.References.Genes, "refs/genes.fa")
}

func TestLoadConfigRejectsBadManifests(t *testing.T) {
	tmp, cleanup := testutil.TempDir(t, "", "config")
	defer cleanup()
	for _, body := range []string{
		"options:\n  min_length: 100\n", // no samples
		manifest + "  - id: s3\n    site: st-2\n", // missing fastq
		manifest + "  - id: s1\n    site: st-2\n    fastq: data/dup.fastq\n", // duplicate id
	} {
		_, err := loadConfig(context.Background(), writeManifest(t, tmp, body))
		expect.NotNil(t, err, "manifest: %q", body)
	}
}

func TestSplitList(t *testing.T) {
	expect.EQ(t, splitList(""), []string(nil))
	expect.EQ(t, splitList("methane-oxidation"), []string{"methane-oxidation"})
	expect.EQ(t, splitList("a, b ,c"), []string{"a", "b", "c"})
}
