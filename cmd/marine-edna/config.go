package main

import (
	"context"
	"fmt"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/kelseyhightower/envconfig"
	"github.com/marinebio/edna/edna"
	yaml "gopkg.in/yaml.v2"
)

// config is the run manifest: pipeline options, reference database paths and
// the samples to process. It is loaded from one YAML file so a run is fully
// described by a single artifact; the reference paths can be overridden
// through the environment, letting one manifest be shared across
// deployments that stage their references differently.
type config struct {
	// Options overrides pipeline defaults. Keys absent from the file keep
	// their default values.
	Options edna.Opts `yaml:"options"`

	References references `yaml:"references"`

	Samples []sampleEntry `yaml:"samples"`
}

type references struct {
	// MarineMarkers, TerrestrialMarkers and FreshwaterMarkers are FASTA
	// files of origin-marker sequences for the contamination screen.
	MarineMarkers      string `yaml:"marine_markers" envconfig:"EDNA_MARINE_MARKERS"`
	TerrestrialMarkers string `yaml:"terrestrial_markers" envconfig:"EDNA_TERRESTRIAL_MARKERS"`
	FreshwaterMarkers  string `yaml:"freshwater_markers" envconfig:"EDNA_FRESHWATER_MARKERS"`
	// Taxonomy is a TSV of (taxon, habitat, trophic, sequence) rows.
	Taxonomy string `yaml:"taxonomy" envconfig:"EDNA_TAXONOMY"`
	// Genes is a FASTA of reference gene sequences; Pathways is a TSV of
	// (pathway, comma-separated genes) rows.
	Genes    string `yaml:"genes" envconfig:"EDNA_GENES"`
	Pathways string `yaml:"pathways" envconfig:"EDNA_PATHWAYS"`
}

// sampleEntry is one sample in the manifest: its FASTQ plus the collection
// metadata the normalizer and profiler need.
type sampleEntry struct {
	ID           string    `yaml:"id"`
	Site         string    `yaml:"site"`
	FASTQ        string    `yaml:"fastq"`
	Latitude     float64   `yaml:"latitude"`
	Longitude    float64   `yaml:"longitude"`
	DepthM       float64   `yaml:"depth_m"`
	CollectedAt  time.Time `yaml:"collected_at"`
	SalinityPSU  float64   `yaml:"salinity_psu"`
	TemperatureC float64   `yaml:"temperature_c"`
}

func (e sampleEntry) metadata() edna.Metadata {
	return edna.Metadata{
		Site:         e.Site,
		Latitude:     e.Latitude,
		Longitude:    e.Longitude,
		DepthM:       e.DepthM,
		CollectedAt:  e.CollectedAt,
		SalinityPSU:  e.SalinityPSU,
		TemperatureC: e.TemperatureC,
	}
}

// loadConfig reads the YAML manifest at path, applies environment overrides
// to the reference paths and validates the manifest shape. Option values are
// validated later by the runner.
func loadConfig(ctx context.Context, path string) (*config, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E("open config", path, err)
	}
	defer in.Close(ctx) // nolint: errcheck
	cfg := &config{Options: edna.DefaultOpts}
	if err := yaml.NewDecoder(in.Reader(ctx)).Decode(cfg); err != nil {
		return nil, errors.E(errors.Invalid, "parse config "+path, err)
	}
	if err := envconfig.Process("", &cfg.References); err != nil {
		return nil, errors.E("config environment overrides", err)
	}
	if len(cfg.Samples) == 0 {
		return nil, errors.E(errors.Invalid, path+": no samples in manifest")
	}
	seen := map[string]bool{}
	for i, s := range cfg.Samples {
		if s.ID == "" || s.Site == "" || s.FASTQ == "" {
			return nil, errors.E(errors.Invalid,
				fmt.Sprintf("%s: sample #%d: id, site and fastq are all required", path, i))
		}
		if seen[s.ID] {
			return nil, errors.E(errors.Invalid, path+": duplicate sample id "+s.ID)
		}
		seen[s.ID] = true
	}
	return cfg, nil
}
