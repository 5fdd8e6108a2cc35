// Package config is for app wide settings that are unmarshalled
// from Viper (see: /cmd)
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// SourceConfig describes where genomes come from. Exactly one of
// Search, ListFile or GroupsFile may be set unless Dir is provided.
type SourceConfig struct {
	// directory of fasta-formatted genomes to analyze instead of searching NCBI
	Dir string `mapstructure:"dir"`

	// NCBI nucleotide search term used to find genomes
	Search string `mapstructure:"search"`

	// path to a file with search terms or accessions, one per line;
	// each line runs through the same NCBI discovery as --search
	ListFile string `mapstructure:"list"`

	// path to a file with search terms, one group per line
	GroupsFile string `mapstructure:"groups"`

	// upper limit on the number of genomes fetched from a search
	Limit int `mapstructure:"limit"`

	// only accept complete genomes, skipping WGS contig sets
	CompleteOnly bool `mapstructure:"complete-only"`

	// redownload genomes even if a local copy exists
	Redownload bool `mapstructure:"force-redownload"`

	// ask before large downloads
	Ask bool `mapstructure:"ask"`
}

// ArrayConfig holds the parameters passed to the CRT array finder.
type ArrayConfig struct {
	// minimum number of repeats to declare a CRISPR locus (spacers + 1)
	MinRepeats int `mapstructure:"min-repeats"`

	MinRepeatLength int `mapstructure:"min-repeat-length"`
	MaxRepeatLength int `mapstructure:"max-repeat-length"`
	MinSpacerLength int `mapstructure:"min-spacer-length"`
	MaxSpacerLength int `mapstructure:"max-spacer-length"`
}

// FilterConfig holds the thresholds used to accept or reject candidate
// self-targeting spacers and their arrays.
type FilterConfig struct {
	// upper limit of E-value where results are filtered
	EValueLimit float64 `mapstructure:"e-value"`

	// buffer around a locus so missed repeats don't appear as hits
	PadLocus int `mapstructure:"pad-locus"`

	// percent deviation from the average spacer length that rejects a locus
	PercentReject int `mapstructure:"percent-reject"`
}

// LocusConfig is for the Cas locus classification step.
type LocusConfig struct {
	// window around an array to search for Cas proteins. 0 means the
	// whole genome
	CasGeneDistance int `mapstructure:"cas-gene-distance"`

	// use the NCBI Conserved Domain Database instead of local HMMs
	CDD bool `mapstructure:"cdd"`

	// path to the Cas protein HMM library
	CasHMMs string `mapstructure:"cas-hmms"`

	// path to the repeat family HMM library
	RepeatHMMs string `mapstructure:"repeat-hmms"`
}

// Config is the root-level settings struct, a mix of settings.yaml
// values and command line arguments.
type Config struct {
	// prefix for filenames in the output
	Prefix string `mapstructure:"prefix"`

	// skip the PHASTER island analysis
	SkipPHASTER bool `mapstructure:"skip-phaster"`

	Source SourceConfig `mapstructure:"source"`
	Array  ArrayConfig  `mapstructure:"array"`
	Filter FilterConfig `mapstructure:"filter"`
	Locus  LocusConfig  `mapstructure:"locus"`
}

// New returns a Config populated by Viper (from settings.yaml and/or
// command line arguments).
func New() (Config, error) {
	c := Default()
	if err := viper.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("unable to decode settings: %w", err)
	}
	return c, c.Validate()
}

// Default returns the configuration STSS ships with.
func Default() Config {
	return Config{
		Source: SourceConfig{
			Limit: 200000,
			Ask:   true,
		},
		Array: ArrayConfig{
			MinRepeats:      4, // 3 spacers
			MinRepeatLength: 18,
			MaxRepeatLength: 45,
			MinSpacerLength: 18,
			MaxSpacerLength: 45,
		},
		Filter: FilterConfig{
			EValueLimit:   1e-6,
			PadLocus:      100,
			PercentReject: 25,
		},
		Locus: LocusConfig{
			CasGeneDistance: 20000,
		},
	}
}

// Validate rejects conflicting run modes: search, list and groups are
// mutually exclusive unless a genome directory was provided.
func (c Config) Validate() error {
	ops := 0
	if c.Source.Search != "" {
		ops++
	}
	if c.Source.ListFile != "" {
		ops++
	}
	if c.Source.GroupsFile != "" {
		ops++
	}
	if c.Source.Dir != "" {
		ops++
	}
	if ops == 0 {
		return fmt.Errorf("no operation selected: provide one of --dir, --search, --list or --groups")
	}
	if ops > 1 && c.Source.Dir == "" {
		return fmt.Errorf("multiple operations are not compatible (search, list, groups): select one")
	}
	return nil
}
