package config

import "testing"

func Test_Config_Validate(t *testing.T) {
	tests := []struct {
		name    string
		source  SourceConfig
		wantErr bool
	}{
		{
			"no operation",
			SourceConfig{},
			true,
		},
		{
			"search only",
			SourceConfig{Search: "Streptococcus pyogenes"},
			false,
		},
		{
			"list only",
			SourceConfig{ListFile: "uids.txt"},
			false,
		},
		{
			"groups only",
			SourceConfig{GroupsFile: "groups.txt"},
			false,
		},
		{
			"dir only",
			SourceConfig{Dir: "genomes"},
			false,
		},
		{
			"search and list conflict",
			SourceConfig{Search: "phage", ListFile: "uids.txt"},
			true,
		},
		{
			"dir tolerates a search term",
			SourceConfig{Dir: "genomes", Search: "phage"},
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			c.Source = tt.source

			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_Default(t *testing.T) {
	c := Default()

	if c.Array.MinRepeats != 4 {
		t.Errorf("Default().Array.MinRepeats = %d, want 4", c.Array.MinRepeats)
	}
	if c.Filter.PercentReject != 25 {
		t.Errorf("Default().Filter.PercentReject = %d, want 25", c.Filter.PercentReject)
	}
	if c.Locus.CasGeneDistance != 20000 {
		t.Errorf("Default().Locus.CasGeneDistance = %d, want 20000", c.Locus.CasGeneDistance)
	}
	if err := (Config{Source: SourceConfig{Dir: "genomes"}}).Validate(); err != nil {
		t.Errorf("Validate() on a dir run = %v, want nil", err)
	}
}
