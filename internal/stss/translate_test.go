package stss

import "testing"

func Test_translateToStop(t *testing.T) {
	tests := []struct {
		name string
		seq  string
		want string
	}{
		{
			"stops at the stop codon",
			"ATGAAACGCTAAGGG",
			"MKR",
		},
		{
			"lowercase input",
			"atgaaacgc",
			"MKR",
		},
		{
			"ambiguous codon is X",
			"ATGANACGC",
			"MXR",
		},
		{
			"trailing partial codon dropped",
			"ATGAAACG",
			"MK",
		},
		{
			"empty",
			"",
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := translateToStop(tt.seq); got != tt.want {
				t.Errorf("translateToStop() = %v, want %v", got, tt.want)
			}
		})
	}
}
