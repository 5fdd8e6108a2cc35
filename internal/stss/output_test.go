package stss

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func Test_hitRow(t *testing.T) {
	h := Hit{
		AssemblyUID:     "1234567",
		TargetAcc:       "NC_000001",
		LocusAcc:        "NC_000001",
		Species:         "Streptococcus pyogenes M1 GAS",
		TypeProteins:    "Type II-A",
		TypeRepeat:      "Type II-A (group II-A)",
		Completeness:    "Complete",
		Proteins:        []string{"Cas9 (Csn1)", "Cas1", "Cas2", "Csn2"},
		ArrayIndex:      1,
		SpacerIndex:     3,
		TargetPos:       561233,
		LocusPos:        854690,
		SpacerSeq:       "ACGTACGTACGTACGTACGT",
		PAMUp:           "TTTAAAGGG",
		TargetSeq:       "Perfect match",
		PAMDown:         "CCCGGGAAA",
		ConsensusRepeat: "GTTTTAGAGCTATGCTGTTTTG",
		RepeatMutations: "None",
		ArrayDirection:  "Original orientation correct (determined with repeat sequence)",
		Targets:         []SelfTarget{{ID: "WP_A.1", Product: "transposase"}},
		PhasterIsland:   "1",
	}

	row := hitRow(h)

	if len(row) != len(resultColumns) {
		t.Fatalf("hitRow() produced %d columns, want %d", len(row), len(resultColumns))
	}
	if row[7] != "Cas9 (Csn1), Cas1, Cas2, Csn2" {
		t.Errorf("hitRow() proteins column = %q", row[7])
	}
	if row[19] != "WP_A.1, transposase" {
		t.Errorf("hitRow() self-target column = %q", row[19])
	}
}

func Test_hitRow_noProteins(t *testing.T) {
	row := hitRow(Hit{})

	if row[7] != "None" {
		t.Errorf("hitRow() proteins column = %q, want None", row[7])
	}
}

func Test_ExportResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.txt")
	hits := []Hit{
		{TargetAcc: "NC_000001", ArrayIndex: 1, SpacerIndex: 2},
		{TargetAcc: "NC_000002", ArrayIndex: 3, SpacerIndex: 1},
	}

	if err := ExportResults(path, hits); err != nil {
		t.Fatal(err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(contents), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("ExportResults() wrote %d lines, want 3", len(lines))
	}
	header := strings.Split(lines[0], "\t")
	if len(header) != 21 {
		t.Errorf("ExportResults() header has %d columns, want 21", len(header))
	}
	if header[0] != "Assembly uID" || header[20] != "PHASTER Island #" {
		t.Errorf("ExportResults() header bounds = %q ... %q", header[0], header[20])
	}
	if !strings.HasPrefix(lines[1], "\tNC_000001\t") {
		t.Errorf("ExportResults() first row = %q", lines[1])
	}
}

func Test_WriteRunNotes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run_notes.txt")
	stats := RunStats{
		GenomesAnalyzed: 12,
		GenomesEmpty:    4,
		ArraysFound:     9,
		FalsePositives:  2,
		SpacersSearched: 310,
		HitsFound:       7,
		MaskedGenomes:   []string{"AAAA01"},
		GenomesFailed:   []string{"NC_000099"},
	}

	if err := WriteRunNotes(path, stats); err != nil {
		t.Fatal(err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(contents)
	for _, want := range []string{
		"Genomes analyzed: 12",
		"CRISPR arrays found: 9",
		"Arrays rejected as false positives: 2",
		"Spacers searched: 310",
		"Self-targeting spacers found: 7",
		"AAAA01",
		"NC_000099",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("WriteRunNotes() output missing %q:\n%s", want, text)
		}
	}
}
