package stss

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const blastTable = "CRISPR_1_Spacer_2\tNZ_CP00001|NZ_CP00001.1\t100.000\t24\t0\t0\t1\t24\t5000\t5023\t1.2e-08\t44.6\n" +
	"CRISPR_1_Spacer_2\tNZ_CP00001|NZ_CP00001.1\t95.833\t24\t1\t0\t1\t24\t8023\t8000\t3.4e-06\t38.1\n" +
	"# not a hit row\n"

func Test_parseBlastTable(t *testing.T) {
	hits := parseBlastTable(blastTable)

	if len(hits) != 2 {
		t.Fatalf("parseBlastTable() parsed %d hits, want 2", len(hits))
	}

	first := hits[0]
	if first.query != "CRISPR_1_Spacer_2" || first.subject != "NZ_CP00001|NZ_CP00001.1" {
		t.Errorf("parseBlastTable() names = %q %q", first.query, first.subject)
	}
	if first.qstart != 1 || first.qend != 24 || first.sstart != 5000 || first.send != 5023 {
		t.Errorf("parseBlastTable() coordinates = %+v", first)
	}
	if first.eValue != 1.2e-08 {
		t.Errorf("parseBlastTable() e-value = %v", first.eValue)
	}
	if first.direction() <= 0 {
		t.Errorf("blastHit.direction() = %d, want positive", first.direction())
	}
	if hits[1].direction() >= 0 {
		t.Errorf("blastHit.direction() = %d, want negative for a minus-strand hit", hits[1].direction())
	}
}

func Test_spacerQueryName_roundTrip(t *testing.T) {
	name := spacerQueryName(3, 12)

	if name != "CRISPR_3_Spacer_12" {
		t.Errorf("spacerQueryName() = %v", name)
	}

	crispr, spacer, err := parseSpacerQueryName(name)
	if err != nil {
		t.Fatal(err)
	}
	if crispr != 3 || spacer != 12 {
		t.Errorf("parseSpacerQueryName() = (%d, %d), want (3, 12)", crispr, spacer)
	}

	if _, _, err := parseSpacerQueryName("Spacer_3"); err == nil {
		t.Error("parseSpacerQueryName() accepted a malformed name")
	}
}

func Test_writeSpacerQueries(t *testing.T) {
	arrays := []Array{
		{
			Index: 1,
			Spacers: []Spacer{
				{Seq: "ACGTACGTACGTACGTACGT", Pos: 100},
				{Seq: "TGCATGCATGCATGCATGCA", Pos: 150},
			},
		},
		{
			Index:         2,
			FalsePositive: true,
			Spacers:       []Spacer{{Seq: "ACGTACGTACGTACGTACGT", Pos: 900}},
		},
	}

	path := filepath.Join(t.TempDir(), "spacers.fa")
	written, err := writeSpacerQueries(path, arrays)

	if err != nil {
		t.Fatal(err)
	}
	if written != 2 {
		t.Errorf("writeSpacerQueries() wrote %d spacers, want 2", written)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	fasta := string(contents)
	if !strings.Contains(fasta, ">CRISPR_1_Spacer_1\nACGTACGTACGTACGTACGT\n") {
		t.Errorf("writeSpacerQueries() output missing the first query:\n%s", fasta)
	}
	if strings.Contains(fasta, "CRISPR_2") {
		t.Errorf("writeSpacerQueries() included a rejected array:\n%s", fasta)
	}
}
