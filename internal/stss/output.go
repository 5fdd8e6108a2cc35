package stss

import (
	"fmt"
	"os"
	"strings"
)

// resultColumns is the report header, one column per Hit field in
// export order.
var resultColumns = []string{
	"Assembly uID",
	"Target Accession#",
	"Locus Accession#",
	"Species/Strain",
	"Predicted Type from Cas proteins",
	"Predicted Type from repeats",
	"Locus Completeness",
	"Cas Genes Identified",
	"CRISPR #",
	"Spacer #",
	"Spacer Target Pos.",
	"Spacer Locus Pos.",
	"Spacer Sequence",
	"PAM Region (Upstream)",
	"Target Sequence",
	"PAM Region (Downstream)",
	"Consensus Repeat",
	"Repeat Mutations",
	"Array Direction",
	"Self-Target(s)",
	"PHASTER Island #",
}

// ExportResults writes the hits as a tab-separated report.
func ExportResults(path string, hits []Hit) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create results file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, strings.Join(resultColumns, "\t")); err != nil {
		return err
	}
	for _, hit := range hits {
		if _, err := fmt.Fprintln(f, strings.Join(hitRow(hit), "\t")); err != nil {
			return err
		}
	}
	return nil
}

func hitRow(h Hit) []string {
	proteins := "None"
	if len(h.Proteins) > 0 {
		proteins = strings.Join(h.Proteins, ", ")
	}
	return []string{
		h.AssemblyUID,
		h.TargetAcc,
		h.LocusAcc,
		h.Species,
		h.TypeProteins,
		h.TypeRepeat,
		h.Completeness,
		proteins,
		fmt.Sprint(h.ArrayIndex),
		fmt.Sprint(h.SpacerIndex),
		fmt.Sprint(h.TargetPos),
		fmt.Sprint(h.LocusPos),
		h.SpacerSeq,
		h.PAMUp,
		h.TargetSeq,
		h.PAMDown,
		h.ConsensusRepeat,
		h.RepeatMutations,
		h.ArrayDirection,
		selfTargetLabel(h.Targets),
		h.PhasterIsland,
	}
}

// WriteRunNotes records which genomes were analyzed, which were
// N-masked before array search, and which failed outright.
func WriteRunNotes(path string, stats RunStats) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Genomes analyzed: %d\n", stats.GenomesAnalyzed)
	fmt.Fprintf(&sb, "Genomes with no arrays found: %d\n", stats.GenomesEmpty)
	fmt.Fprintf(&sb, "CRISPR arrays found: %d\n", stats.ArraysFound)
	fmt.Fprintf(&sb, "Arrays rejected as false positives: %d\n", stats.FalsePositives)
	fmt.Fprintf(&sb, "Spacers searched: %d\n", stats.SpacersSearched)
	fmt.Fprintf(&sb, "Self-targeting spacers found: %d\n", stats.HitsFound)
	if len(stats.MaskedGenomes) > 0 {
		sb.WriteString("\nGenomes with long runs of Ns collapsed before array search:\n")
		for _, acc := range stats.MaskedGenomes {
			sb.WriteString(acc + "\n")
		}
	}
	if len(stats.GenomesFailed) > 0 {
		sb.WriteString("\nGenomes that failed analysis:\n")
		for _, acc := range stats.GenomesFailed {
			sb.WriteString(acc + "\n")
		}
	}
	return os.WriteFile(path, []byte(sb.String()), 0644)
}
