package stss

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// blastHit is one row of tabular blastn output. Coordinates are
// 1-based as reported.
type blastHit struct {
	query   string
	subject string
	qstart  int
	qend    int
	sstart  int
	send    int
	eValue  float64
}

// direction is negative for minus-strand subject alignments.
func (h blastHit) direction() int { return h.send - h.sstart }

// spacerAligner runs the two nucleotide alignments of the pipeline:
// the genome-wide spacer search and the local target realignment.
type spacerAligner interface {
	SearchSpacers(queryPath, subjectPath string, eValueLimit float64) ([]blastHit, error)
	AlignTarget(spacer, subseq string) (blastHit, bool, error)
}

// blastnExec wraps the blastn binary, using dir for scratch files.
type blastnExec struct {
	dir string
}

// SearchSpacers aligns a query FASTA of spacers against a genome
// subject and returns every hit under the e-value limit.
func (b blastnExec) SearchSpacers(queryPath, subjectPath string, eValueLimit float64) ([]blastHit, error) {
	out, err := b.run(
		"-query", queryPath,
		"-subject", subjectPath,
		"-outfmt", "6",
		"-evalue", strconv.FormatFloat(eValueLimit, 'g', -1, 64),
	)
	if err != nil {
		return nil, err
	}
	return parseBlastTable(out), nil
}

// AlignTarget realigns one spacer against the padded target
// subsequence. The alignment is ungapped and plus-strand only so the
// seed register can be extended without indels; the second return is
// false when blastn finds no seed at all.
func (b blastnExec) AlignTarget(spacer, subseq string) (blastHit, bool, error) {
	queryPath := filepath.Join(b.dir, "target_query.fa")
	subjectPath := filepath.Join(b.dir, "target_subject.fa")
	if err := os.WriteFile(queryPath, []byte(fmt.Sprintf(">Query_Sequence\n%s\n", spacer)), 0644); err != nil {
		return blastHit{}, false, fmt.Errorf("failed to write target query: %w", err)
	}
	if err := os.WriteFile(subjectPath, []byte(fmt.Sprintf(">Subject_Sequence\n%s\n", subseq)), 0644); err != nil {
		return blastHit{}, false, fmt.Errorf("failed to write target subject: %w", err)
	}

	out, err := b.run(
		"-query", queryPath,
		"-subject", subjectPath,
		"-outfmt", "6",
		"-max_target_seqs", "1",
		"-word_size", "7",
		"-ungapped",
		"-strand", "plus",
	)
	if err != nil {
		return blastHit{}, false, err
	}
	hits := parseBlastTable(out)
	if len(hits) == 0 {
		return blastHit{}, false, nil
	}
	return hits[0], true, nil
}

func (b blastnExec) run(args ...string) (string, error) {
	cmd := exec.Command("blastn", args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to execute blastn: %w: %s", err, stderr.String())
	}
	return string(out), nil
}

// parseBlastTable reads -outfmt 6 rows, dropping any it cannot parse.
func parseBlastTable(out string) []blastHit {
	var hits []blastHit
	for _, line := range strings.Split(out, "\n") {
		cols := strings.Split(strings.TrimSpace(line), "\t")
		if len(cols) < 12 {
			continue
		}
		qstart, err1 := strconv.Atoi(cols[6])
		qend, err2 := strconv.Atoi(cols[7])
		sstart, err3 := strconv.Atoi(cols[8])
		send, err4 := strconv.Atoi(cols[9])
		eValue, err5 := strconv.ParseFloat(cols[10], 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}
		hits = append(hits, blastHit{
			query:   cols[0],
			subject: cols[1],
			qstart:  qstart,
			qend:    qend,
			sstart:  sstart,
			send:    send,
			eValue:  eValue,
		})
	}
	return hits
}

// spacerQueryName labels one spacer in the search FASTA so hits can be
// traced back to their array.
func spacerQueryName(crispr, spacer int) string {
	return fmt.Sprintf("CRISPR_%d_Spacer_%d", crispr, spacer)
}

// parseSpacerQueryName inverts spacerQueryName.
func parseSpacerQueryName(name string) (crispr, spacer int, err error) {
	parts := strings.Split(name, "_")
	if len(parts) != 4 || parts[0] != "CRISPR" || parts[2] != "Spacer" {
		return 0, 0, fmt.Errorf("unexpected query name %q", name)
	}
	crispr, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, err
	}
	spacer, err = strconv.Atoi(parts[3])
	return crispr, spacer, err
}

// writeSpacerQueries writes the search FASTA for the arrays of a
// genome unit. Arrays marked false positive contribute no queries.
func writeSpacerQueries(path string, arrays []Array) (int, error) {
	var fasta strings.Builder
	written := 0
	for _, a := range arrays {
		if a.FalsePositive {
			continue
		}
		for i, sp := range a.Spacers {
			fmt.Fprintf(&fasta, ">%s\n%s\n", spacerQueryName(a.Index, i+1), sp.Seq)
			written++
		}
	}
	if err := os.WriteFile(path, []byte(fasta.String()), 0644); err != nil {
		return 0, fmt.Errorf("failed to write spacer queries: %w", err)
	}
	return written, nil
}
