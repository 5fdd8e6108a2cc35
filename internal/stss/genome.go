package stss

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Contig is one sequence record of a genome unit.
type Contig struct {
	// Accession of this contig (the true NCBI accession when known)
	Accession string

	// Seq is the nucleotide sequence, uppercase not guaranteed
	Seq string
}

// MaskCorrection records one collapsed run of ambiguous bases: Pos is
// the position in the array finder's coordinate space (the edited,
// concatenated file) and Removed the number of bases cut there.
// Entries are kept sorted by Pos.
type MaskCorrection struct {
	Pos     int
	Removed int
}

// GenomeUnit is one analyzed nucleotide entity: a complete genome or a
// WGS contig set, loaded from one FASTA file.
type GenomeUnit struct {
	// Accession identifies the unit: the genome accession for complete
	// genomes, the WGS master accession for fragmented ones
	Accession string

	// Path of the FASTA file CRT is run against. Repointed to the
	// edited file when N-runs were collapsed
	Path string

	// Provided is true when the genome came from a local directory
	// rather than an NCBI lookup
	Provided bool

	// Complete is false for WGS (fragmented) genomes
	Complete bool

	Contigs []Contig

	// Masked is the masking correction table, nil when no long N-runs
	// were collapsed
	Masked []MaskCorrection
}

// ContigIndex returns the index of the contig whose accession contains
// acc, or -1.
func (g *GenomeUnit) ContigIndex(acc string) int {
	for i, c := range g.Contigs {
		if strings.Contains(c.Accession, acc) {
			return i
		}
	}
	return -1
}

const (
	// nRunLength is the shortest ambiguous run that gets collapsed
	// before the array search
	nRunLength = 500

	// nChunk is how many bases are removed per collapse step
	nChunk = 200
)

// readFasta parses the FASTA file at path into contigs. Headers of the
// form ">master|contig" keep only the contig accession; otherwise the
// first whitespace-separated token is used.
func readFasta(path string) ([]Contig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var contigs []Contig
	var name string
	var seq strings.Builder
	flush := func() {
		if name != "" {
			contigs = append(contigs, Contig{Accession: name, Seq: seq.String()})
		}
		seq.Reset()
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, ">") {
			flush()
			header := strings.TrimPrefix(line, ">")
			if i := strings.IndexByte(header, '|'); i >= 0 {
				name = strings.TrimSpace(strings.Fields(header[i+1:])[0])
			} else {
				fields := strings.Fields(header)
				if len(fields) == 0 {
					return nil, fmt.Errorf("empty FASTA header in %s", path)
				}
				name = fields[0]
			}
			continue
		}
		seq.WriteString(line)
	}
	flush()
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(contigs) == 0 {
		return nil, fmt.Errorf("no sequence records in %s", path)
	}
	return contigs, nil
}

// collapseNRuns removes long ambiguous runs from each contig in chunks,
// recording where and how much was cut. Positions in the returned table
// are in the concatenated file coordinate space the array finder sees
// (header characters included, newlines not). The input is not mutated.
func collapseNRuns(contigs []Contig) ([]Contig, []MaskCorrection) {
	run := strings.Repeat("N", nRunLength)
	var table []MaskCorrection
	edited := make([]Contig, len(contigs))

	abs := 0
	for i, c := range contigs {
		seq := c.Seq
		for {
			p := strings.Index(seq, run)
			if p < 0 {
				break
			}
			removed := 0
			// cut chunks until the run at this position drops under
			// the threshold
			for strings.Index(seq, run) == p {
				seq = seq[:p] + seq[p+nChunk:]
				removed += nChunk
			}
			table = append(table, MaskCorrection{Pos: abs + p, Removed: removed})
		}
		edited[i] = Contig{Accession: c.Accession, Seq: seq}
		abs += len(c.Accession) + 1 + len(seq) // +1 for the '>'
	}
	return edited, table
}

// writeFasta writes contigs to path, one record per contig.
func writeFasta(path string, contigs []Contig) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, c := range contigs {
		fmt.Fprintf(w, ">%s\n%s\n", c.Accession, c.Seq)
	}
	return w.Flush()
}

// MaskGenome collapses long N-runs in g, writes the edited FASTA next
// to the original under edited_fastas/ and repoints g at it. A genome
// with no long runs is returned untouched.
func MaskGenome(g *GenomeUnit) (bool, error) {
	edited, table := collapseNRuns(g.Contigs)
	if len(table) == 0 {
		return false, nil
	}

	dir := filepath.Join(filepath.Dir(g.Path), "edited_fastas")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, err
	}
	base := strings.TrimSuffix(filepath.Base(g.Path), filepath.Ext(g.Path))
	path := filepath.Join(dir, base+"_Ns_removed.fasta")
	if err := writeFasta(path, edited); err != nil {
		return false, err
	}

	g.Contigs = edited
	g.Masked = table
	g.Path = path
	return true, nil
}
