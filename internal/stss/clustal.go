package stss

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// msa aligns a set of sequences and returns the alignment with rows in
// input order.
type msa interface {
	Align(seqs []string) (alignment, error)
}

// alignment is a parsed multiple sequence alignment. Rows are equal
// length, gaps marked '-'.
type alignment struct {
	rows []string
}

// clustalOmega wraps the clustalo binary, feeding it FASTA on stdin
// and reading back clustal-format output.
type clustalOmega struct {
	bin string
}

func (c *clustalOmega) Align(seqs []string) (alignment, error) {
	out, err := os.CreateTemp("", "clustalo-out-*")
	if err != nil {
		return alignment{}, err
	}
	out.Close()
	defer os.Remove(out.Name())

	var in bytes.Buffer
	for i, s := range seqs {
		fmt.Fprintf(&in, ">%d\n%s\n", i+1, s)
	}

	bin := c.bin
	if bin == "" {
		bin = "clustalo"
	}
	cmd := exec.Command(bin, "-i", "-", "--force", "--outfmt=clustal", "-o", out.Name())
	cmd.Stdin = &in
	if output, err := cmd.CombinedOutput(); err != nil {
		return alignment{}, fmt.Errorf("failed to execute clustalo: %v: %s", err, string(output))
	}

	f, err := os.Open(out.Name())
	if err != nil {
		return alignment{}, err
	}
	defer f.Close()

	rows := map[string]string{}
	var order []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "CLUSTAL") || strings.TrimSpace(line) == "" {
			continue
		}
		if line[0] == ' ' || line[0] == '*' {
			continue // conservation line
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if _, seen := rows[fields[0]]; !seen {
			order = append(order, fields[0])
		}
		rows[fields[0]] += fields[1]
	}
	if err := scanner.Err(); err != nil {
		return alignment{}, err
	}
	if len(order) == 0 {
		return alignment{}, fmt.Errorf("clustalo produced no alignment rows")
	}

	a := alignment{}
	for _, name := range order {
		a.rows = append(a.rows, strings.ToUpper(rows[name]))
	}
	return a, nil
}

// width returns the column count of the alignment.
func (a alignment) width() int {
	if len(a.rows) == 0 {
		return 0
	}
	return len(a.rows[0])
}

// consensus builds the dummy-majority consensus: per column the most
// common character when it covers at least 70% of the rows, else 'N'.
// Gap-dominated columns keep the gap so insertions stay visible.
func (a alignment) consensus() string {
	var sb strings.Builder
	for col := 0; col < a.width(); col++ {
		best, bestCount, total := byte('N'), 0, 0
		counts := map[byte]int{}
		for _, row := range a.rows {
			ch := row[col]
			counts[ch]++
			total++
			if counts[ch] > bestCount {
				best, bestCount = ch, counts[ch]
			}
		}
		if total > 0 && float64(bestCount) >= 0.7*float64(total) {
			sb.WriteByte(best)
		} else {
			sb.WriteByte('N')
		}
	}
	return sb.String()
}

// pssm returns per-column counts of the unambiguous bases. Gaps and Ns
// are not counted.
func (a alignment) pssm() []map[byte]int {
	cols := make([]map[byte]int, a.width())
	for col := range cols {
		cols[col] = map[byte]int{}
		for _, row := range a.rows {
			switch ch := row[col]; ch {
			case 'A', 'C', 'G', 'T':
				cols[col][ch]++
			}
		}
	}
	return cols
}
