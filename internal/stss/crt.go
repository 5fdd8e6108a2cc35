package stss

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/kew222/Self-Targeting-Spacer-Search-tool/config"
)

// arrayFinder searches one genome file for CRISPR arrays and writes a
// text report to resultPath.
type arrayFinder interface {
	Find(fastaPath, resultPath string) error
}

// crtExec wraps the CRT CRISPR Recognition Tool, a java jar invoked
// once per genome file.
type crtExec struct {
	// jar is the path to CRT1.2-CLI.jar
	jar string

	conf config.ArrayConfig
}

func (c *crtExec) Find(fastaPath, resultPath string) error {
	args := []string{
		"-cp", c.jar, "crt",
		"-minNR", strconv.Itoa(c.conf.MinRepeats),
		"-minRL", strconv.Itoa(c.conf.MinRepeatLength),
		"-maxRL", strconv.Itoa(c.conf.MaxRepeatLength),
		"-minSL", strconv.Itoa(c.conf.MinSpacerLength),
		"-maxSL", strconv.Itoa(c.conf.MaxSpacerLength),
		fastaPath, resultPath,
	}

	cmd := exec.Command("java", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to execute CRT against %s: %v: %s", fastaPath, err, stderr.String())
	}
	// CRT reports some failures on stderr with a zero exit status
	if stderr.Len() > 0 {
		return fmt.Errorf("CRT error against %s: %s", fastaPath, stderr.String())
	}
	return nil
}

// parseCRTReport reads a CRT text report into arrays. empty is true
// when the finder wrote its "no elements found" marker: the genome was
// searched but holds no arrays. A locus header with no valid
// repeat/spacer rows under it is discarded, not emitted empty.
func parseCRTReport(r io.Reader) (arrays []Array, empty bool, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var cur *Array
	inRows := false
	flush := func() {
		if cur != nil && len(cur.Repeats) > 0 {
			arrays = append(arrays, *cur)
		}
		cur = nil
		inRows = false
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "No CRISPR elements were found.") {
			empty = true
			continue
		}

		fields := strings.Fields(line)
		if len(fields) > 0 && fields[0] == "CRISPR" {
			flush()
			index, convErr := strconv.Atoi(fields[1])
			if convErr != nil {
				return nil, false, fmt.Errorf("malformed CRISPR header %q: %w", line, convErr)
			}
			cur = &Array{Index: index}
			// "CRISPR n Range: a - b"
			if i := strings.Index(line, "Range:"); i >= 0 {
				bounds := strings.Split(line[i+len("Range:"):], "-")
				if len(bounds) == 2 {
					cur.Start, _ = strconv.Atoi(strings.TrimSpace(bounds[0]))
					cur.End, _ = strconv.Atoi(strings.TrimSpace(bounds[1]))
				}
			}
			inRows = true
			continue
		}

		if cur == nil || !inRows {
			continue
		}

		cols := splitCRTRow(line)
		if len(cols) < 2 {
			if len(cur.Repeats) > 0 {
				flush() // separator or summary after the last row
			}
			continue
		}
		pos, convErr := strconv.Atoi(cols[0])
		if convErr != nil {
			continue // POSITION banner or dashes
		}

		repeat := cols[1]
		cur.Repeats = append(cur.Repeats, repeat)
		if len(cols) < 3 || cols[2] == "" || strings.HasPrefix(cols[2], "[") {
			// empty spacer field: this was the trailing repeat
			flush()
			continue
		}
		cur.Spacers = append(cur.Spacers, Spacer{
			Seq: cols[2],
			// line-declared offset plus the repeat's length
			Pos: pos + len(repeat),
		})
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, false, err
	}
	return arrays, empty, nil
}

// splitCRTRow splits a report row on tabs, trimming each column and
// dropping empty ones except in the spacer position, so a trailing
// repeat row keeps its shape.
func splitCRTRow(line string) []string {
	raw := strings.Split(line, "\t")
	var cols []string
	for _, c := range raw {
		c = strings.TrimSpace(c)
		if c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}

// findArrays runs the array finder over a genome file and parses its
// report. The bool result mirrors parseCRTReport's empty flag.
func findArrays(finder arrayFinder, g *GenomeUnit, resultPath string) ([]Array, bool, error) {
	if err := finder.Find(g.Path, resultPath); err != nil {
		return nil, false, err
	}
	f, err := os.Open(resultPath)
	if err != nil {
		return nil, false, err
	}
	defer f.Close()
	return parseCRTReport(f)
}
