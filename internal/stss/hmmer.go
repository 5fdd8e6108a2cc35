package stss

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// repeatMatch is the result of checking a consensus repeat against the
// repeat family models.
type repeatMatch struct {
	// Group is the best-matching model name without the reversed marker
	Group string

	// Direction is positive when the array and model run the same way,
	// negative when the repeat matched the reversed model, zero when
	// nothing matched
	Direction int

	// Label is the reportable family call, "Repeat not recognized"
	// when nothing matched
	Label string

	// Types are the candidate subtypes the family implies
	Types []string
}

// repeatScanner finds the repeat family of a consensus repeat.
type repeatScanner interface {
	Scan(consensusRepeat string) (repeatMatch, error)
}

// nhmmscanExec scans a repeat against a pressed nhmmer model database.
type nhmmscanExec struct {
	db  string
	dir string
}

// Scan writes the repeat to a query FASTA and parses the hit table of
// nhmmscan's human-readable output.
func (n nhmmscanExec) Scan(consensusRepeat string) (repeatMatch, error) {
	query := filepath.Join(n.dir, "consensus_repeat.fa")
	contents := fmt.Sprintf(">consensus_repeat\n%s\n", consensusRepeat)
	if err := os.WriteFile(query, []byte(contents), 0644); err != nil {
		return repeatMatch{}, fmt.Errorf("failed to write repeat query: %w", err)
	}

	cmd := exec.Command("nhmmscan", "-E", "1e-6", "--noali", n.db, query)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return repeatMatch{}, fmt.Errorf("failed to execute nhmmscan against %s: %w: %s", n.db, err, stderr.String())
	}
	if stderr.Len() > 0 {
		return repeatMatch{}, fmt.Errorf("nhmmscan against %s: %s", n.db, stderr.String())
	}
	return parseRepeatScan(string(output)), nil
}

var hitTableHeader = regexp.MustCompile(`\s+E-value\s+score\s+bias`)

// parseRepeatScan takes the lowest e-value row of the first hit table
// in nhmmscan output. The model coordinates on each row give the match
// direction; a model name ending in R describes the reversed repeat.
func parseRepeatScan(output string) repeatMatch {
	match := repeatMatch{Label: "Repeat not recognized"}
	lines := strings.Split(output, "\n")

	start := -1
	for i, line := range lines {
		if hitTableHeader.MatchString(line) {
			start = i + 2 // skip the rule line under the labels
			break
		}
	}
	if start < 0 {
		return match
	}

	best := 1.0
	for _, line := range lines[start:] {
		fields := strings.Fields(line)
		if len(fields) < 6 {
			break
		}
		eValue, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			break
		}
		if eValue >= best {
			continue
		}
		from, err1 := strconv.Atoi(fields[4])
		to, err2 := strconv.Atoi(fields[5])
		if err1 != nil || err2 != nil {
			break
		}

		best = eValue
		match.Group = strings.TrimSuffix(fields[3], "R")
		match.Direction = to - from
		if strings.HasSuffix(fields[3], "R") {
			match.Direction = -match.Direction
		}
		match.Types = repeatFamilyTypes[match.Group]
		match.Label = familyLabel(match.Types, match.Group)
	}
	return match
}

// familyLabel renders candidate subtypes as one call, e.g.
// "Type I-E (group I-E)" or "Type II-A, II-B, or II-C (group II-C)".
func familyLabel(types []string, group string) string {
	switch len(types) {
	case 0:
		return "Repeat not recognized"
	case 1:
		return fmt.Sprintf("Type %s (group %s)", types[0], group)
	case 2:
		return fmt.Sprintf("Type %s or %s (group %s)", types[0], types[1], group)
	default:
		head := strings.Join(types[:len(types)-1], ", ")
		return fmt.Sprintf("Type %s, or %s (group %s)", head, types[len(types)-1], group)
	}
}

// homologyQuery is one unidentified protein sent to a homology search
// backend. Name keys the result; Seq feeds the local profile search
// and Acc the remote conserved-domain search.
type homologyQuery struct {
	Name string
	Acc  string
	Seq  string
}

// homologySearcher reclassifies unidentified proteins. The two
// backends are a local hmmscan over translated sequence and the remote
// NCBI conserved-domain search over protein accessions.
type homologySearcher interface {
	Search(queries []homologyQuery) (map[string]string, error)
}

// hmmscanExec batches queries through hmmscan against a pressed Cas
// protein profile database.
type hmmscanExec struct {
	db  string
	dir string
}

func (h hmmscanExec) Search(queries []homologyQuery) (map[string]string, error) {
	if len(queries) == 0 {
		return nil, nil
	}

	queryPath := filepath.Join(h.dir, "cas_search.fa")
	var fasta strings.Builder
	for _, q := range queries {
		fmt.Fprintf(&fasta, ">%s\n%s\n", q.Name, q.Seq)
	}
	if err := os.WriteFile(queryPath, []byte(fasta.String()), 0644); err != nil {
		return nil, fmt.Errorf("failed to write protein queries: %w", err)
	}

	tblPath := filepath.Join(h.dir, "hmm_results.txt")
	cmd := exec.Command("hmmscan", "-E", "1e-6", "--tblout", tblPath, h.db, queryPath)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if _, err := cmd.Output(); err != nil {
		return nil, fmt.Errorf("failed to execute hmmscan against %s: %w: %s", h.db, err, stderr.String())
	}
	if stderr.Len() > 0 {
		return nil, fmt.Errorf("hmmscan against %s: %s", h.db, stderr.String())
	}

	tbl, err := os.Open(tblPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read hmmscan table: %w", err)
	}
	defer tbl.Close()
	return parseHMMTable(tbl), nil
}

// parseHMMTable maps each query to its best profile hit. Rows are
// sorted by e-value, so the first row seen for a query wins.
func parseHMMTable(r io.Reader) map[string]string {
	hits := map[string]string{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		if _, seen := hits[fields[2]]; !seen {
			hits[fields[2]] = fields[0]
		}
	}
	return hits
}
