package stss

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Feature is one entry of a GenBank feature table with the qualifiers
// the locus scan needs. Start and End are 1-based inclusive genomic
// coordinates covering the whole location, join segments included.
type Feature struct {
	Type        string
	Start       int
	End         int
	Strand      int
	Product     string
	ProteinID   string
	LocusTag    string
	Pseudo      bool
	Translation string
}

// Label names a feature for reporting: protein id with product when
// annotated, locus tag otherwise, the feature type as a last resort.
func (f Feature) Label() (id, product string) {
	switch {
	case f.ProteinID != "":
		return f.ProteinID, f.Product
	case f.LocusTag != "":
		return "locus tag: " + f.LocusTag, f.Type
	default:
		return f.Type, fmt.Sprintf("[%d:%d]", f.Start, f.End)
	}
}

// Record is one parsed GenBank flat-file entry.
type Record struct {
	Accession  string
	Definition string
	Organism   string
	Seq        string
	Features   []Feature
}

// Extract returns the nucleotide sequence of f, reverse complemented
// for minus-strand features.
func (r *Record) Extract(f Feature) string {
	start, end := f.Start, f.End
	if start < 1 {
		start = 1
	}
	if end > len(r.Seq) {
		end = len(r.Seq)
	}
	if start > end {
		return ""
	}
	seq := r.Seq[start-1 : end]
	if f.Strand < 0 {
		seq = revComp(seq)
	}
	return seq
}

// ReadGenBank parses the first record of a GenBank flat file.
func ReadGenBank(path string) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open genbank file %s: %w", path, err)
	}
	defer f.Close()

	rec, err := parseGenBank(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse genbank file %s: %w", path, err)
	}
	return rec, nil
}

func parseGenBank(r io.Reader) (*Record, error) {
	rec := &Record{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)

	const (
		sectionHeader = iota
		sectionFeatures
		sectionOrigin
	)
	section := sectionHeader

	var feat *Feature
	var locBuf string
	var qualifier, qualValue strings.Builder
	var seq strings.Builder

	flushQualifier := func() {
		if feat == nil || qualifier.Len() == 0 {
			return
		}
		applyQualifier(feat, qualifier.String(), strings.Trim(qualValue.String(), `"`))
		qualifier.Reset()
		qualValue.Reset()
	}
	flushFeature := func() {
		flushQualifier()
		if feat != nil && feat.Start > 0 {
			rec.Features = append(rec.Features, *feat)
		}
		feat = nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "FEATURES"):
			section = sectionFeatures
			continue
		case strings.HasPrefix(line, "ORIGIN"):
			flushFeature()
			section = sectionOrigin
			continue
		case line == "//":
			flushFeature()
			rec.Seq = seq.String()
			return rec, scanner.Err()
		}

		switch section {
		case sectionHeader:
			switch {
			case strings.HasPrefix(line, "ACCESSION"):
				fields := strings.Fields(line)
				if len(fields) > 1 {
					rec.Accession = fields[1]
				}
			case strings.HasPrefix(line, "DEFINITION"):
				rec.Definition = strings.TrimSpace(strings.TrimPrefix(line, "DEFINITION"))
			case strings.HasPrefix(line, "  ORGANISM"):
				rec.Organism = strings.TrimSpace(strings.TrimPrefix(line, "  ORGANISM"))
			}

		case sectionFeatures:
			if len(line) < 6 {
				continue
			}
			if line[5] != ' ' {
				// a new feature key starts in column 6
				flushFeature()
				fields := strings.Fields(line)
				if len(fields) < 2 {
					continue
				}
				feat = &Feature{Type: fields[0]}
				locBuf = fields[1]
				if start, end, strand, err := parseLocation(locBuf); err == nil {
					feat.Start, feat.End, feat.Strand = start, end, strand
				}
				continue
			}
			if feat == nil {
				continue
			}
			text := strings.TrimSpace(line)
			if strings.HasPrefix(text, "/") {
				flushQualifier()
				name, value, found := strings.Cut(text[1:], "=")
				qualifier.WriteString(name)
				if found {
					qualValue.WriteString(value)
				}
			} else if qualifier.Len() > 0 {
				// continuation of a wrapped qualifier value
				if qualifier.String() != "translation" {
					qualValue.WriteByte(' ')
				}
				qualValue.WriteString(text)
			} else if feat.Start == 0 {
				// continuation of a wrapped location
				locBuf += text
				if start, end, strand, err := parseLocation(locBuf); err == nil {
					feat.Start, feat.End, feat.Strand = start, end, strand
				}
			}

		case sectionOrigin:
			for _, field := range strings.Fields(line)[1:] {
				seq.WriteString(strings.ToUpper(field))
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("missing record terminator")
}

func applyQualifier(f *Feature, name, value string) {
	switch name {
	case "product":
		f.Product = value
	case "protein_id":
		f.ProteinID = value
	case "locus_tag":
		f.LocusTag = value
	case "pseudo", "pseudogene":
		f.Pseudo = true
	case "translation":
		f.Translation = strings.ReplaceAll(value, " ", "")
	}
}

// parseLocation reduces a GenBank location to its overall bounds and
// strand. join and order locations collapse to min(start)..max(end);
// partial-end markers are dropped.
func parseLocation(loc string) (start, end, strand int, err error) {
	strand = 1
	for {
		switch {
		case strings.HasPrefix(loc, "complement(") && strings.HasSuffix(loc, ")"):
			strand = -strand
			loc = loc[len("complement(") : len(loc)-1]
		case strings.HasPrefix(loc, "join(") && strings.HasSuffix(loc, ")"):
			loc = loc[len("join(") : len(loc)-1]
		case strings.HasPrefix(loc, "order(") && strings.HasSuffix(loc, ")"):
			loc = loc[len("order(") : len(loc)-1]
		default:
			return parseLocationBounds(loc, strand)
		}
	}
}

func parseLocationBounds(loc string, strand int) (int, int, int, error) {
	start, end := 0, 0
	for _, segment := range strings.Split(loc, ",") {
		segment = strings.TrimSpace(segment)
		segment = strings.TrimPrefix(segment, "complement(")
		segment = strings.TrimSuffix(segment, ")")
		clean := strings.NewReplacer("<", "", ">", "").Replace(segment)

		var lo, hi int
		var err error
		if a, b, found := strings.Cut(clean, ".."); found {
			lo, err = strconv.Atoi(a)
			if err == nil {
				hi, err = strconv.Atoi(b)
			}
		} else {
			lo, err = strconv.Atoi(clean)
			hi = lo
		}
		if err != nil {
			return 0, 0, 0, fmt.Errorf("unparseable location %q", loc)
		}
		if start == 0 || lo < start {
			start = lo
		}
		if hi > end {
			end = hi
		}
	}
	if start == 0 {
		return 0, 0, 0, fmt.Errorf("empty location %q", loc)
	}
	return start, end, strand, nil
}
