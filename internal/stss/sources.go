package stss

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/kew222/Self-Targeting-Spacer-Search-tool/internal/entrez"
)

// wgsAssembly is one fragmented genome: its master record UID and the
// UIDs of every contig.
type wgsAssembly struct {
	master  string
	contigs []string
}

// genomeCatalog is the outcome of genome discovery, split into
// unfragmented genomes and WGS assemblies.
type genomeCatalog struct {
	complete []string
	wgs      []wgsAssembly
	total    int
}

// genomeFetcher discovers genomes matching a search term and
// downloads their sequences into dir.
type genomeFetcher struct {
	client       *entrez.Client
	dir          string
	limit        int
	completeOnly bool
	redownload   bool
	ask          bool
}

// assemblyChunk bounds how many assemblies one elink call expands,
// since the nucleotide links grow quickly.
const assemblyChunk = 10

// downloadBatch is the number of records fetched per efetch call.
const downloadBatch = 5

// Discover searches the genome database for term and classifies every
// linked assembly as complete or fragmented, honoring the genome
// limit and the complete-only filter.
func (f *genomeFetcher) Discover(term string) (*genomeCatalog, error) {
	genomes, err := f.client.Search("genome", term, f.limit)
	if err != nil {
		return nil, fmt.Errorf("genome search %q: %w", term, err)
	}
	assemblies, err := f.client.Link("genome", "assembly", genomes)
	if err != nil {
		return nil, fmt.Errorf("genome search %q: %w", term, err)
	}

	cat := &genomeCatalog{}
	for start := 0; start < len(assemblies); start += assemblyChunk {
		chunk := assemblies[start:min(start+assemblyChunk, len(assemblies))]
		sets, err := f.client.LinkSets("assembly", "nuccore", chunk)
		if err != nil {
			return nil, fmt.Errorf("genome search %q: %w", term, err)
		}
		for _, set := range sets {
			cat.total++
			if len(cat.complete)+len(cat.wgs) >= f.limit {
				continue
			}
			f.classify(cat, set)
		}
	}
	return cat, nil
}

// classify sorts one assembly into the catalog. RefSeq links are
// preferred over INSDC; an assembly with a WGS master, or with more
// than one nucleotide record, counts as fragmented even when no
// master is given.
func (f *genomeFetcher) classify(cat *genomeCatalog, set entrez.LinkSet) {
	ids := set.Links["assembly_nuccore_refseq"]
	if len(ids) == 0 {
		ids = set.Links["assembly_nuccore_insdc"]
	}
	if len(ids) == 0 {
		ids = set.Links["assembly_nuccore"]
	}
	if len(ids) == 0 {
		ids = set.Links["assembly_nuccore_representatives"]
	}
	if len(ids) == 0 {
		return
	}

	masters := set.Links["assembly_nuccore_wgsmaster"]
	if len(masters) == 0 && len(ids) == 1 {
		cat.complete = append(cat.complete, ids[0])
		return
	}
	if f.completeOnly {
		return
	}

	master := ""
	if len(masters) > 0 {
		master = masters[0]
	} else {
		// no master record given; the lowest UID names the assembly
		// so reruns keep stable filenames
		master = ids[0]
		for _, id := range ids[1:] {
			a, err1 := strconv.Atoi(id)
			b, err2 := strconv.Atoi(master)
			if err1 == nil && err2 == nil && a < b {
				master = id
			}
		}
	}
	cat.wgs = append(cat.wgs, wgsAssembly{master: master, contigs: ids})
}

// Download fetches every cataloged genome not already on disk and
// returns the genome units to analyze. WGS contigs are rewritten
// under "master|contig" headers so downstream coordinates can be
// mapped back to their contig.
func (f *genomeFetcher) Download(cat *genomeCatalog) ([]*GenomeUnit, error) {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return nil, err
	}
	if f.ask && cat.total > 100 && !confirm(fmt.Sprintf("About to download %d genomes, continue?", cat.total)) {
		return nil, fmt.Errorf("download declined")
	}

	var units []*GenomeUnit

	for start := 0; start < len(cat.complete); start += downloadBatch {
		batch := cat.complete[start:min(start+downloadBatch, len(cat.complete))]
		log.Info("downloading unfragmented genome records",
			"from", start+1, "to", start+len(batch), "of", len(cat.complete))

		data, err := f.client.FetchFasta("nucleotide", batch)
		if err != nil {
			return nil, fmt.Errorf("failed to download genomes: %w", err)
		}
		for _, record := range splitFastaRecords(data) {
			acc := strings.Fields(strings.TrimPrefix(record, ">"))[0]
			path, fresh, err := f.write(acc, record)
			if err != nil {
				return nil, err
			}
			unit, err := loadGenomeFile(path, false)
			if err != nil {
				return nil, err
			}
			unit.Accession = acc
			if fresh {
				log.Debug("downloaded genome", "acc", acc)
			}
			units = append(units, unit)
		}
	}

	if len(cat.wgs) == 0 {
		return units, nil
	}

	masters := make([]string, len(cat.wgs))
	for i, w := range cat.wgs {
		masters[i] = w.master
	}
	masterAccs, err := f.client.Accessions("nuccore", masters)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve WGS master accessions: %w", err)
	}
	if len(masterAccs) != len(cat.wgs) {
		return nil, fmt.Errorf("resolved %d WGS master accessions for %d assemblies", len(masterAccs), len(cat.wgs))
	}

	for i, w := range cat.wgs {
		acc := masterAccs[i]
		if i%10 == 0 {
			log.Info("downloading fragmented genome records",
				"from", i+1, "to", min(i+10, len(cat.wgs)), "of", len(cat.wgs))
		}

		path := f.path(acc)
		if f.redownload || !exists(path) {
			data, err := f.client.FetchFasta("nucleotide", w.contigs)
			if err != nil {
				return nil, fmt.Errorf("failed to download assembly %s: %w", acc, err)
			}
			var sb strings.Builder
			for _, record := range splitFastaRecords(data) {
				lines := strings.SplitN(record, "\n", 2)
				contigAcc := strings.Fields(strings.TrimPrefix(lines[0], ">"))[0]
				fmt.Fprintf(&sb, ">%s|%s\n", acc, contigAcc)
				if len(lines) > 1 {
					sb.WriteString(strings.ReplaceAll(lines[1], "\n", "") + "\n")
				}
			}
			if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
				return nil, err
			}
		}
		unit, err := loadGenomeFile(path, false)
		if err != nil {
			return nil, err
		}
		unit.Accession = acc
		unit.Complete = false
		units = append(units, unit)
	}
	return units, nil
}

func (f *genomeFetcher) path(acc string) string {
	base, _, _ := strings.Cut(acc, ".")
	return filepath.Join(f.dir, base+".fasta")
}

// write stores one FASTA record unless a prior download already has
// it; the second return reports whether the file is new.
func (f *genomeFetcher) write(acc, record string) (string, bool, error) {
	path := f.path(acc)
	if !f.redownload && exists(path) {
		return path, false, nil
	}
	if !strings.HasSuffix(record, "\n") {
		record += "\n"
	}
	if err := os.WriteFile(path, []byte(record), 0644); err != nil {
		return "", false, err
	}
	return path, true, nil
}

// splitFastaRecords cuts batched efetch output into one string per
// record.
func splitFastaRecords(data string) []string {
	var records []string
	for _, piece := range strings.Split(data, "\n>") {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		if !strings.HasPrefix(piece, ">") {
			piece = ">" + piece
		}
		records = append(records, piece)
	}
	return records
}

// loadGenomeFile reads one FASTA file into a genome unit. The
// accession comes from the first header: the token before '|' for
// rewritten WGS files, the first whitespace token otherwise.
func loadGenomeFile(path string, provided bool) (*GenomeUnit, error) {
	contigs, err := readFasta(path)
	if err != nil {
		return nil, err
	}
	if len(contigs) == 0 {
		return nil, fmt.Errorf("genome file %s has no sequence data", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	scanner := bufio.NewScanner(file)
	acc := ""
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, ">") {
			acc = strings.Fields(strings.TrimPrefix(line, ">"))[0]
			acc, _, _ = strings.Cut(acc, "|")
			break
		}
	}
	file.Close()

	return &GenomeUnit{
		Accession: acc,
		Path:      path,
		Provided:  provided,
		Complete:  len(contigs) == 1,
		Contigs:   contigs,
	}, nil
}

// loadProvidedDir treats every file in dir as one genome to analyze.
func loadProvidedDir(dir string) ([]*GenomeUnit, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read provided directory %s: %w", dir, err)
	}

	var units []*GenomeUnit
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		unit, err := loadGenomeFile(filepath.Join(dir, entry.Name()), true)
		if err != nil {
			log.Warn("skipping unreadable genome file", "file", entry.Name(), "err", err)
			continue
		}
		units = append(units, unit)
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("no usable genome files in %s", dir)
	}
	return units, nil
}

// readTermList reads one search term per line, taking the first
// tab-separated field so grouped lists work as plain lists.
func readTermList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read list file %s: %w", path, err)
	}
	var terms []string
	for _, line := range strings.Split(string(data), "\n") {
		term, _, _ := strings.Cut(line, "\t")
		if term = strings.TrimSpace(term); term != "" && !strings.HasPrefix(term, "#") {
			terms = append(terms, term)
		}
	}
	return terms, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func confirm(prompt string) bool {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Printf("%s (y/n): ", prompt)
		answer, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
	}
}
