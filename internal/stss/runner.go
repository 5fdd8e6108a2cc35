package stss

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/kew222/Self-Targeting-Spacer-Search-tool/config"
	"github.com/kew222/Self-Targeting-Spacer-Search-tool/internal/cdd"
	"github.com/kew222/Self-Targeting-Spacer-Search-tool/internal/entrez"
	"github.com/kew222/Self-Targeting-Spacer-Search-tool/internal/phaster"
)

// The production collaborators must keep satisfying the pipeline
// interfaces they are wired to in NewRunner.
var (
	_ arrayFinder      = (*crtExec)(nil)
	_ msa              = (*clustalOmega)(nil)
	_ spacerAligner    = blastnExec{}
	_ repeatScanner    = nhmmscanExec{}
	_ homologySearcher = hmmscanExec{}
	_ homologySearcher = cddSearcher{}
	_ featureSource    = (*genbankSource)(nil)
	_ islandLocator    = phasterLocator{}
)

// cddSearcher adapts the remote conserved-domain client to the
// homology interface; it can only classify queries that carry a
// protein accession.
type cddSearcher struct {
	client *cdd.Client
}

func (s cddSearcher) Search(queries []homologyQuery) (map[string]string, error) {
	var accs []string
	byAcc := map[string]string{}
	for _, q := range queries {
		if q.Acc != "" {
			accs = append(accs, q.Acc)
			byAcc[q.Acc] = q.Name
		}
	}
	hits, err := s.client.Search(accs)
	if err != nil {
		return nil, err
	}
	results := map[string]string{}
	for acc, label := range hits {
		if name, ok := byAcc[acc]; ok {
			results[name] = label
		}
	}
	return results, nil
}

// phasterLocator backs the island lookup with PHASTER, ensuring a
// GenBank file is on disk for the upload fallback.
type phasterLocator struct {
	client *phaster.Client
	source *genbankSource
}

func (p phasterLocator) Locate(acc string, pos int) (string, error) {
	path := p.source.path(acc)
	if !exists(path) {
		if _, err := p.source.Record(acc); err != nil {
			path = ""
		}
	}
	return p.client.Locate(acc, pos, path)
}

// CheckDependencies verifies the external tools the run needs are on
// PATH. CDD mode searches proteins remotely and does not need hmmscan.
func CheckDependencies(cfg *config.Config) error {
	tools := []string{"clustalo", "blastn", "nhmmscan", "java"}
	if !cfg.Locus.CDD {
		tools = append(tools, "hmmscan")
	}
	var missing []string
	for _, tool := range tools {
		if _, err := exec.LookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required tools not found on PATH: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Runner owns the directories and collaborators of a production run.
type Runner struct {
	cfg      *config.Config
	client   *entrez.Client
	source   *genbankSource
	pipeline *Pipeline
	workDir  string
}

// NewRunner wires the production pipeline: CRT for arrays, Clustal
// Omega for alignments, blastn for the searches, HMMER for repeat and
// protein profiles (or the remote conserved-domain search in CDD
// mode), and PHASTER for island analysis.
func NewRunner(cfg *config.Config, workDir, crtJar string) (*Runner, error) {
	tmpDir := filepath.Join(workDir, "temp")
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return nil, err
	}

	client := entrez.New("")
	source := newGenbankSource(client, filepath.Join(workDir, "GenBank_files"))

	var homology homologySearcher
	if cfg.Locus.CDD {
		homology = cddSearcher{client: cdd.New()}
	} else {
		homology = hmmscanExec{db: cfg.Locus.CasHMMs, dir: tmpDir}
	}

	var islands islandLocator
	if !cfg.SkipPHASTER {
		islands = phasterLocator{
			client: phaster.New(filepath.Join(workDir, "PHASTER_analysis")),
			source: source,
		}
	}

	pipeline := NewPipeline(cfg,
		&crtExec{jar: crtJar, conf: cfg.Array},
		&clustalOmega{bin: "clustalo"},
		blastnExec{dir: tmpDir},
		nhmmscanExec{db: cfg.Locus.RepeatHMMs, dir: tmpDir},
		homology,
		source,
		islands,
		tmpDir,
	)
	return &Runner{
		cfg:      cfg,
		client:   client,
		source:   source,
		pipeline: pipeline,
		workDir:  workDir,
	}, nil
}

// Gather collects the genome units for the configured source: a
// provided directory, an NCBI search term, or a term list file.
func (r *Runner) Gather() ([]*GenomeUnit, error) {
	if r.cfg.Source.Dir != "" {
		return loadProvidedDir(r.cfg.Source.Dir)
	}

	terms := []string{}
	if r.cfg.Source.Search != "" {
		terms = append(terms, r.cfg.Source.Search)
	}
	for _, path := range []string{r.cfg.Source.ListFile, r.cfg.Source.GroupsFile} {
		if path == "" {
			continue
		}
		listed, err := readTermList(path)
		if err != nil {
			return nil, err
		}
		terms = append(terms, listed...)
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("no genome source configured")
	}

	fetcher := &genomeFetcher{
		client:       r.client,
		dir:          filepath.Join(r.workDir, "downloaded_genomes"),
		limit:        r.cfg.Source.Limit,
		completeOnly: r.cfg.Source.CompleteOnly,
		redownload:   r.cfg.Source.Redownload,
		ask:          r.cfg.Source.Ask,
	}

	var units []*GenomeUnit
	seen := map[string]bool{}
	for _, term := range terms {
		cat, err := fetcher.Discover(term)
		if err != nil {
			return nil, err
		}
		log.Info("genome discovery finished", "term", term,
			"complete", len(cat.complete), "fragmented", len(cat.wgs))
		found, err := fetcher.Download(cat)
		if err != nil {
			return nil, err
		}
		for _, unit := range found {
			if !seen[unit.Accession] {
				seen[unit.Accession] = true
				units = append(units, unit)
			}
		}
	}
	return units, nil
}

// Run executes the search end to end and writes the reports.
func (r *Runner) Run() error {
	units, err := r.Gather()
	if err != nil {
		return err
	}
	log.Info("starting self-target search", "genomes", len(units))

	result, err := r.pipeline.Run(units)
	if err != nil {
		return err
	}

	prefix := r.cfg.Prefix
	if err := WriteSearchParameters(filepath.Join(r.workDir, prefix+"search_parameters.txt"), r.cfg); err != nil {
		return err
	}
	if err := ExportResults(filepath.Join(r.workDir, prefix+"Spacer_search_results.txt"), result.Hits); err != nil {
		return err
	}
	return WriteRunNotes(filepath.Join(r.workDir, prefix+"run_notes.txt"), result.Stats)
}
