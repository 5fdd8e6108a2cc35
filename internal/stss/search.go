package stss

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/kew222/Self-Targeting-Spacer-Search-tool/config"
)

// islandLocator answers whether a target position sits in a prophage
// island; the production implementation queries PHASTER.
type islandLocator interface {
	Locate(acc string, pos int) (string, error)
}

// locusRecord caches everything about a locus that does not depend on
// which of its spacers is under analysis.
type locusRecord struct {
	species string
	class   Classification
	repeat  repeatMatch
	orient  orientation
}

// RunStats summarizes one search run for the report.
type RunStats struct {
	GenomesAnalyzed int
	GenomesEmpty    int
	GenomesFailed   []string
	MaskedGenomes   []string
	ArraysFound     int
	FalsePositives  int
	SpacersSearched int
	HitsFound       int
}

// RunResult is the outcome of a full search.
type RunResult struct {
	Hits  []Hit
	Stats RunStats
}

// Pipeline runs the self-targeting spacer search across genome units.
// All external collaborators sit behind interfaces so orchestration is
// testable without the tools installed.
type Pipeline struct {
	cfg      *config.Config
	finder   arrayFinder
	aligner  msa
	blast    spacerAligner
	repeats  repeatScanner
	homology homologySearcher
	features featureSource
	islands  islandLocator

	classifier *locusClassifier
	tmpDir     string
	loci       map[string]locusRecord
}

// NewPipeline assembles a pipeline around the given collaborators.
func NewPipeline(cfg *config.Config, finder arrayFinder, aligner msa, blast spacerAligner,
	repeats repeatScanner, homology homologySearcher, features featureSource,
	islands islandLocator, tmpDir string) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		finder:     finder,
		aligner:    aligner,
		blast:      blast,
		repeats:    repeats,
		homology:   homology,
		features:   features,
		islands:    islands,
		classifier: newLocusClassifier(features, homology, cfg.Locus.CasGeneDistance),
		tmpDir:     tmpDir,
		loci:       map[string]locusRecord{},
	}
}

// Run analyzes every genome unit and collects the confirmed
// self-targeting spacers. A genome that fails keeps the run going; the
// failure is recorded in the stats instead.
func (p *Pipeline) Run(units []*GenomeUnit) (*RunResult, error) {
	result := &RunResult{}
	for _, unit := range units {
		hits, err := p.searchGenome(unit, &result.Stats)
		if err != nil {
			log.Error("genome analysis failed", "acc", unit.Accession, "err", err)
			result.Stats.GenomesFailed = append(result.Stats.GenomesFailed, unit.Accession)
			continue
		}
		result.Stats.GenomesAnalyzed++
		result.Hits = append(result.Hits, hits...)
	}
	result.Stats.HitsFound = len(result.Hits)
	if len(result.Hits) == 0 {
		log.Info("no self-targeting spacers found")
	} else {
		log.Info("search finished", "self_targeting_spacers", len(result.Hits))
	}
	return result, nil
}

func (p *Pipeline) searchGenome(unit *GenomeUnit, stats *RunStats) ([]Hit, error) {
	masked, err := MaskGenome(unit)
	if err != nil {
		return nil, err
	}
	if masked {
		stats.MaskedGenomes = append(stats.MaskedGenomes, unit.Accession)
	}

	reportPath := filepath.Join(p.tmpDir, "crt_report.txt")
	arrays, empty, err := findArrays(p.finder, unit, reportPath)
	if err != nil {
		return nil, err
	}
	if empty || len(arrays) == 0 {
		stats.GenomesEmpty++
		return nil, nil
	}
	stats.ArraysFound += len(arrays)

	for i := range arrays {
		if _, err := correctRegister(&arrays[i], p.aligner, p.cfg.Array.MinSpacerLength); err != nil {
			log.Warn("register correction failed, using array as reported",
				"acc", unit.Accession, "array", arrays[i].Index, "err", err)
		}
	}
	p.screenArrays(unit.Accession, arrays, stats)

	queryPath := filepath.Join(p.tmpDir, "spacer_queries.fa")
	queries, err := writeSpacerQueries(queryPath, arrays)
	if err != nil {
		return nil, err
	}
	if queries == 0 {
		return nil, nil
	}
	stats.SpacersSearched += queries

	blastHits, err := p.blast.SearchSpacers(queryPath, unit.Path, p.cfg.Filter.EValueLimit)
	if err != nil {
		return nil, err
	}

	offsets := ContigOffsets(unit.Contigs)
	byIndex := map[int]*Array{}
	for i := range arrays {
		byIndex[arrays[i].Index] = &arrays[i]
	}

	var hits []Hit
	for _, bh := range blastHits {
		crispr, spacerIdx, err := parseSpacerQueryName(bh.query)
		if err != nil {
			continue
		}
		array, ok := byIndex[crispr]
		if !ok || array.FalsePositive || spacerIdx < 1 || spacerIdx > len(array.Spacers) {
			continue
		}

		targetContig := p.contigIndex(unit, bh.subject)
		if targetContig < 0 {
			continue
		}
		absTarget := offsets[targetContig] + bh.sstart

		if p.insideAnyArray(arrays, absTarget) {
			continue
		}

		hit, ok, err := p.analyzeHit(unit, array, spacerIdx, bh, targetContig, offsets)
		if err != nil {
			log.Warn("skipping self-target candidate", "acc", unit.Accession,
				"array", crispr, "spacer", spacerIdx, "err", err)
			continue
		}
		if ok {
			hits = append(hits, hit)
		}
	}
	return hits, nil
}

// screenArrays marks arrays whose spacer lengths fail the plausibility
// screen and tallies every array excluded from the search.
func (p *Pipeline) screenArrays(acc string, arrays []Array, stats *RunStats) {
	for i := range arrays {
		a := &arrays[i]
		if !a.FalsePositive && !plausibleSpacers(a, p.cfg.Filter.PercentReject) {
			a.FalsePositive = true
		}
		if a.FalsePositive {
			stats.FalsePositives++
			log.Warn("array rejected as a likely false positive",
				"acc", acc, "array", a.Index, "spacers", len(a.Spacers))
		}
	}
}

// insideAnyArray applies the locus exclusion: a target inside any
// array, padded on both sides, is the spacer matching itself.
func (p *Pipeline) insideAnyArray(arrays []Array, absPos int) bool {
	for i := range arrays {
		if arrays[i].Contains(absPos, p.cfg.Filter.PadLocus, 0) {
			return true
		}
	}
	return false
}

// contigIndex maps a BLAST subject id back to the contig it names.
func (p *Pipeline) contigIndex(unit *GenomeUnit, subject string) int {
	acc := subject
	if _, contig, found := strings.Cut(subject, "|"); found {
		acc = contig
	}
	if i := unit.ContigIndex(acc); i >= 0 {
		return i
	}
	// single-contig genomes may label the subject differently
	if len(unit.Contigs) == 1 {
		return 0
	}
	return -1
}

func (p *Pipeline) analyzeHit(unit *GenomeUnit, array *Array, spacerIdx int, bh blastHit,
	targetContig int, offsets []int) (Hit, bool, error) {

	spacer := array.Spacers[spacerIdx-1]
	log.Info("analyzing self-targeting spacer", "acc", unit.Accession,
		"array", array.Index, "spacer", spacerIdx)

	locusContig, locusRel := LocateContig(spacer.Pos, unit.Contigs)
	if locusContig < 0 {
		return Hit{}, false, fmt.Errorf("spacer position %d outside all contigs", spacer.Pos)
	}
	locusAcc := unit.Contigs[locusContig].Accession
	targetAcc := unit.Contigs[targetContig].Accession

	key := fmt.Sprintf("%s-%d", locusAcc, array.Index)
	locus, err := p.locus(locusAcc, array.Index, locusRel)
	if err != nil {
		return Hit{}, false, err
	}

	// consensus repeat and flanking mutations are per spacer
	consensus, err := buildRepeatConsensus(array, spacerIdx, p.aligner)
	mutations := consensus.Mutations()
	if err != nil {
		log.Warn("repeat consensus unavailable", "acc", locusAcc, "array", array.Index, "err", err)
		consensus.Seq = array.Repeats[0]
		mutations = "Error in repeat, not analyzed"
	}

	if locus, err = p.resolveLocusOrientation(key, consensus.Seq); err != nil {
		log.Warn("repeat family scan failed, leaving array orientation unresolved",
			"acc", locusAcc, "array", array.Index, "err", err)
		locus = p.loci[key]
		locus.orient = orientation{Verdict: "Assumed forward, orientation unknown"}
	}

	targetSeq := unit.Contigs[targetContig].Seq
	region, ok, err := analyzeTargetRegion(p.blast, targetSeq, spacer.Seq, bh.sstart, bh.direction())
	if err != nil {
		return Hit{}, false, err
	}
	if !ok {
		return Hit{}, false, nil
	}
	if pamRepeatCollision(region.PAMUp, region.PAMDown, consensus.Seq) {
		log.Info("candidate rejected, PAM flank matches the consensus repeat",
			"acc", unit.Accession, "array", array.Index, "spacer", spacerIdx)
		return Hit{}, false, nil
	}

	// translate both positions back to original per-contig coordinates
	targetPos := CorrectForNs(bh.sstart, unit.Masked, offsets[targetContig])
	locusPos := CorrectForNs(locusRel, unit.Masked, offsets[locusContig])

	var targets []SelfTarget
	if rec, err := p.features.Record(targetAcc); err != nil {
		log.Warn("no annotation for target contig", "acc", targetAcc, "err", err)
		targets = noSelfTarget
	} else {
		targets = findSpacerTarget(rec, targetPos, p.homology)
	}

	hit := Hit{
		AssemblyUID:     unit.Accession,
		TargetAcc:       targetAcc,
		LocusAcc:        locusAcc,
		Species:         locus.species,
		TypeProteins:    locus.class.TypeProteins,
		TypeRepeat:      locus.repeat.Label,
		Completeness:    locus.class.Completeness,
		Proteins:        locus.class.Proteins,
		ArrayIndex:      array.Index,
		SpacerIndex:     spacerIdx,
		TargetPos:       targetPos,
		LocusPos:        locusPos,
		SpacerSeq:       spacer.Seq,
		PAMUp:           region.PAMUp,
		TargetSeq:       region.Annotation,
		PAMDown:         region.PAMDown,
		ConsensusRepeat: consensus.Seq,
		RepeatMutations: mutations,
		Targets:         targets,
		PhasterIsland:   "N/A",
	}
	applyOrientation(&hit, locus.orient)

	if p.cfg.SkipPHASTER || p.islands == nil {
		hit.PhasterIsland = "Skipped"
	} else if island, err := p.islands.Locate(targetAcc, targetPos); err != nil {
		log.Warn("island analysis failed", "acc", targetAcc, "err", err)
	} else {
		hit.PhasterIsland = island
	}
	return hit, true, nil
}

// locus computes (or recalls) the cached per-locus record: species,
// classification, repeat family, and orientation.
func (p *Pipeline) locus(locusAcc string, arrayIdx, alignPos int) (locusRecord, error) {
	key := fmt.Sprintf("%s-%d", locusAcc, arrayIdx)
	if rec, ok := p.loci[key]; ok {
		return rec, nil
	}

	var record locusRecord
	class, err := p.classifier.Classify(locusAcc, arrayIdx, alignPos)
	if err != nil {
		return record, err
	}
	record.class = class

	if gb, err := p.features.Record(locusAcc); err == nil {
		record.species = gb.Organism
		if record.species == "" {
			record.species = gb.Definition
		}
	} else {
		record.species = "Missing genbank formatted data"
	}

	p.loci[key] = record
	return record, nil
}

// resolveLocusOrientation finishes a locus record once the consensus
// repeat is known, running the repeat family scan and fixing the
// array direction. Reused for every spacer of the locus.
func (p *Pipeline) resolveLocusOrientation(key, consensusRepeat string) (locusRecord, error) {
	rec, ok := p.loci[key]
	if !ok {
		return rec, fmt.Errorf("locus %s not classified", key)
	}
	if rec.orient.Verdict != "" {
		return rec, nil
	}

	match, err := p.repeats.Scan(consensusRepeat)
	if err != nil {
		return rec, err
	}
	rec.repeat = match
	rec.orient = resolveOrientation(match, rec.class)
	p.loci[key] = rec
	return rec, nil
}

// WriteSearchParameters records the run configuration next to the
// results.
func WriteSearchParameters(path string, cfg *config.Config) error {
	var sb strings.Builder
	if cfg.Source.Search != "" {
		fmt.Fprintf(&sb, "Searched NCBI for '%s' (limit %d genomes).\n", cfg.Source.Search, cfg.Source.Limit)
	}
	if cfg.Source.Dir != "" {
		fmt.Fprintf(&sb, "Analyzed provided genomes from %s.\n", cfg.Source.Dir)
	}
	fmt.Fprintf(&sb, "BLAST E-value limit: %g\n", cfg.Filter.EValueLimit)
	if cfg.Filter.PadLocus > 0 {
		fmt.Fprintf(&sb, "Searching at least %d nts away from ends of CRISPR loci.\n", cfg.Filter.PadLocus)
	}
	fmt.Fprintf(&sb, "Array finder: %d+ repeats, repeat length %d-%d, spacer length %d-%d.\n",
		cfg.Array.MinRepeats, cfg.Array.MinRepeatLength, cfg.Array.MaxRepeatLength,
		cfg.Array.MinSpacerLength, cfg.Array.MaxSpacerLength)
	if cfg.Locus.CasGeneDistance == 0 {
		sb.WriteString("Cas gene search: whole genome.\n")
	} else {
		fmt.Fprintf(&sb, "Cas gene search window: %d nts around each array.\n", cfg.Locus.CasGeneDistance)
	}
	if cfg.SkipPHASTER {
		sb.WriteString("PHASTER analysis skipped.\n")
	}
	return os.WriteFile(path, []byte(sb.String()), 0644)
}
