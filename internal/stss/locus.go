package stss

import (
	"fmt"
	"sort"
	"strings"
)

// featureSource provides annotated records for contigs. The production
// implementation fetches and caches GenBank files through the NCBI
// E-utilities; tests substitute in-memory records.
type featureSource interface {
	// Record loads the annotated record for one contig accession.
	Record(acc string) (*Record, error)

	// Assembly lists the contig accessions of the assembly containing
	// acc, used when the whole genome is scanned for cas genes.
	Assembly(acc string) ([]string, error)
}

// casScan is the raw outcome of scanning features for Cas proteins:
// the identified protein labels, the subtype tally they contribute,
// and the net upstream/downstream placement relative to the array.
type casScan struct {
	proteins []string
	tally    []string
	upDown   int
}

// queuedFeature is a coding feature held for the homology batch.
type queuedFeature struct {
	query  homologyQuery
	start  int
	pseudo bool
}

// scanFeatures walks the coding features whose start falls inside the
// window around alignPos (the whole record when distance is 0),
// identifies Cas proteins by product text, and sends the remainder
// plus all hypothetical proteins through the homology search in one
// batch. upDown counts +1 for each distinct Cas protein upstream of
// alignPos and -1 downstream.
func scanFeatures(rec *Record, alignPos, distance int, search homologySearcher) (casScan, error) {
	up, down := 1, len(rec.Seq)
	if distance > 0 {
		up = max(1, alignPos-distance)
		down = min(alignPos+distance, len(rec.Seq))
	}

	var scan casScan
	var batch []queuedFeature
	seen := map[string]bool{}

	record := func(name string, start int, pseudo bool) {
		if pseudo {
			name += " (pseudo)"
		}
		if distance == 0 {
			name += fmt.Sprintf(" (in %s)", rec.Accession)
		}
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		scan.proteins = append(scan.proteins, name)
		if start < alignPos {
			scan.upDown++
		} else {
			scan.upDown--
		}
	}

	for _, f := range rec.Features {
		if f.Type != "CDS" || f.Start < up || f.Start > down || f.Product == "" {
			continue
		}

		id := f.ProteinID
		if id == "" {
			id = f.LocusTag
		}
		if id == "" {
			id = "UNKNOWN"
		}

		if name, types, ok := matchCasProtein(f.Product); ok && f.Product != "hypothetical protein" {
			scan.tally = append(scan.tally, upweightTypes(f.Product, types)...)
			scan.tally = append(scan.tally, types...)
			record(name, f.Start, f.Pseudo)
			continue
		}

		aa := f.Translation
		if aa == "" {
			aa = translateToStop(rec.Extract(f))
		}
		if aa == "" && f.ProteinID == "" {
			continue
		}
		batch = append(batch, queuedFeature{
			query:  homologyQuery{Name: id, Acc: f.ProteinID, Seq: aa},
			start:  f.Start,
			pseudo: f.Pseudo,
		})
	}

	if len(batch) == 0 || search == nil {
		return scan, nil
	}

	queries := make([]homologyQuery, len(batch))
	for i, q := range batch {
		queries[i] = q.query
	}
	hits, err := search.Search(queries)
	if err != nil {
		return scan, fmt.Errorf("homology search: %w", err)
	}
	for _, q := range batch {
		label, ok := hits[q.query.Name]
		if !ok {
			continue
		}
		name, types, ok := matchCasProtein(label)
		if !ok {
			continue
		}
		scan.tally = append(scan.tally, types...)
		record(name, q.start, q.pseudo)
	}
	return scan, nil
}

// typeCheck tallies subtype votes and renders the call. All subtypes
// tied at the highest count are candidates: one resolves cleanly, two
// or three are joined with "or", and more than three collapse to "?".
func typeCheck(tally []string) (string, []string) {
	if len(tally) == 0 {
		return "?", nil
	}

	counts := map[string]int{}
	best := 0
	for _, t := range tally {
		counts[t]++
		if counts[t] > best {
			best = counts[t]
		}
	}
	var candidates []string
	for t, n := range counts {
		if n == best {
			candidates = append(candidates, t)
		}
	}
	sort.Strings(candidates)

	switch len(candidates) {
	case 1:
		return "Type " + candidates[0], candidates
	case 2:
		return fmt.Sprintf("Type %s, or %s", candidates[0], candidates[1]), candidates
	case 3:
		return fmt.Sprintf("Type %s, %s, or %s", candidates[0], candidates[1], candidates[2]), candidates
	default:
		return "?", candidates
	}
}

// completenessCheck reports the complement members of a cleanly
// resolved subtype with no observed match. An unresolved call gives
// "Undetermined" when proteins were seen and "N/A" when none were.
func completenessCheck(candidates, proteins []string) string {
	if len(candidates) != 1 {
		if len(proteins) == 0 {
			return "N/A"
		}
		return "Undetermined"
	}
	complement, ok := crisprTypes[candidates[0]]
	if !ok {
		return "N/A"
	}

	var missing []string
	for _, member := range complement {
		found := false
		for _, protein := range proteins {
			// the first word strips pseudo and location tags
			observed := strings.Fields(protein)[0]
			for _, alt := range member {
				if observed == alt {
					found = true
				}
			}
		}
		if !found {
			missing = append(missing, member[0])
		}
	}
	if len(missing) == 0 {
		return "Complete"
	}
	return "Proteins missing: " + strings.Join(missing, ", ")
}

// withSynonyms decorates identified proteins with their common
// alternate names, e.g. "Cas9" reports as "Cas9 (Csn1)".
func withSynonyms(proteins []string) []string {
	out := make([]string, len(proteins))
	for i, protein := range proteins {
		name := strings.Fields(protein)[0]
		if alt, ok := casSynonyms[name]; ok {
			out[i] = protein + fmt.Sprintf(" (%s)", alt)
		} else {
			out[i] = protein
		}
	}
	return out
}

// presumedIIC applies the Type II-C confirmation rule: a call
// ambiguous among the II subtypes downgrades to "Presumed Type II-C"
// unless Csn2 or Cas4 was observed, since either protein would have
// voted the locus into II-A or II-B.
func presumedIIC(call string, candidates, proteins []string) string {
	hasIIC, onlyII := false, true
	for _, c := range candidates {
		if c == "II-C" {
			hasIIC = true
		}
		if c != "II-A" && c != "II-B" && c != "II-C" {
			onlyII = false
		}
	}
	if !hasIIC || !onlyII || len(candidates) < 2 {
		return call
	}
	for _, protein := range proteins {
		name := strings.Fields(protein)[0]
		if name == "Csn2" || name == "Cas4" {
			return call
		}
	}
	return "Presumed Type II-C"
}

// Classification is the protein-side verdict for one locus.
type Classification struct {
	// TypeProteins is the subtype call from the protein complement
	TypeProteins string

	// Candidates are the subtypes tied at the top of the tally
	Candidates []string

	// Completeness is "Complete", "Proteins missing: ...",
	// "Undetermined", or "N/A"
	Completeness string

	// Proteins are the identified Cas proteins with synonym notes
	Proteins []string

	// UpDown is positive when cas genes sit mostly upstream
	UpDown int
}

// locusClassifier runs the cas gene analysis with two caches: one per
// locus and, in whole-genome mode, one per assembly so loci sharing an
// assembly reuse a single full scan.
type locusClassifier struct {
	source   featureSource
	search   homologySearcher
	distance int

	cache      map[string]Classification
	assemblies map[string]casScan
	members    map[string]string // contig accession -> assembly cache key
}

func newLocusClassifier(source featureSource, search homologySearcher, distance int) *locusClassifier {
	return &locusClassifier{
		source:     source,
		search:     search,
		distance:   distance,
		cache:      map[string]Classification{},
		assemblies: map[string]casScan{},
		members:    map[string]string{},
	}
}

// Classify determines the subtype, completeness, and protein list for
// the array at alignPos on the given contig. Results are memoized per
// (contig accession, array index).
func (lc *locusClassifier) Classify(contigAcc string, arrayIdx, alignPos int) (Classification, error) {
	key := fmt.Sprintf("%s-%d", contigAcc, arrayIdx)
	if c, ok := lc.cache[key]; ok {
		return c, nil
	}

	var scan casScan
	var err error
	if lc.distance == 0 {
		scan, err = lc.scanAssembly(contigAcc)
	} else {
		var rec *Record
		rec, err = lc.source.Record(contigAcc)
		if err == nil {
			scan, err = scanFeatures(rec, alignPos, lc.distance, lc.search)
		}
	}
	if err != nil {
		return Classification{}, fmt.Errorf("locus %s: %w", key, err)
	}

	call, candidates := typeCheck(scan.tally)
	completeness := completenessCheck(candidates, scan.proteins)
	call = presumedIIC(call, candidates, scan.proteins)

	c := Classification{
		TypeProteins: call,
		Candidates:   candidates,
		Completeness: completeness,
		Proteins:     withSynonyms(scan.proteins),
		UpDown:       scan.upDown,
	}
	lc.cache[key] = c
	return c, nil
}

// scanAssembly scans every contig of the assembly containing acc,
// caching the merged result under the assembly's first accession.
func (lc *locusClassifier) scanAssembly(acc string) (casScan, error) {
	if key, ok := lc.members[acc]; ok {
		return lc.assemblies[key], nil
	}

	accs, err := lc.source.Assembly(acc)
	if err != nil {
		return casScan{}, fmt.Errorf("failed to list assembly contigs for %s: %w", acc, err)
	}
	if len(accs) == 0 {
		accs = []string{acc}
	}

	var merged casScan
	for _, contigAcc := range accs {
		rec, err := lc.source.Record(contigAcc)
		if err != nil {
			return casScan{}, err
		}
		scan, err := scanFeatures(rec, 0, 0, lc.search)
		if err != nil {
			return casScan{}, err
		}
		merged.proteins = append(merged.proteins, scan.proteins...)
		merged.tally = append(merged.tally, scan.tally...)
		merged.upDown += scan.upDown
	}

	key := accs[0]
	lc.assemblies[key] = merged
	for _, contigAcc := range accs {
		lc.members[contigAcc] = key
	}
	return merged, nil
}
