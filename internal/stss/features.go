package stss

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/kew222/Self-Targeting-Spacer-Search-tool/internal/entrez"
)

// genbankSource loads annotated records through the E-utilities,
// caching the flat files under dir so loci sharing a contig parse the
// same download.
type genbankSource struct {
	client *entrez.Client
	dir    string
}

func newGenbankSource(client *entrez.Client, dir string) *genbankSource {
	return &genbankSource{client: client, dir: dir}
}

func (s *genbankSource) path(acc string) string {
	base, _, _ := strings.Cut(acc, ".")
	return filepath.Join(s.dir, base+".gb")
}

// Record returns the cached record for acc, downloading it first when
// needed. A cached file that fails to parse is replaced once before
// giving up, since interrupted downloads leave truncated files behind.
func (s *genbankSource) Record(acc string) (*Record, error) {
	path := s.path(acc)
	if _, err := os.Stat(path); err == nil {
		rec, err := ReadGenBank(path)
		if err == nil {
			return rec, nil
		}
		log.Warn("cached genbank file is unreadable, redownloading", "acc", acc, "err", err)
		os.Remove(path)
	}

	if err := s.download(acc); err != nil {
		return nil, err
	}
	return ReadGenBank(path)
}

func (s *genbankSource) download(acc string) error {
	text, err := s.client.FetchGenBank(acc)
	if err != nil {
		return fmt.Errorf("failed to download genbank record %s: %w", acc, err)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(s.path(acc), []byte(text), 0644)
}

// Assembly resolves acc to its assembly and lists every contig
// accession of that assembly.
func (s *genbankSource) Assembly(acc string) ([]string, error) {
	ids, err := s.client.Search("nucleotide", acc, 10)
	if err != nil {
		return nil, err
	}
	assemblies, err := s.client.Link("nuccore", "assembly", ids)
	if err != nil {
		return nil, err
	}
	contigs, err := s.client.Link("assembly", "nuccore", assemblies)
	if err != nil {
		return nil, err
	}
	return s.client.Accessions("nucleotide", contigs)
}

// noSelfTarget is the verdict when the target contig has no usable
// annotation.
var noSelfTarget = []SelfTarget{{ID: "----No genbank file", Product: "skipped----"}}

// findSpacerTarget locates pos among the features of rec: the
// containing feature when one covers pos, the two neighbors when pos
// falls between features, and an edge sentinel in place of a neighbor
// that runs off the contig. Hypothetical containing features are
// renamed through the homology search when one is available.
func findSpacerTarget(rec *Record, pos int, search homologySearcher) []SelfTarget {
	if rec == nil {
		return noSelfTarget
	}

	var lagging *SelfTarget
	var last SelfTarget
	seen := false
	for _, f := range rec.Features {
		if f.Type == "gene" || f.Type == "source" {
			continue
		}
		id, product := f.Label()
		target := SelfTarget{ID: id, Product: product}

		switch {
		case f.Start <= pos && pos <= f.End:
			return []SelfTarget{labelSelfTarget(target, f, search)}
		case pos < f.Start && lagging == nil:
			return []SelfTarget{{ID: "upstream contig edge"}, target}
		case pos < f.Start:
			return []SelfTarget{target, *lagging}
		}
		lagging = &target
		last, seen = target, true
	}
	if seen {
		return []SelfTarget{last, {ID: "downstream contig edge"}}
	}
	return nil
}

// labelSelfTarget swaps a bare "hypothetical protein" product for its
// best conserved-domain labels when the homology backend can name it.
func labelSelfTarget(t SelfTarget, f Feature, search homologySearcher) SelfTarget {
	if t.Product != "hypothetical protein" || search == nil || f.ProteinID == "" {
		return t
	}
	hits, err := search.Search([]homologyQuery{{Name: f.ProteinID, Acc: f.ProteinID, Seq: f.Translation}})
	if err != nil {
		log.Debug("homology lookup for target failed", "protein", f.ProteinID, "err", err)
		return t
	}
	if label, ok := hits[f.ProteinID]; ok {
		t.Product = label + " (CDD homology search)"
	}
	return t
}

// selfTargetLabel renders a target verdict for the report.
func selfTargetLabel(targets []SelfTarget) string {
	join := func(t SelfTarget) string {
		if t.Product == "" {
			return t.ID
		}
		return t.ID + ", " + t.Product
	}
	switch len(targets) {
	case 0:
		return "No features in DNA"
	case 1:
		return join(targets[0])
	case 2:
		return "Between " + join(targets[0]) + " & " + join(targets[1])
	default:
		return ""
	}
}
