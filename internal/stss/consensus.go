package stss

import (
	"fmt"
	"math"
	"strings"
)

// plausible is the array plausibility check: every spacer must use the
// accepted alphabet and every spacer length must stay within
// average * (1 +/- percentReject/100). A failing array is a likely
// false positive from the array finder.
func plausible(spacers []string, percentReject int) bool {
	if len(spacers) == 0 {
		return false
	}
	sum := 0
	for _, s := range spacers {
		if !validDNA(s) {
			return false
		}
		sum += len(s)
	}
	avg := float64(sum) / float64(len(spacers))
	lower := avg * (1 - float64(percentReject)/100)
	upper := avg * (1 + float64(percentReject)/100)
	for _, s := range spacers {
		if float64(len(s)) < lower || float64(len(s)) > upper {
			return false
		}
	}
	return true
}

// plausibleSpacers runs the spacer length screen over one array.
func plausibleSpacers(a *Array, percentReject int) bool {
	seqs := make([]string, len(a.Spacers))
	for i, sp := range a.Spacers {
		seqs[i] = sp.Seq
	}
	return plausible(seqs, percentReject)
}

// registerShift is the number of bases that belong to the flanking
// repeats but were reported as spacer sequence by the array finder, at
// the spacer start (forward) and end (backward).
type registerShift struct {
	forward  int
	backward int
}

// zero reports whether no correction is needed.
func (r registerShift) zero() bool { return r.forward == 0 && r.backward == 0 }

// alignable filters sequences down to those an MSA can use: accepted
// alphabet only and longer than 10 bases.
func alignable(seqs []string) []string {
	var out []string
	for _, s := range seqs {
		if validDNA(s) && len(s) > 10 {
			out = append(out, strings.ToUpper(s))
		}
	}
	return out
}

// detectMisregister aligns the spacer set and walks inward from each
// end of the consensus while a single base dominates the column in at
// least ceil(overrep * N) members. Shared edge sequence across spacers
// means the array finder misplaced the repeat boundary there.
//
// overrep is 0.75 with more than 4 spacers and 1.0 otherwise, so small
// arrays with coincidentally similar spacers are not "corrected".
func detectMisregister(spacers []string, aligner msa) (registerShift, error) {
	var shift registerShift
	filtered := alignable(spacers)
	if len(filtered) < 2 {
		return shift, nil
	}

	align, err := aligner.Align(filtered)
	if err != nil {
		return shift, fmt.Errorf("spacer alignment: %w", err)
	}
	pssm := align.pssm()

	overrep := 1.0
	if len(spacers) > 4 {
		overrep = 0.75
	}
	limit := int(math.Ceil(overrep * float64(len(spacers))))

	dominated := func(col int) bool {
		for _, count := range pssm[col] {
			if count >= limit {
				return true
			}
		}
		return false
	}

	width := align.width()
	for col := 0; col < width && dominated(col); col++ {
		shift.forward++
	}
	for col := width - 1; col >= shift.forward && dominated(col); col-- {
		shift.backward++
	}
	return shift, nil
}

// reflow moves the migrate lengths off each spacer onto the
// neighboring repeats and shifts the spacer positions accordingly.
// Applying it with a zero shift is a no-op, so correction is
// idempotent once the edges stop being dominated.
func reflow(a *Array, shift registerShift) {
	if shift.zero() {
		return
	}

	take := func(s string, n int) int {
		if n > len(s) {
			return len(s)
		}
		return n
	}

	repeats := make([]string, len(a.Repeats))
	for i, repeat := range a.Repeats {
		prefix, suffix := "", ""
		if i > 0 && i-1 < len(a.Spacers) {
			prev := a.Spacers[i-1].Seq
			suffix = prev[len(prev)-take(prev, shift.backward):]
		}
		if i < len(a.Spacers) {
			next := a.Spacers[i].Seq
			prefix = next[:take(next, shift.forward)]
		}
		repeats[i] = suffix + repeat + prefix
	}

	spacers := make([]Spacer, len(a.Spacers))
	for i, sp := range a.Spacers {
		f := take(sp.Seq, shift.forward)
		b := take(sp.Seq[f:], shift.backward)
		spacers[i] = Spacer{
			Seq: sp.Seq[f : len(sp.Seq)-b],
			Pos: sp.Pos + f,
		}
	}

	a.Repeats = repeats
	a.Spacers = spacers
}

// correctRegister repairs boundary misplacement on a, then rechecks it:
// when at least 25% of the corrected spacers drop under the minimum
// spacer length the region was likely a direct repeat, not an array,
// and a is marked false positive. Returns the shift that was applied.
func correctRegister(a *Array, aligner msa, minSpacerLength int) (registerShift, error) {
	seqs := make([]string, len(a.Spacers))
	for i, sp := range a.Spacers {
		seqs[i] = sp.Seq
	}

	shift, err := detectMisregister(seqs, aligner)
	if err != nil {
		return shift, err
	}
	reflow(a, shift)

	short := 0
	for _, sp := range a.Spacers {
		if len(sp.Seq) < minSpacerLength {
			short++
		}
	}
	if len(a.Spacers) > 0 && float64(short) >= 0.25*float64(len(a.Spacers)) {
		a.FalsePositive = true
	}
	return shift, nil
}

// repeatConsensus is the consensus repeat of an array plus the
// mutation annotation of the two repeats flanking one spacer.
type repeatConsensus struct {
	// Seq is the dummy-majority consensus repeat; may contain gap
	// characters where an insertion dominates
	Seq string

	// Upstream and Downstream are the per-side symbolic diffs; empty
	// means the repeat matches the consensus perfectly
	Upstream   string
	Downstream string
}

// Mutations renders the flanking diffs as one annotation.
func (rc repeatConsensus) Mutations() string {
	return mutationAnnotation(rc.Upstream, rc.Downstream)
}

// mutationAnnotation combines the upstream and downstream repeat diffs
// into one reportable string.
func mutationAnnotation(upstream, downstream string) string {
	switch {
	case upstream == "" && downstream == "":
		return "None"
	case downstream == "":
		return fmt.Sprintf("Upstream repeat mutated: %s", upstream)
	case upstream == "":
		return fmt.Sprintf("Downstream repeat mutated: %s", downstream)
	default:
		return fmt.Sprintf("Both repeats mutated: Upstream: %s, Downstream: %s", upstream, downstream)
	}
}

// parseMutationAnnotation inverts mutationAnnotation. The second
// return is false for verdicts that carry no diffs to flip.
func parseMutationAnnotation(s string) (upstream, downstream string, ok bool) {
	switch {
	case strings.HasPrefix(s, "Both repeats mutated: Upstream: "):
		rest := strings.TrimPrefix(s, "Both repeats mutated: Upstream: ")
		upstream, downstream, _ = strings.Cut(rest, ", Downstream: ")
		return upstream, downstream, true
	case strings.HasPrefix(s, "Upstream repeat mutated: "):
		return strings.TrimPrefix(s, "Upstream repeat mutated: "), "", true
	case strings.HasPrefix(s, "Downstream repeat mutated: "):
		return "", strings.TrimPrefix(s, "Downstream repeat mutated: "), true
	default:
		return "", "", false
	}
}

// diffRepeat produces the symbolic diff of one aligned repeat against
// the consensus: '.' for a match (or a consensus N), the literal
// uppercase base where either side carries a gap (an insertion), and
// the lowercase base for a substitution. A row identical to the
// consensus yields the empty string.
func diffRepeat(row, consensus string) string {
	var sb strings.Builder
	perfect := true
	for i := 0; i < len(row) && i < len(consensus); i++ {
		letter, want := row[i], consensus[i]
		switch {
		case letter == want || want == 'N':
			sb.WriteByte('.')
		case want == '-' || letter == '-':
			sb.WriteByte(letter)
			perfect = false
		default:
			sb.WriteByte(letter | 0x20)
			perfect = false
		}
	}
	if perfect {
		return ""
	}
	return sb.String()
}

// buildRepeatConsensus aligns the (corrected) repeats of a and diffs
// the two repeats flanking spacer number spacerIdx (1-based) against
// the consensus. Repeats rejected by the alignability filter shift the
// flanking-row index down, mirroring their absence from the alignment.
func buildRepeatConsensus(a *Array, spacerIdx int, aligner msa) (repeatConsensus, error) {
	var rc repeatConsensus

	hold := spacerIdx
	var filtered []string
	for i, repeat := range a.Repeats {
		if validDNA(repeat) && len(repeat) > 10 {
			filtered = append(filtered, strings.ToUpper(repeat))
		} else if spacerIdx >= i+1 {
			hold--
		}
	}
	if len(filtered) < 2 {
		return rc, fmt.Errorf("not enough alignable repeats (%d)", len(filtered))
	}

	align, err := aligner.Align(filtered)
	if err != nil {
		return rc, fmt.Errorf("repeat alignment: %w", err)
	}
	rc.Seq = align.consensus()

	if hold < 1 || hold >= len(align.rows) {
		return rc, fmt.Errorf("spacer %d has no flanking repeats in the alignment", spacerIdx)
	}
	rc.Upstream = diffRepeat(align.rows[hold-1], rc.Seq)
	rc.Downstream = diffRepeat(align.rows[hold], rc.Seq)
	return rc, nil
}
