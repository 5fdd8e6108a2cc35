package stss

import "strings"

// targetRegion describes the aligned target of a self-targeting
// spacer: the mismatch annotation and the 9 nt PAM flanks on each side
// of the extended alignment.
type targetRegion struct {
	Annotation string
	PAMUp      string
	PAMDown    string
}

// analyzeTargetRegion realigns the spacer against a padded subsequence
// around the reported hit and extends the ungapped seed to the full
// spacer length. Positions pushed past a contig edge by the extension
// annotate as 'x' instead of fabricated bases. The second return is
// false when no seed alignment exists at the reported position.
func analyzeTargetRegion(aligner spacerAligner, sequence, spacer string, hitPos, direction int) (targetRegion, bool, error) {
	pad := len(spacer) + 10
	lower := max(hitPos-pad, 0)
	upper := min(hitPos+len(spacer)+pad, len(sequence))
	subseq := sequence[lower:upper]
	if direction < 1 {
		// realignment always runs plus-strand against the query
		subseq = revComp(subseq)
	}

	hit, ok, err := aligner.AlignTarget(spacer, subseq)
	if err != nil || !ok {
		return targetRegion{}, false, err
	}

	extLower := hit.qstart - 1
	extUpper := len(spacer) - hit.qend
	sLower := hit.sstart - extLower - 1
	sUpper := hit.send + extUpper

	subject := subseq[max(sLower, 0):min(sUpper, len(subseq))]

	region := targetRegion{
		Annotation: annotateTarget(spacer, subject, sLower),
		PAMUp:      clampSubstr(subseq, sLower-9, sLower),
		PAMDown:    clampSubstr(subseq, sUpper, sUpper+9),
	}
	return region, true, nil
}

// annotateTarget diffs the extended alignment base by base. A clipped
// 5' end (negative sLower) or an exhausted subject on the 3' side
// marks the position with the contig-edge sentinel.
func annotateTarget(spacer, subject string, sLower int) string {
	if strings.EqualFold(subject, spacer) {
		return "Perfect match"
	}
	if len(subject) == len(spacer) {
		return diffSeqs(spacer, subject)
	}

	var sb strings.Builder
	lead := 0
	for p := sLower; p < 0; p++ {
		sb.WriteByte('x')
		lead++
	}
	for i := lead; i < len(spacer); i++ {
		j := i - lead
		if j >= len(subject) {
			sb.WriteByte('x')
			continue
		}
		q := spacer[i] | 0x20
		s := subject[j] | 0x20
		if q != s {
			sb.WriteByte(s)
		} else {
			sb.WriteByte('.')
		}
	}
	return sb.String()
}

func clampSubstr(s string, lo, hi int) string {
	lo = max(lo, 0)
	hi = min(hi, len(s))
	if lo >= hi {
		return ""
	}
	return s[lo:hi]
}

// pamRepeatCollision reports whether a PAM flank is really a repeat
// remnant: the downstream flank matching the start of the consensus
// repeat, or the upstream flank matching its end, in at least 8 of 9
// positions. Such a spacer is a repeat misparse, not a self target.
func pamRepeatCollision(pamUp, pamDown, consensus string) bool {
	if len(consensus) < 9 {
		return false
	}
	return flankMatches(pamDown, consensus[:9]) >= 8 ||
		flankMatches(pamUp, consensus[len(consensus)-9:]) >= 8
}

func flankMatches(pam, repeatEnd string) int {
	matches := 0
	for i := 0; i < len(repeatEnd) && i < len(pam); i++ {
		if pam[i] == repeatEnd[i] {
			matches++
		}
	}
	return matches
}
