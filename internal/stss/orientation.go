package stss

// orientation is the array direction verdict and whether the oriented
// fields of a hit must be flipped onto the other strand.
type orientation struct {
	Flip    bool
	Verdict string
}

// resolveOrientation decides the array direction. A repeat family
// match settles it outright. Otherwise the candidate subtypes (from
// the repeat family when it resolves more tightly than the proteins,
// from the proteins when available) each imply an expected side for
// the cas genes; if all candidates agree and the observed cas gene
// placement is known, comparing the two settles the direction.
// Anything less yields an explicit unknown rather than a guess.
func resolveOrientation(repeat repeatMatch, class Classification) orientation {
	if repeat.Direction > 0 {
		return orientation{Verdict: "Original orientation correct (determined with repeat sequence)"}
	}
	if repeat.Direction < 0 {
		return orientation{Flip: true, Verdict: "Original orientation wrong (sequences reversed, determined with repeat sequence)"}
	}

	types, details := class.Candidates, "Cas proteins"
	if len(repeat.Types) > 0 && (len(types) == 0 || len(types) > 3 ||
		(len(types) > 1 && len(repeat.Types) == 1)) {
		types, details = repeat.Types, "repeat sequence"
	}
	if len(types) == 0 || len(types) > 3 {
		return orientation{Verdict: "Assumed forward, orientation unknown"}
	}

	expected, ok := expectedArrayDirections[types[0]]
	if !ok {
		return orientation{Verdict: "Assumed forward, orientation unknown"}
	}
	for _, t := range types[1:] {
		if d, ok := expectedArrayDirections[t]; !ok || d != expected {
			return orientation{Verdict: "Predicted Types have conflicting orientations"}
		}
	}

	switch {
	case class.UpDown == 0:
		return orientation{Verdict: "Assumed forward, orientation unknown"}
	case (class.UpDown > 0) == (expected > 0):
		return orientation{Verdict: "Original orientation correct (determined with " + details + ")"}
	default:
		return orientation{Flip: true, Verdict: "Original orientation wrong (sequences reversed, determined with " + details + ")"}
	}
}

// applyOrientation stamps the verdict on h and, when the array was
// called backward, moves every oriented field onto the other strand:
// sequences are reverse complemented, the PAM flanks swap sides, and
// mismatch annotations flip with their complementary letters. Applied
// twice, the flip restores the original fields exactly.
func applyOrientation(h *Hit, o orientation) {
	h.ArrayDirection = o.Verdict
	if !o.Flip {
		return
	}

	h.SpacerSeq = revComp(h.SpacerSeq)
	h.ConsensusRepeat = revComp(h.ConsensusRepeat)
	h.PAMUp, h.PAMDown = revComp(h.PAMDown), revComp(h.PAMUp)

	if h.TargetSeq != "Perfect match" {
		h.TargetSeq = flipMismatchNotation(h.TargetSeq)
	}
	if up, down, ok := parseMutationAnnotation(h.RepeatMutations); ok {
		if up != "" {
			up = flipMismatchNotation(up)
		}
		if down != "" {
			down = flipMismatchNotation(down)
		}
		// the upstream repeat becomes the downstream one on the
		// opposite strand
		h.RepeatMutations = mutationAnnotation(down, up)
	}
}
