package stss

import (
	"reflect"
	"testing"
)

func Test_resolveOrientation(t *testing.T) {
	tests := []struct {
		name        string
		repeat      repeatMatch
		class       Classification
		wantFlip    bool
		wantVerdict string
	}{
		{
			"forward repeat match settles it",
			repeatMatch{Group: "I-E", Direction: 27, Types: []string{"I-E"}},
			Classification{},
			false,
			"Original orientation correct (determined with repeat sequence)",
		},
		{
			"reversed repeat match flips",
			repeatMatch{Group: "I-E", Direction: -27, Types: []string{"I-E"}},
			Classification{},
			true,
			"Original orientation wrong (sequences reversed, determined with repeat sequence)",
		},
		{
			"protein candidates agree with placement",
			repeatMatch{},
			Classification{Candidates: []string{"II-A"}, UpDown: 2},
			false,
			"Original orientation correct (determined with Cas proteins)",
		},
		{
			"protein candidates disagree with placement",
			repeatMatch{},
			Classification{Candidates: []string{"III-A"}, UpDown: 2},
			true,
			"Original orientation wrong (sequences reversed, determined with Cas proteins)",
		},
		{
			"no placement signal",
			repeatMatch{},
			Classification{Candidates: []string{"II-A"}, UpDown: 0},
			false,
			"Assumed forward, orientation unknown",
		},
		{
			"candidates with conflicting expectations",
			repeatMatch{},
			Classification{Candidates: []string{"II-A", "III-A"}, UpDown: 2},
			false,
			"Predicted Types have conflicting orientations",
		},
		{
			"nothing to go on",
			repeatMatch{},
			Classification{},
			false,
			"Assumed forward, orientation unknown",
		},
		{
			"tighter repeat family beats looser proteins",
			repeatMatch{Types: []string{"III-A"}},
			Classification{Candidates: []string{"II-A", "II-B"}, UpDown: 2},
			true,
			"Original orientation wrong (sequences reversed, determined with repeat sequence)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveOrientation(tt.repeat, tt.class)
			if got.Flip != tt.wantFlip {
				t.Errorf("resolveOrientation() flip = %v, want %v", got.Flip, tt.wantFlip)
			}
			if got.Verdict != tt.wantVerdict {
				t.Errorf("resolveOrientation() verdict = %q, want %q", got.Verdict, tt.wantVerdict)
			}
		})
	}
}

func Test_applyOrientation(t *testing.T) {
	h := &Hit{
		SpacerSeq:       "ACGTACGTAC",
		ConsensusRepeat: "GTTTTAGAGC",
		PAMUp:           "AAAGGG",
		PAMDown:         "CCCTTT",
		TargetSeq:       "..a....t..",
		RepeatMutations: "Upstream repeat mutated: ..g.",
	}

	applyOrientation(h, orientation{Flip: true, Verdict: "Original orientation wrong (sequences reversed, determined with repeat sequence)"})

	if h.SpacerSeq != "GTACGTACGT" {
		t.Errorf("applyOrientation() spacer = %v", h.SpacerSeq)
	}
	if h.ConsensusRepeat != "GCTCTAAAAC" {
		t.Errorf("applyOrientation() consensus = %v", h.ConsensusRepeat)
	}
	if h.PAMUp != "AAAGGG" || h.PAMDown != "CCCTTT" {
		// revComp(PAMDown) = AAAGGG and revComp(PAMUp) = CCCTTT
		t.Errorf("applyOrientation() PAMs = %v %v", h.PAMUp, h.PAMDown)
	}
	if h.TargetSeq != "..a....t.." {
		// the flipped annotation of this palindromic diff is itself
		t.Errorf("applyOrientation() target = %v", h.TargetSeq)
	}
	if h.RepeatMutations != "Downstream repeat mutated: .c.." {
		t.Errorf("applyOrientation() mutations = %v", h.RepeatMutations)
	}
}

func Test_applyOrientation_roundTrip(t *testing.T) {
	orig := Hit{
		SpacerSeq:       "ACGTACGTAC",
		ConsensusRepeat: "GTTTTAGAGC",
		PAMUp:           "GGGAAACCC",
		PAMDown:         "TTTCCCGGG",
		TargetSeq:       "...g....a.",
		RepeatMutations: "Both repeats mutated: Upstream: ..t., Downstream: a...",
	}
	h := orig

	flip := orientation{Flip: true, Verdict: "flipped"}
	applyOrientation(&h, flip)
	applyOrientation(&h, flip)

	h.ArrayDirection = orig.ArrayDirection
	if !reflect.DeepEqual(h, orig) {
		t.Errorf("applyOrientation() applied twice = %+v, want %+v", h, orig)
	}
}

func Test_applyOrientation_noFlip(t *testing.T) {
	h := &Hit{SpacerSeq: "ACGT", TargetSeq: "Perfect match"}

	applyOrientation(h, orientation{Verdict: "Original orientation correct (determined with repeat sequence)"})

	if h.SpacerSeq != "ACGT" || h.TargetSeq != "Perfect match" {
		t.Errorf("applyOrientation() modified fields without a flip: %+v", h)
	}
	if h.ArrayDirection != "Original orientation correct (determined with repeat sequence)" {
		t.Errorf("applyOrientation() verdict = %v", h.ArrayDirection)
	}
}
