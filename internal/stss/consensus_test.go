package stss

import (
	"errors"
	"reflect"
	"testing"
)

// fakeMSA treats its equal-length inputs as already aligned.
type fakeMSA struct {
	err error
}

func (f fakeMSA) Align(seqs []string) (alignment, error) {
	if f.err != nil {
		return alignment{}, f.err
	}
	a := alignment{}
	for _, s := range seqs {
		a.rows = append(a.rows, s)
	}
	return a, nil
}

func Test_plausible(t *testing.T) {
	spacers := func(lengths ...int) []string {
		var out []string
		for _, n := range lengths {
			s := make([]byte, n)
			for i := range s {
				s[i] = "ACGT"[i%4]
			}
			out = append(out, string(s))
		}
		return out
	}

	tests := []struct {
		name          string
		spacers       []string
		percentReject int
		want          bool
	}{
		{
			"uniform lengths pass",
			spacers(20, 21, 19, 22),
			25,
			true,
		},
		{
			"one outlier rejects the array",
			spacers(20, 21, 19, 50),
			25,
			false,
		},
		{
			"bad alphabet rejects the array",
			[]string{"ACGTACGTACGTACGTACGT", "ACGTACGRACGTACGTACGT"},
			25,
			false,
		},
		{
			"empty array",
			nil,
			25,
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := plausible(tt.spacers, tt.percentReject); got != tt.want {
				t.Errorf("plausible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_detectMisregister(t *testing.T) {
	// five spacers sharing two leading and one trailing base; the cores
	// disagree everywhere else
	shared := []string{
		"GG" + "ACGTACGAC" + "T",
		"GG" + "CGTACGACG" + "T",
		"GG" + "GTACGACGA" + "T",
		"GG" + "TACGACGAT" + "T",
		"GG" + "AATTCCGGA" + "T",
	}
	distinct := []string{
		"ACGTACGACTTT",
		"CGTACGACGTTA",
		"GTACGACGATAC",
		"TACGACGATCCG",
		"AATTCCGGATGA",
	}

	tests := []struct {
		name    string
		spacers []string
		want    registerShift
	}{
		{
			"shared edges detected",
			shared,
			registerShift{forward: 2, backward: 1},
		},
		{
			"honest spacers untouched",
			distinct,
			registerShift{},
		},
		{
			"too few alignable spacers",
			[]string{"GGACGTACGACT"},
			registerShift{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := detectMisregister(tt.spacers, fakeMSA{})
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("detectMisregister() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func Test_detectMisregister_alignerError(t *testing.T) {
	spacers := []string{"GGACGTACGACT", "GGCGTACGACGT"}

	_, err := detectMisregister(spacers, fakeMSA{err: errors.New("no clustalo")})

	if err == nil {
		t.Error("detectMisregister() did not propagate the aligner error")
	}
}

func Test_reflow(t *testing.T) {
	a := &Array{
		Index:   1,
		Repeats: []string{"CAT", "TAC", "GAT"},
		Spacers: []Spacer{
			{Seq: "GGAAAACCT", Pos: 100},
			{Seq: "GGTTTTGGT", Pos: 150},
		},
	}

	reflow(a, registerShift{forward: 2, backward: 1})

	wantRepeats := []string{"CATGG", "TTACGG", "TGAT"}
	if !reflect.DeepEqual(a.Repeats, wantRepeats) {
		t.Errorf("reflow() repeats = %v, want %v", a.Repeats, wantRepeats)
	}
	wantSpacers := []Spacer{
		{Seq: "AAAACC", Pos: 102},
		{Seq: "TTTTGG", Pos: 152},
	}
	if !reflect.DeepEqual(a.Spacers, wantSpacers) {
		t.Errorf("reflow() spacers = %v, want %v", a.Spacers, wantSpacers)
	}
}

func Test_reflow_zeroShift(t *testing.T) {
	a := &Array{
		Repeats: []string{"CAT", "TAC"},
		Spacers: []Spacer{{Seq: "GGAAAACCT", Pos: 100}},
	}
	before := *a

	reflow(a, registerShift{})

	if !reflect.DeepEqual(a.Repeats, before.Repeats) || !reflect.DeepEqual(a.Spacers, before.Spacers) {
		t.Error("reflow() with a zero shift modified the array")
	}
}

func Test_correctRegister_falsePositive(t *testing.T) {
	a := &Array{
		Repeats: []string{"ACGTACGTACGT", "ACGTACGTACGT", "ACGTACGTACGT", "ACGTACGTACGT", "ACGTACGTACGT"},
		Spacers: []Spacer{
			{Seq: "ACGTACGACTTT", Pos: 100},
			{Seq: "CGTACGACGTTA", Pos: 150},
			{Seq: "GTACGACGATAC", Pos: 200},
			{Seq: "TACGACGATCCG", Pos: 250},
		},
	}

	shift, err := correctRegister(a, fakeMSA{}, 18)

	if err != nil {
		t.Fatal(err)
	}
	if !shift.zero() {
		t.Errorf("correctRegister() shift = %+v, want zero", shift)
	}
	if !a.FalsePositive {
		t.Error("correctRegister() did not mark an all-short array as a false positive")
	}
}

func Test_correctRegister_keepsPlausibleArray(t *testing.T) {
	a := &Array{
		Repeats: []string{"ACGTACGTACGT", "ACGTACGTACGT", "ACGTACGTACGT", "ACGTACGTACGT", "ACGTACGTACGT"},
		Spacers: []Spacer{
			{Seq: "ACGTACGACTTTACGTACGT", Pos: 100},
			{Seq: "CGTACGACGTTAGTCAGTCA", Pos: 150},
			{Seq: "GTACGACGATACTGCATGCA", Pos: 200},
			{Seq: "TACGACGATCCGCATGCATG", Pos: 250},
		},
	}

	if _, err := correctRegister(a, fakeMSA{}, 18); err != nil {
		t.Fatal(err)
	}
	if a.FalsePositive {
		t.Error("correctRegister() rejected an array with full-length spacers")
	}
}

func Test_diffRepeat(t *testing.T) {
	tests := []struct {
		name      string
		row       string
		consensus string
		want      string
	}{
		{
			"identical",
			"ACGT",
			"ACGT",
			"",
		},
		{
			"substitution is lowercase",
			"ACTT",
			"ACGT",
			"..t.",
		},
		{
			"consensus N always matches",
			"ACTT",
			"ACNT",
			"",
		},
		{
			"insertion over a consensus gap stays uppercase",
			"ACGT",
			"AC-T",
			"..G.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := diffRepeat(tt.row, tt.consensus); got != tt.want {
				t.Errorf("diffRepeat() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_mutationAnnotation(t *testing.T) {
	tests := []struct {
		name       string
		upstream   string
		downstream string
		want       string
	}{
		{
			"no mutations",
			"", "",
			"None",
		},
		{
			"upstream only",
			"..t.", "",
			"Upstream repeat mutated: ..t.",
		},
		{
			"downstream only",
			"", "g...",
			"Downstream repeat mutated: g...",
		},
		{
			"both",
			"..t.", "g...",
			"Both repeats mutated: Upstream: ..t., Downstream: g...",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mutationAnnotation(tt.upstream, tt.downstream)
			if got != tt.want {
				t.Errorf("mutationAnnotation() = %v, want %v", got, tt.want)
			}

			up, down, ok := parseMutationAnnotation(got)
			if tt.upstream == "" && tt.downstream == "" {
				if ok {
					t.Error("parseMutationAnnotation() parsed diffs out of a clean annotation")
				}
				return
			}
			if !ok || up != tt.upstream || down != tt.downstream {
				t.Errorf("parseMutationAnnotation() = (%q, %q, %v), want (%q, %q, true)", up, down, ok, tt.upstream, tt.downstream)
			}
		})
	}
}

func Test_buildRepeatConsensus(t *testing.T) {
	repeat := "ACGTACGTACGT"
	mutated := "ACGTACGTAGGT"
	a := &Array{
		Repeats: []string{repeat, repeat, mutated, repeat},
		Spacers: []Spacer{
			{Seq: "AAAACCCCGGGGTTTT", Pos: 100},
			{Seq: "TTTTGGGGCCCCAAAA", Pos: 150},
			{Seq: "ACACACACGTGTGTGT", Pos: 200},
		},
	}

	rc, err := buildRepeatConsensus(a, 3, fakeMSA{})

	if err != nil {
		t.Fatal(err)
	}
	if rc.Seq != repeat {
		t.Errorf("buildRepeatConsensus() consensus = %v, want %v", rc.Seq, repeat)
	}
	if rc.Upstream != ".........g.." {
		t.Errorf("buildRepeatConsensus() upstream = %q, want %q", rc.Upstream, ".........g..")
	}
	if rc.Downstream != "" {
		t.Errorf("buildRepeatConsensus() downstream = %q, want empty", rc.Downstream)
	}
	if got := rc.Mutations(); got != "Upstream repeat mutated: .........g.." {
		t.Errorf("Mutations() = %v", got)
	}
}

func Test_buildRepeatConsensus_degenerateFlank(t *testing.T) {
	// the repeat upstream of spacer 1 is too short to align, so that
	// spacer has no flanking rows left
	a := &Array{
		Repeats: []string{"ACGT", "ACGTACGTACGT", "ACGTACGTACGT"},
		Spacers: []Spacer{
			{Seq: "AAAACCCCGGGGTTTT", Pos: 100},
			{Seq: "TTTTGGGGCCCCAAAA", Pos: 150},
		},
	}

	if _, err := buildRepeatConsensus(a, 1, fakeMSA{}); err == nil {
		t.Error("buildRepeatConsensus() accepted a spacer with a missing flank")
	}
}
