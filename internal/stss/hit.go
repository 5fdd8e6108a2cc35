package stss

// SelfTarget names a feature at or around a target site. Sites between
// genes report both neighbors; sites at a contig edge report an edge
// sentinel in place of the missing neighbor.
type SelfTarget struct {
	ID      string
	Product string
}

// Hit is one confirmed self-targeting spacer with everything the
// report includes about its array, locus, and target.
type Hit struct {
	AssemblyUID string
	TargetAcc   string
	LocusAcc    string
	Species     string

	TypeProteins string
	TypeRepeat   string
	Completeness string
	Proteins     []string

	ArrayIndex  int
	SpacerIndex int

	// TargetPos and LocusPos are 1-based original genomic coordinates
	TargetPos int
	LocusPos  int

	SpacerSeq string
	PAMUp     string

	// TargetSeq is the target mismatch annotation, or "Perfect match"
	TargetSeq string

	PAMDown         string
	ConsensusRepeat string
	RepeatMutations string
	ArrayDirection  string

	Targets []SelfTarget

	// PhasterIsland is the prophage region verdict, "Skipped" when
	// island analysis is off
	PhasterIsland string
}
