package stss

// Spacer is one spacer of an array with its absolute position in the
// array finder's coordinate space.
type Spacer struct {
	Seq string
	Pos int
}

// Array is one CRISPR locus as reported by the array finder, refined
// in place by register correction and orientation resolution. An array
// is never deleted; a rejected one is marked FalsePositive and skipped
// downstream.
type Array struct {
	// Index is the ordinal the finder assigned, 1-based
	Index int

	// Start, End of the locus range in finder coordinates
	Start, End int

	// Repeats in order; len(Spacers) == len(Repeats)-1
	Repeats []string

	Spacers []Spacer

	FalsePositive bool
}

// Contains reports whether pos falls inside the locus range widened by
// pad on both sides, after shifting the range by -offset (the contig
// correction for fragmented genomes).
func (a *Array) Contains(pos, pad, offset int) bool {
	lower := a.Start - pad - offset
	if lower < 1 {
		lower = 1
	}
	upper := a.End - offset + pad
	return lower <= pos && pos <= upper
}
