package stss

// Coordinate correction. The array finder and the spacer BLAST run on
// an edited, concatenated file: long N-runs may have been collapsed
// (see collapseNRuns) and a WGS genome's contigs are searched as one
// unit. Positions reported there have to be mapped back to true
// genomic coordinates before any feature lookup. N-run correction is
// applied before contig correction when both apply, and neither call
// detects double-correction: call sites apply each exactly once.

// CorrectForNs returns pos plus the cumulative bases removed at or
// before it. contigStart rebases the table entries, which are recorded
// in concatenated-file coordinates, into the coordinate space of pos;
// pass 0 when pos is itself a concatenated-file position.
func CorrectForNs(pos int, table []MaskCorrection, contigStart int) int {
	adjust := 0
	for _, e := range table {
		ep := e.Pos - contigStart
		if ep < 0 {
			continue
		}
		if ep > pos {
			break
		}
		adjust += e.Removed
	}
	return pos + adjust
}

// ContigOffsets returns, for each contig, the offset of its record in
// the concatenated coordinate space: the sum of header and sequence
// lengths of every record above it. Offsets are strictly increasing.
func ContigOffsets(contigs []Contig) []int {
	offsets := make([]int, len(contigs))
	abs := 0
	for i, c := range contigs {
		offsets[i] = abs
		abs += len(c.Accession) + 1 + len(c.Seq)
	}
	return offsets
}

// LocateContig maps a concatenated-space position to the contig that
// contains it and the contig-relative position. A position past the
// last offset belongs to the last contig.
func LocateContig(pos int, contigs []Contig) (contig int, rel int) {
	offsets := ContigOffsets(contigs)
	contig = len(offsets) - 1
	for i := 1; i < len(offsets); i++ {
		if pos < offsets[i] {
			contig = i - 1
			break
		}
	}
	return contig, pos - offsets[contig]
}
