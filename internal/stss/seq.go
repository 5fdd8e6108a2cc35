package stss

import "strings"

var complement [256]byte

func init() {
	for i := range complement {
		complement[i] = 'N'
	}
	pairs := map[byte]byte{
		'A': 'T', 'T': 'A', 'C': 'G', 'G': 'C', 'N': 'N',
		'a': 't', 't': 'a', 'c': 'g', 'g': 'c', 'n': 'n',
	}
	for b, c := range pairs {
		complement[b] = c
	}
}

// revComp returns the reverse complement of seq. Characters outside
// the accepted alphabet come back as N.
func revComp(seq string) string {
	b := make([]byte, len(seq))
	for i := 0; i < len(seq); i++ {
		b[i] = complement[seq[len(seq)-1-i]]
	}
	return string(b)
}

// flipMismatchNotation reverses a mutation annotation string and swaps
// complementary base letters, preserving case and the '.'/'x' symbols.
// Applying it twice returns the original string.
func flipMismatchNotation(s string) string {
	b := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[len(s)-1-i]
		switch c {
		case 'a':
			c = 't'
		case 't':
			c = 'a'
		case 'c':
			c = 'g'
		case 'g':
			c = 'c'
		case 'A':
			c = 'T'
		case 'T':
			c = 'A'
		case 'C':
			c = 'G'
		case 'G':
			c = 'C'
		}
		b[i] = c
	}
	return string(b)
}

// validDNA reports whether every character of seq is in the accepted
// alphabet {A,C,G,T,N}, case-insensitive.
func validDNA(seq string) bool {
	for i := 0; i < len(seq); i++ {
		switch seq[i] {
		case 'A', 'C', 'G', 'T', 'N', 'a', 'c', 'g', 't', 'n':
		default:
			return false
		}
	}
	return true
}

// diffSeqs compares query against subject base by base, case-insensitive,
// writing '.' for a match and the lowercase subject base for a mismatch.
// Both sequences must be the same length.
func diffSeqs(query, subject string) string {
	var sb strings.Builder
	q := strings.ToLower(query)
	s := strings.ToLower(subject)
	for i := 0; i < len(q); i++ {
		if q[i] == s[i] {
			sb.WriteByte('.')
		} else {
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}
