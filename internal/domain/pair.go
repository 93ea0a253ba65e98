package domain

// CanonicalPair orders two identities so that the lexicographically smaller
// one comes first. Every pair-keyed lookup goes through it.
func CanonicalPair(a, b string) (low, high string) {
	if a <= b {
		return a, b
	}
	return b, a
}
