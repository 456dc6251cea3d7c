package intent

// ratio is a similarity measure in [0,1] between two normalized strings,
// computed as 2*LCS(a,b) / (len(a)+len(b)). It mirrors the classic
// sequence-matcher ratio closely enough for short keyword comparisons.
func ratio(a, b string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return 2 * float64(lcsLength(a, b)) / float64(len(a)+len(b))
}

// lcsLength returns the length of the longest common subsequence of a and b
// using a rolling single-row table.
func lcsLength(a, b string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	row := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		prevDiag := 0
		for j := 1; j <= len(b); j++ {
			tmp := row[j]
			if a[i-1] == b[j-1] {
				row[j] = prevDiag + 1
			} else if row[j-1] > row[j] {
				row[j] = row[j-1]
			}
			prevDiag = tmp
		}
	}
	return row[len(b)]
}
