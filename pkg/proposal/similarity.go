package proposal

import "strings"

// DuplicateThreshold is the similarity above which two texts count as the same.
const DuplicateThreshold = 0.95

// Similarity returns a score in [0, 1]: twice the number of runes found in matching
// blocks divided by the total number of runes. Surrounding whitespace is ignored.
// Matching blocks are found recursively, longest first, on both sides of each match.
func Similarity(a, b string) float64 {
	ra := []rune(strings.TrimSpace(a))
	rb := []rune(strings.TrimSpace(b))
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	positions := make(map[rune][]int)
	for j, r := range rb {
		positions[r] = append(positions[r], j)
	}
	m := matching(ra, rb, positions, 0, len(ra), 0, len(rb))
	return 2 * float64(m) / float64(total)
}

// IsDuplicate reports whether a and b are near-identical.
func IsDuplicate(a, b string) bool {
	return Similarity(a, b) >= DuplicateThreshold
}

func matching(a, b []rune, positions map[rune][]int, alo, ahi, blo, bhi int) int {
	i, j, size := longestMatch(a, positions, alo, ahi, blo, bhi)
	if size == 0 {
		return 0
	}
	n := size
	if alo < i && blo < j {
		n += matching(a, b, positions, alo, i, blo, j)
	}
	if i+size < ahi && j+size < bhi {
		n += matching(a, b, positions, i+size, ahi, j+size, bhi)
	}
	return n
}

// longestMatch finds the longest common block of a[alo:ahi] and b[blo:bhi],
// the earliest one in a when several tie.
func longestMatch(a []rune, positions map[rune][]int, alo, ahi, blo, bhi int) (int, int, int) {
	bestI, bestJ, best := alo, blo, 0
	lengths := map[int]int{}
	for i := alo; i < ahi; i++ {
		next := map[int]int{}
		for _, j := range positions[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := lengths[j-1] + 1
			next[j] = k
			if k > best {
				bestI, bestJ, best = i-k+1, j-k+1, k
			}
		}
		lengths = next
	}
	return bestI, bestJ, best
}
