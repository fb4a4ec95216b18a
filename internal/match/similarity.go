package match

// Ratio computes a sequence similarity between two strings on a 0-1000
// integer scale. It uses longest-matching-block decomposition (the
// SequenceMatcher family) rather than edit distance: the total length M of
// all matching blocks is found recursively and the ratio is 2*M/T where T is
// the combined length. This choice is load-bearing for the acceptance and
// rejection boundaries elsewhere in this package.
func Ratio(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	t := len(ra) + len(rb)
	if t == 0 {
		return 1000
	}

	m := 0
	for _, block := range matchingBlocks(ra, rb) {
		m += block.size
	}
	return (2*m*1000 + t/2) / t
}

type block struct {
	a, b, size int
}

// matchingBlocks returns the non-overlapping matching blocks between a and b,
// found by repeatedly locating the longest match and recursing on the pieces
// before and after it.
func matchingBlocks(a, b []rune) []block {
	// Positions of each rune in b, for the inner loop of findLongestMatch.
	b2j := make(map[rune][]int, len(b))
	for j, r := range b {
		b2j[r] = append(b2j[r], j)
	}

	type span struct{ alo, ahi, blo, bhi int }
	queue := []span{{0, len(a), 0, len(b)}}
	var blocks []block

	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		best := findLongestMatch(a, b2j, s.alo, s.ahi, s.blo, s.bhi)
		if best.size == 0 {
			continue
		}
		blocks = append(blocks, best)
		if s.alo < best.a && s.blo < best.b {
			queue = append(queue, span{s.alo, best.a, s.blo, best.b})
		}
		if best.a+best.size < s.ahi && best.b+best.size < s.bhi {
			queue = append(queue, span{best.a + best.size, s.ahi, best.b + best.size, s.bhi})
		}
	}

	return blocks
}

// findLongestMatch finds the longest block of equal runes within
// a[alo:ahi] and b[blo:bhi]. Ties go to the earliest block in a, then b.
func findLongestMatch(a []rune, b2j map[rune][]int, alo, ahi, blo, bhi int) block {
	besti, bestj, bestsize := alo, blo, 0
	j2len := make(map[int]int)

	for i := alo; i < ahi; i++ {
		newj2len := make(map[int]int)
		for _, j := range b2j[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			newj2len[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		j2len = newj2len
	}

	return block{besti, bestj, bestsize}
}
