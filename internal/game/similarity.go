package game

import "strings"

// Similar reports whether a wrong guess is close enough to the target word to
// warrant an "almost" hint: one edit away, after a length-difference gate.
func Similar(guess, target string) bool {
	guess = strings.ToLower(strings.TrimSpace(guess))
	target = strings.ToLower(strings.TrimSpace(target))

	if guess == target {
		return false
	}
	if len([]rune(guess)) < 3 {
		return false
	}
	diff := len([]rune(guess)) - len([]rune(target))
	if diff < -2 || diff > 2 {
		return false
	}
	return levenshtein(guess, target) == 1
}

// levenshtein is the standard two-row DP edit distance over runes.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
