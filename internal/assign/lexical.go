package assign

import "strings"

// ============================================================================
// Lexical Similarity
// ============================================================================

// lexicalScore is 1.0 on an exact case-insensitive match against the
// candidate's id, name or any alias, otherwise the best normalized
// edit-similarity ratio across those surfaces.
func lexicalScore(value string, c Candidate) float64 {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return 0.0
	}

	surfaces := make([]string, 0, len(c.Aliases)+2)
	surfaces = append(surfaces, c.ID, c.Name)
	surfaces = append(surfaces, c.Aliases...)

	best := 0.0
	for _, s := range surfaces {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if s == v {
			return 1.0
		}
		if sim := editSimilarity(v, s); sim > best {
			best = sim
		}
	}
	return best
}

// editSimilarity is 1 - levenshtein(a,b)/max(len(a),len(b)), in [0,1].
func editSimilarity(a, b string) float64 {
	la, lb := len(a), len(b)
	if la == 0 && lb == 0 {
		return 1.0
	}
	longest := la
	if lb > longest {
		longest = lb
	}
	return 1.0 - float64(levenshtein(a, b))/float64(longest)
}

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
			curr[j] = minInt(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
