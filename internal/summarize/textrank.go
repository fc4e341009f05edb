package summarize

import "math"

const (
	damping       = 0.85
	tolerance     = 1e-6
	maxIterations = 100
)

// similarity is the TextRank overlap of two token lists: the number of
// distinct shared tokens normalized by the log lengths of both sentences.
func similarity(a, b []string) float64 {
	if len(a) <= 1 || len(b) <= 1 {
		return 0
	}
	seen := make(map[string]bool, len(a))
	for _, t := range a {
		seen[t] = true
	}
	common := 0
	for _, t := range b {
		if seen[t] {
			common++
			seen[t] = false
		}
	}
	if common == 0 {
		return 0
	}
	return float64(common) / (math.Log(float64(len(a))) + math.Log(float64(len(b))))
}

// similarityMatrix computes the symmetric sentence graph with a zero
// diagonal.
func similarityMatrix(tokens [][]string) [][]float64 {
	n := len(tokens)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			w := similarity(tokens[i], tokens[j])
			m[i][j] = w
			m[j][i] = w
		}
	}
	return m
}

// pageRank runs weighted PageRank over the graph until the largest score
// change drops below tol or maxIter rounds have run.
func pageRank(weights [][]float64, d, tol float64, maxIter int) []float64 {
	n := len(weights)
	if n == 0 {
		return nil
	}

	outWeight := make([]float64, n)
	for j := 0; j < n; j++ {
		for k := 0; k < n; k++ {
			outWeight[j] += weights[j][k]
		}
	}

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = 1 / float64(n)
	}
	next := make([]float64, n)

	for iter := 0; iter < maxIter; iter++ {
		delta := 0.0
		for i := 0; i < n; i++ {
			var sum float64
			for j := 0; j < n; j++ {
				if j == i || weights[j][i] == 0 || outWeight[j] == 0 {
					continue
				}
				sum += weights[j][i] / outWeight[j] * scores[j]
			}
			next[i] = (1-d)/float64(n) + d*sum
			delta = math.Max(delta, math.Abs(next[i]-scores[i]))
		}
		scores, next = next, scores
		if delta < tol {
			break
		}
	}
	return scores
}
