package embedding

import (
	"context"
	"hash/fnv"
	"sort"
	"strings"
)

// HashProvider is the deterministic, dependency-free embedding fallback:
// feature hashing over lowercase tokens into a fixed-dimension vector.
// Nearby texts share tokens and therefore buckets, which is enough signal
// for clustering and assignment to keep producing answers when no trained
// model is configured.
type HashProvider struct {
	dim int
}

// NewHashProvider creates a hash embedder with the given dimension
func NewHashProvider(dim int) *HashProvider {
	if dim < 8 {
		dim = 8
	}
	return &HashProvider{dim: dim}
}

// EmbedText hashes each text's tokens into a normalized vector.
func (p *HashProvider) EmbedText(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = p.embedTokens(tokenize(text), nil)
	}
	return out, nil
}

// EmbedGraph embeds each node from its id plus its weighted neighborhood.
// Nodes sharing neighbors land near each other.
func (p *HashProvider) EmbedGraph(_ context.Context, nodeIDs []string, edges []Edge) (map[string][]float32, error) {
	neighbors := make(map[string]map[string]float64, len(nodeIDs))
	for _, id := range nodeIDs {
		neighbors[id] = map[string]float64{id: 1.0}
	}
	for _, e := range edges {
		w := e.Weight
		if w <= 0 {
			w = 1.0
		}
		if n, ok := neighbors[e.From]; ok {
			n[e.To] += w
		}
		if n, ok := neighbors[e.To]; ok {
			n[e.From] += w
		}
	}

	out := make(map[string][]float32, len(nodeIDs))
	for _, id := range nodeIDs {
		n := neighbors[id]
		tokens := make([]string, 0, len(n))
		weights := make(map[string]float64, len(n))
		for tok, w := range n {
			tokens = append(tokens, tok)
			weights[tok] = w
		}
		sort.Strings(tokens)
		out[id] = p.embedTokens(tokens, weights)
	}
	return out, nil
}

// embedTokens accumulates each token into a signed bucket and normalizes.
// A nil weights map means every token counts once.
func (p *HashProvider) embedTokens(tokens []string, weights map[string]float64) []float32 {
	vec := make([]float32, p.dim)
	for _, tok := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		bucket := int(sum % uint64(p.dim))
		sign := float32(1.0)
		if (sum>>32)&1 == 1 {
			sign = -1.0
		}
		w := float32(1.0)
		if weights != nil {
			w = float32(weights[tok])
		}
		vec[bucket] += sign * w
	}
	return Normalize(vec)
}

func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:()[]{}\"'")
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
