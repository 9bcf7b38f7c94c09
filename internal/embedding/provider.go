package embedding

import "context"

// Edge is a weighted relationship between two graph nodes, used as input to
// graph-space embedding.
type Edge struct {
	From   string
	To     string
	Type   string
	Weight float64
}

// Provider converts text or graph neighborhoods into fixed-length normalized
// vectors. Implementations are selected at construction time; the hash
// provider is the deterministic, dependency-free fallback, never reached via
// error recovery.
type Provider interface {
	// EmbedText returns one normalized vector per input text.
	EmbedText(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedGraph embeds each node from its relationship neighborhood.
	EmbedGraph(ctx context.Context, nodeIDs []string, edges []Edge) (map[string][]float32, error)
}
