package embedding

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"ontogov/pkg/logger"
)

// OpenAIProvider embeds text through an OpenAI-compatible embeddings
// endpoint (LiteLLM proxies work too). Graph neighborhoods are serialized to
// text and embedded the same way; the endpoint has no native graph model.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIProvider creates an embedding provider for an OpenAI-compatible endpoint
func NewOpenAIProvider(baseURL, apiKey, model string) *OpenAIProvider {
	// A dummy key keeps local proxies happy
	if apiKey == "" {
		apiKey = "dummy-key"
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL + "/v1"
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(config),
		model:  model,
		logger: logger.Named("embedding"),
	}
}

// EmbedText returns one normalized vector per input text.
func (p *OpenAIProvider) EmbedText(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(p.model),
	}

	// Retry logic with exponential backoff
	var resp openai.EmbeddingResponse
	var err error
	maxRetries := 3
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * time.Second
			p.logger.Warn("Retrying embedding request",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
			)
			time.Sleep(backoff)
		}

		resp, err = p.client.CreateEmbeddings(ctx, req)
		if err == nil {
			break
		}

		p.logger.Error("Embedding request failed",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.String("model", p.model),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to embed %d texts after %d attempts: %w", len(texts), maxRetries, err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response size mismatch: got %d, want %d", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		copy(vec, d.Embedding)
		out[d.Index] = Normalize(vec)
	}
	return out, nil
}

// EmbedGraph serializes each node's neighborhood into a stable textual
// description and embeds it.
func (p *OpenAIProvider) EmbedGraph(ctx context.Context, nodeIDs []string, edges []Edge) (map[string][]float32, error) {
	if len(nodeIDs) == 0 {
		return map[string][]float32{}, nil
	}

	neighbors := make(map[string][]string, len(nodeIDs))
	for _, e := range edges {
		neighbors[e.From] = append(neighbors[e.From], fmt.Sprintf("%s %s", e.Type, e.To))
		neighbors[e.To] = append(neighbors[e.To], fmt.Sprintf("%s %s", e.Type, e.From))
	}

	texts := make([]string, len(nodeIDs))
	for i, id := range nodeIDs {
		n := neighbors[id]
		sort.Strings(n)
		texts[i] = id + " " + strings.Join(n, " ")
	}

	vectors, err := p.EmbedText(ctx, texts)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]float32, len(nodeIDs))
	for i, id := range nodeIDs {
		out[id] = vectors[i]
	}
	return out, nil
}
