package assign

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"ontogov/internal/embedding"
	"ontogov/internal/ontology"
	"ontogov/pkg/logger"
)

// Decision statuses
const (
	StatusMatched   = "matched"
	StatusAmbiguous = "ambiguous"
	StatusUnmatched = "unmatched"
)

// Candidate is a known Concept the raw value is scored against.
type Candidate struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	Aliases         []string  `json:"aliases,omitempty"`
	ApplicableTypes []string  `json:"applicable_types,omitempty"`
	Embedding       []float32 `json:"-"`
}

// Context carries what is known about the entity the value was extracted
// from.
type Context struct {
	EntityType string `json:"entity_type,omitempty"`
}

// ScoredCandidate is one candidate with its score breakdown.
type ScoredCandidate struct {
	ID           string  `json:"id"`
	Score        float64 `json:"score"`
	EmbeddingSim float64 `json:"embedding_similarity"`
	Structural   float64 `json:"structural"`
	Lexical      float64 `json:"lexical"`
}

// Decision is the outcome of scoring a raw value against candidates.
type Decision struct {
	Status      string            `json:"status"`
	CanonicalID string            `json:"canonical_id,omitempty"`
	Score       float64           `json:"score"`
	Candidates  []ScoredCandidate `json:"candidates"`
}

// Thresholds are the scoring weights and decision cutoffs, configurable per
// concept category.
type Thresholds struct {
	EmbeddingWeight              float64
	StructuralWeight             float64
	LexicalWeight                float64
	EmbeddingSimilarityThreshold float64
	DecisionThreshold            float64
	AmbiguityGap                 float64
}

// DefaultThresholds returns the global scoring defaults
func DefaultThresholds() Thresholds {
	return Thresholds{
		EmbeddingWeight:              0.6,
		StructuralWeight:             0.2,
		LexicalWeight:                0.2,
		EmbeddingSimilarityThreshold: 0.5,
		DecisionThreshold:            0.65,
		AmbiguityGap:                 0.05,
	}
}

// Engine scores raw extracted values against known Concept candidates.
// Deterministic given identical inputs and candidate ordering.
type Engine struct {
	provider   embedding.Provider
	conv       ontology.Conventions
	defaults   Thresholds
	overrides  map[string]Thresholds // keyed by concept category
	logger     *zap.Logger
}

// NewEngine creates an assignment engine
func NewEngine(provider embedding.Provider, conv ontology.Conventions, defaults Thresholds, overrides map[string]Thresholds) *Engine {
	return &Engine{
		provider:  provider,
		conv:      conv,
		defaults:  defaults,
		overrides: overrides,
		logger:    logger.Named("assign"),
	}
}

// Assign scores value against candidates and returns a
// matched/ambiguous/unmatched decision. valueEmbedding may be nil, in which
// case the value is embedded here; candidate embeddings default to an
// embedding of their id/name/description/aliases.
func (e *Engine) Assign(ctx context.Context, conceptKey, value string, candidates []Candidate, assignCtx Context, valueEmbedding []float32) (*Decision, error) {
	if len(candidates) == 0 {
		return &Decision{Status: StatusUnmatched, Candidates: []ScoredCandidate{}}, nil
	}

	th := e.thresholds(conceptKey)

	if valueEmbedding == nil {
		vecs, err := e.provider.EmbedText(ctx, []string{value})
		if err != nil {
			return nil, fmt.Errorf("failed to embed value: %w", err)
		}
		valueEmbedding = vecs[0]
	}

	if err := e.fillCandidateEmbeddings(ctx, candidates); err != nil {
		return nil, err
	}

	scored := make([]ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		embSim := embedding.Cosine(valueEmbedding, c.Embedding)
		structural := structuralScore(assignCtx, c)
		lexical := lexicalScore(value, c)
		scored = append(scored, ScoredCandidate{
			ID:           c.ID,
			Score:        th.EmbeddingWeight*embSim + th.StructuralWeight*structural + th.LexicalWeight*lexical,
			EmbeddingSim: embSim,
			Structural:   structural,
			Lexical:      lexical,
		})
	}

	// Stable ordering: score descending, id ascending as tiebreak
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ID < scored[j].ID
	})

	decision := &Decision{Candidates: scored}
	top := scored[0]

	switch {
	case top.EmbeddingSim < th.EmbeddingSimilarityThreshold:
		decision.Status = StatusUnmatched
	case top.Score < th.DecisionThreshold:
		decision.Status = StatusUnmatched
	case len(scored) > 1 && top.Score-scored[1].Score <= th.AmbiguityGap:
		decision.Status = StatusAmbiguous
		decision.Score = top.Score
	default:
		decision.Status = StatusMatched
		decision.CanonicalID = top.ID
		decision.Score = top.Score
	}

	e.logger.Debug("Assignment decision",
		zap.String("concept_key", conceptKey),
		zap.String("value", value),
		zap.String("status", decision.Status),
		zap.String("canonical_id", decision.CanonicalID),
		zap.Float64("score", decision.Score),
	)

	return decision, nil
}

func (e *Engine) thresholds(conceptKey string) Thresholds {
	if th, ok := e.overrides[conceptKey]; ok {
		return th
	}
	return e.defaults
}

// fillCandidateEmbeddings embeds the descriptive text of every candidate
// missing an explicit embedding, in one batch.
func (e *Engine) fillCandidateEmbeddings(ctx context.Context, candidates []Candidate) error {
	var missing []int
	var texts []string
	for i, c := range candidates {
		if c.Embedding == nil {
			missing = append(missing, i)
			texts = append(texts, candidateText(c))
		}
	}
	if len(missing) == 0 {
		return nil
	}

	vecs, err := e.provider.EmbedText(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed %d candidates: %w", len(missing), err)
	}
	for j, i := range missing {
		candidates[i].Embedding = vecs[j]
	}
	return nil
}

func candidateText(c Candidate) string {
	parts := []string{c.ID, c.Name}
	if c.Description != "" {
		parts = append(parts, c.Description)
	}
	parts = append(parts, c.Aliases...)
	return strings.Join(parts, " ")
}

// structuralScore rates type compatibility between the extraction context
// and the candidate: 1.0 when the entity type is listed as applicable, 0.0
// when both sides have types and they are disjoint, 0.5 (neutral) when
// either side lacks type information.
func structuralScore(assignCtx Context, c Candidate) float64 {
	if assignCtx.EntityType == "" || len(c.ApplicableTypes) == 0 {
		return 0.5
	}
	for _, t := range c.ApplicableTypes {
		if strings.EqualFold(t, assignCtx.EntityType) {
			return 1.0
		}
	}
	return 0.0
}
