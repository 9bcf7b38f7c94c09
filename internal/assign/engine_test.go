package assign

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ontogov/internal/embedding"
	"ontogov/internal/ontology"
)

// stubProvider returns pre-seeded vectors per text, so scoring is fully
// controlled by the test.
type stubProvider struct {
	vectors map[string][]float32
}

func (s *stubProvider) EmbedText(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := s.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = []float32{0, 1}
		}
	}
	return out, nil
}

func (s *stubProvider) EmbedGraph(_ context.Context, nodeIDs []string, _ []embedding.Edge) (map[string][]float32, error) {
	out := map[string][]float32{}
	for _, id := range nodeIDs {
		out[id] = []float32{0, 1}
	}
	return out, nil
}

func newTestEngine(overrides map[string]Thresholds) *Engine {
	return NewEngine(&stubProvider{}, ontology.NewConventions(nil), DefaultThresholds(), overrides)
}

// vecWithCosine builds a unit vector whose cosine similarity to [1,0] is sim.
func vecWithCosine(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

func TestAssignMatchesClearWinner(t *testing.T) {
	value := []float32{1, 0}
	candidates := []Candidate{
		{ID: "concept-a", Name: "alpha ledger", Embedding: vecWithCosine(0.95)},
		{ID: "concept-b", Name: "unrelated beacon", Embedding: vecWithCosine(0.40)},
	}

	decision, err := newTestEngine(nil).Assign(context.Background(), "instrument", "alpha ledger", candidates, Context{}, value)
	require.NoError(t, err)

	assert.Equal(t, StatusMatched, decision.Status)
	assert.Equal(t, "concept-a", decision.CanonicalID)
	assert.Len(t, decision.Candidates, 2)
	assert.Equal(t, "concept-a", decision.Candidates[0].ID)
	assert.InDelta(t, 0.95, decision.Candidates[0].EmbeddingSim, 1e-6)
}

func TestAssignUnmatchedBelowEmbeddingThreshold(t *testing.T) {
	value := []float32{1, 0}
	// Exact lexical match cannot rescue a weak embedding
	candidates := []Candidate{
		{ID: "concept-a", Name: "alpha ledger", Embedding: vecWithCosine(0.30)},
	}

	decision, err := newTestEngine(nil).Assign(context.Background(), "instrument", "alpha ledger", candidates, Context{}, value)
	require.NoError(t, err)
	assert.Equal(t, StatusUnmatched, decision.Status)
	assert.Empty(t, decision.CanonicalID)
}

func TestAssignUnmatchedBelowDecisionThreshold(t *testing.T) {
	value := []float32{1, 0}
	// Embedding clears its own threshold but the total score stays low
	candidates := []Candidate{
		{ID: "concept-a", Name: "zzzzzzzzzz", Embedding: vecWithCosine(0.55)},
	}

	decision, err := newTestEngine(nil).Assign(context.Background(), "instrument", "alpha", candidates, Context{}, value)
	require.NoError(t, err)
	assert.Equal(t, StatusUnmatched, decision.Status)
}

func TestAssignAmbiguousOnSmallGap(t *testing.T) {
	value := []float32{1, 0}
	// Identical scoring surfaces, so the top-two gap is zero
	candidates := []Candidate{
		{ID: "concept-a", Name: "alpha ledger", Embedding: vecWithCosine(0.95)},
		{ID: "concept-b", Name: "alpha ledger", Embedding: vecWithCosine(0.95)},
	}

	decision, err := newTestEngine(nil).Assign(context.Background(), "instrument", "alpha ledger", candidates, Context{}, value)
	require.NoError(t, err)
	assert.Equal(t, StatusAmbiguous, decision.Status)
	assert.Empty(t, decision.CanonicalID)
	// Deterministic tiebreak: lower id first
	assert.Equal(t, "concept-a", decision.Candidates[0].ID)
}

func TestAssignNoCandidates(t *testing.T) {
	decision, err := newTestEngine(nil).Assign(context.Background(), "instrument", "anything", nil, Context{}, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusUnmatched, decision.Status)
}

func TestAssignPerCategoryThresholds(t *testing.T) {
	strict := DefaultThresholds()
	strict.DecisionThreshold = 0.99
	engine := newTestEngine(map[string]Thresholds{"strict-category": strict})

	value := []float32{1, 0}
	candidates := []Candidate{
		{ID: "concept-a", Name: "alpha ledger", Embedding: vecWithCosine(0.95)},
	}

	decision, err := engine.Assign(context.Background(), "strict-category", "totally different", candidates, Context{}, value)
	require.NoError(t, err)
	assert.Equal(t, StatusUnmatched, decision.Status)

	decision, err = engine.Assign(context.Background(), "lenient-category", "alpha ledger", candidates, Context{}, value)
	require.NoError(t, err)
	assert.Equal(t, StatusMatched, decision.Status)
}

func TestAssignEmbedsValueAndCandidatesWhenMissing(t *testing.T) {
	provider := &stubProvider{vectors: map[string][]float32{
		"velocity":                      {1, 0},
		"concept-a rate of change":      {1, 0},
		"concept-b unrelated dimension": {0, 1},
	}}
	engine := NewEngine(provider, ontology.NewConventions(nil), DefaultThresholds(), nil)

	candidates := []Candidate{
		{ID: "concept-a", Name: "rate of change"},
		{ID: "concept-b", Name: "unrelated dimension"},
	}
	decision, err := engine.Assign(context.Background(), "measure", "velocity", candidates, Context{}, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusMatched, decision.Status)
	assert.Equal(t, "concept-a", decision.CanonicalID)
}

func TestAssignDeterministic(t *testing.T) {
	value := []float32{1, 0}
	candidates := func() []Candidate {
		return []Candidate{
			{ID: "concept-a", Name: "alpha ledger", Embedding: vecWithCosine(0.9)},
			{ID: "concept-b", Name: "alpha record", Embedding: vecWithCosine(0.8)},
		}
	}

	engine := newTestEngine(nil)
	first, err := engine.Assign(context.Background(), "instrument", "alpha ledger", candidates(), Context{}, value)
	require.NoError(t, err)
	second, err := engine.Assign(context.Background(), "instrument", "alpha ledger", candidates(), Context{}, value)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestStructuralScore(t *testing.T) {
	c := Candidate{ApplicableTypes: []string{"Person", "Organization"}}
	assert.Equal(t, 1.0, structuralScore(Context{EntityType: "person"}, c))
	assert.Equal(t, 0.0, structuralScore(Context{EntityType: "Location"}, c))
	assert.Equal(t, 0.5, structuralScore(Context{}, c))
	assert.Equal(t, 0.5, structuralScore(Context{EntityType: "Person"}, Candidate{}))
}

func TestLexicalScore(t *testing.T) {
	c := Candidate{ID: "concept-velocity", Name: "Velocity", Aliases: []string{"speed"}}

	assert.Equal(t, 1.0, lexicalScore("velocity", c))
	assert.Equal(t, 1.0, lexicalScore("SPEED", c))
	assert.Equal(t, 1.0, lexicalScore("concept-velocity", c))

	partial := lexicalScore("velocty", c) // one deletion from "velocity"
	assert.Greater(t, partial, 0.8)
	assert.Less(t, partial, 1.0)

	assert.Equal(t, 0.0, lexicalScore("   ", c))
}

func TestEditSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, editSimilarity("same", "same"), 1e-9)
	assert.InDelta(t, 0.0, editSimilarity("abc", "xyz"), 1e-9)
	// "kitten" -> "sitting": 3 edits over max length 7
	assert.InDelta(t, 1.0-3.0/7.0, editSimilarity("kitten", "sitting"), 1e-9)
}
