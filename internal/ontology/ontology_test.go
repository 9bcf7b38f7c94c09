package ontology

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHypothesisIDStableAcrossMemberOrder(t *testing.T) {
	a := HypothesisID("Category", "density", "ns", []string{"p1", "p2", "p3"})
	b := HypothesisID("Category", "density", "ns", []string{"p3", "p1", "p2"})
	assert.Equal(t, a, b)
}

func TestHypothesisIDChangesWithInputs(t *testing.T) {
	base := HypothesisID("Category", "density", "ns", []string{"p1", "p2"})
	assert.NotEqual(t, base, HypothesisID("Category", "density", "ns", []string{"p1", "p2", "p3"}))
	assert.NotEqual(t, base, HypothesisID("Category", "community", "ns", []string{"p1", "p2"}))
	assert.NotEqual(t, base, HypothesisID("Form", "density", "ns", []string{"p1", "p2"}))
	assert.NotEqual(t, base, HypothesisID("Category", "density", "other", []string{"p1", "p2"}))
}

func TestHypothesisIDDoesNotMutateInput(t *testing.T) {
	members := []string{"z", "a", "m"}
	HypothesisID("Category", "density", "ns", members)
	assert.Equal(t, []string{"z", "a", "m"}, members)
}

func TestConventionsDefaults(t *testing.T) {
	conv := NewConventions(nil)
	assert.Equal(t, "Concept", conv.ConceptLabel())
	assert.Equal(t, "Particular", conv.ParticularLabel())
	assert.Equal(t, "CANDIDATE_INSTANCE_OF", conv.CandidateRelType())
	assert.Equal(t, "INSTANCE_OF", conv.RatifiedRelType())
	assert.Equal(t, "IN_CLUSTER", conv.MembershipRelType())
	assert.Equal(t, "Form", conv.FormKind())
	assert.InDelta(t, 0.25, conv.DriftThreshold(), 1e-9)
}

func TestConventionsOverrides(t *testing.T) {
	conv := NewConventions(map[string]string{
		KeyConceptLabel:   "Kategorie",
		KeyDriftThreshold: "0.4",
		KeyFormKind:       "", // empty overrides are ignored
	})
	assert.Equal(t, "Kategorie", conv.ConceptLabel())
	assert.InDelta(t, 0.4, conv.DriftThreshold(), 1e-9)
	assert.Equal(t, "Form", conv.FormKind())
}

func TestConventionsGetUnknownKey(t *testing.T) {
	conv := NewConventions(nil)
	assert.Equal(t, "fallback", conv.Get("no_such_key", "fallback"))
}

func TestConventionsBadDriftThreshold(t *testing.T) {
	conv := NewConventions(map[string]string{KeyDriftThreshold: "not-a-number"})
	assert.InDelta(t, 0.25, conv.DriftThreshold(), 1e-9)
}
