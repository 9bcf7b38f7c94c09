package integrity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ontogov/internal/ontology"
	apperrors "ontogov/pkg/errors"
)

func newGuard() *Guard {
	return NewGuard(ontology.NewConventions(nil))
}

func validate(t *testing.T, bundle ontology.Bundle) *apperrors.IntegrityViolation {
	t.Helper()
	err := newGuard().Validate(bundle, Context{InteractionID: "interaction-1", SourceURIs: []string{"doc://source"}})
	require.Error(t, err)
	iv, ok := apperrors.AsIntegrityViolation(err)
	require.True(t, ok)
	return iv
}

func TestValidateAcceptsConceptReference(t *testing.T) {
	bundle := ontology.Bundle{
		Concepts: []ontology.Concept{
			{ID: "concept-1", Status: ontology.StatusProposed},
		},
		Particulars: []ontology.Particular{
			{ID: "particular-1", ConceptID: "concept-1"},
		},
	}
	assert.NoError(t, newGuard().Validate(bundle, Context{}))
}

func TestValidateAcceptsClassificationEdge(t *testing.T) {
	bundle := ontology.Bundle{
		Concepts: []ontology.Concept{
			{ID: "concept-1", Status: ontology.StatusCanonical},
		},
		Particulars: []ontology.Particular{
			{ID: "particular-1"},
			{ID: "particular-2"},
		},
		Relationships: []ontology.Relationship{
			{FromID: "particular-1", ToID: "concept-1", Type: "INSTANCE_OF"},
			{FromID: "particular-2", ToID: "concept-1", Type: "CANDIDATE_INSTANCE_OF"},
		},
	}
	assert.NoError(t, newGuard().Validate(bundle, Context{}))
}

func TestValidateRejectsInvalidConceptStatus(t *testing.T) {
	bundle := ontology.Bundle{
		Concepts: []ontology.Concept{
			{ID: "concept-1", Status: "draft"},
		},
	}
	iv := validate(t, bundle)
	assert.True(t, iv.HasViolation(apperrors.CodeInvalidConceptStatus))
	require.Len(t, iv.Violations, 1)
	assert.Equal(t, "concept-1", iv.Violations[0].NodeID)
}

func TestValidateRejectsMergedStatusInBundle(t *testing.T) {
	// Merged and rejected are governance-only transitions, never bundle input
	for _, status := range []string{ontology.StatusMerged, ontology.StatusRejected} {
		bundle := ontology.Bundle{
			Concepts: []ontology.Concept{{ID: "concept-1", Status: status}},
		}
		iv := validate(t, bundle)
		assert.True(t, iv.HasViolation(apperrors.CodeInvalidConceptStatus), status)
	}
}

func TestValidateOrphanParticularRaisesBothCodes(t *testing.T) {
	bundle := ontology.Bundle{
		Particulars: []ontology.Particular{
			{ID: "particular-orphan"},
		},
	}
	iv := validate(t, bundle)
	assert.True(t, iv.HasViolation(apperrors.CodeParticularMissingInstance))
	assert.True(t, iv.HasViolation(apperrors.CodeOrphanParticular))
	assert.Len(t, iv.Violations, 2)
	for _, v := range iv.Violations {
		assert.Equal(t, "particular-orphan", v.NodeID)
	}
}

func TestValidateEdgeOfOtherTypeDoesNotClassify(t *testing.T) {
	bundle := ontology.Bundle{
		Particulars: []ontology.Particular{
			{ID: "particular-1"},
		},
		Relationships: []ontology.Relationship{
			{FromID: "particular-1", ToID: "concept-1", Type: "MENTIONED_IN"},
		},
	}
	iv := validate(t, bundle)
	assert.True(t, iv.HasViolation(apperrors.CodeOrphanParticular))
}

func TestValidateForbidsImplicitFormCreation(t *testing.T) {
	bundle := ontology.Bundle{
		Particulars: []ontology.Particular{
			{ID: "particular-1", ConceptID: "concept-form", ConceptKind: "Form"},
		},
	}
	iv := validate(t, bundle)
	assert.True(t, iv.HasViolation(apperrors.CodeAutomaticFormCreation))
}

func TestValidateFormReferenceResolvedInBundle(t *testing.T) {
	bundle := ontology.Bundle{
		Concepts: []ontology.Concept{
			{ID: "concept-form", Status: ontology.StatusCanonical},
		},
		Particulars: []ontology.Particular{
			{ID: "particular-1", ConceptID: "concept-form", ConceptKind: "Form"},
		},
	}
	assert.NoError(t, newGuard().Validate(bundle, Context{}))
}

func TestValidateNonFormKindReferenceUnchecked(t *testing.T) {
	// Only Form-kind references require the concept in the bundle
	bundle := ontology.Bundle{
		Particulars: []ontology.Particular{
			{ID: "particular-1", ConceptID: "concept-category", ConceptKind: "Category"},
		},
	}
	assert.NoError(t, newGuard().Validate(bundle, Context{}))
}

func TestValidateAggregatesAllViolations(t *testing.T) {
	bundle := ontology.Bundle{
		Concepts: []ontology.Concept{
			{ID: "concept-bad", Status: "draft"},
		},
		Particulars: []ontology.Particular{
			{ID: "particular-orphan"},
			{ID: "particular-form", ConceptID: "concept-missing-form", ConceptKind: "Form"},
		},
	}
	iv := validate(t, bundle)

	// All rules report in one pass: nothing is committed, nothing hidden
	assert.True(t, iv.HasViolation(apperrors.CodeInvalidConceptStatus))
	assert.True(t, iv.HasViolation(apperrors.CodeParticularMissingInstance))
	assert.True(t, iv.HasViolation(apperrors.CodeOrphanParticular))
	assert.True(t, iv.HasViolation(apperrors.CodeAutomaticFormCreation))
	assert.Len(t, iv.Violations, 4)
	assert.Equal(t, "interaction-1", iv.InteractionID)
	assert.Equal(t, []string{"doc://source"}, iv.SourceURIs)
}

func TestValidateEmptyBundle(t *testing.T) {
	assert.NoError(t, newGuard().Validate(ontology.Bundle{}, Context{}))
}
