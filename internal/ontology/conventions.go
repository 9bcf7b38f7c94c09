package ontology

import "strconv"

// ============================================================================
// Schema Conventions
// ============================================================================

// Convention keys. Labels and relationship types are never hard-coded in
// Cypher outside this lookup, so deployments can rename them without code
// changes.
const (
	KeyConceptLabel     = "concept_label"
	KeyParticularLabel  = "particular_label"
	KeyInteractionLabel = "interaction_label"
	KeyCandidateRelType = "candidate_instance_of_rel"
	KeyRatifiedRelType  = "instance_of_rel"
	KeyMembershipRel    = "in_cluster_rel"
	KeyFormKind         = "form_kind"
	KeyHypothesisKind   = "hypothesis_kind"
	KeyReviewLabel      = "review_item_label"
	KeyReviewRelType    = "has_review_rel"
	KeyDriftThreshold   = "drift_threshold"
)

var conventionDefaults = map[string]string{
	KeyConceptLabel:     "Concept",
	KeyParticularLabel:  "Particular",
	KeyInteractionLabel: "Interaction",
	KeyCandidateRelType: "CANDIDATE_INSTANCE_OF",
	KeyRatifiedRelType:  "INSTANCE_OF",
	KeyMembershipRel:    "IN_CLUSTER",
	KeyFormKind:         "Form",
	KeyHypothesisKind:   "Category",
	KeyReviewLabel:      "ReviewItem",
	KeyReviewRelType:    "HAS_REVIEW",
	KeyDriftThreshold:   "0.25",
}

// Conventions is an injected value object resolving configurable label and
// relationship-type names. Components receive it at construction; there is
// no process-global convention store.
type Conventions struct {
	values map[string]string
}

// NewConventions builds a Conventions value with the given overrides on top
// of the defaults. A nil map yields pure defaults.
func NewConventions(overrides map[string]string) Conventions {
	values := make(map[string]string, len(conventionDefaults)+len(overrides))
	for k, v := range conventionDefaults {
		values[k] = v
	}
	for k, v := range overrides {
		if v != "" {
			values[k] = v
		}
	}
	return Conventions{values: values}
}

// Get returns the convention value for key, or defaultValue when the key is
// unknown.
func (c Conventions) Get(key, defaultValue string) string {
	if v, ok := c.values[key]; ok {
		return v
	}
	return defaultValue
}

func (c Conventions) ConceptLabel() string     { return c.Get(KeyConceptLabel, "Concept") }
func (c Conventions) ParticularLabel() string  { return c.Get(KeyParticularLabel, "Particular") }
func (c Conventions) InteractionLabel() string { return c.Get(KeyInteractionLabel, "Interaction") }
func (c Conventions) CandidateRelType() string {
	return c.Get(KeyCandidateRelType, "CANDIDATE_INSTANCE_OF")
}
func (c Conventions) RatifiedRelType() string   { return c.Get(KeyRatifiedRelType, "INSTANCE_OF") }
func (c Conventions) MembershipRelType() string { return c.Get(KeyMembershipRel, "IN_CLUSTER") }
func (c Conventions) FormKind() string          { return c.Get(KeyFormKind, "Form") }
func (c Conventions) HypothesisKind() string    { return c.Get(KeyHypothesisKind, "Category") }
func (c Conventions) ReviewLabel() string       { return c.Get(KeyReviewLabel, "ReviewItem") }
func (c Conventions) ReviewRelType() string     { return c.Get(KeyReviewRelType, "HAS_REVIEW") }

// DriftThreshold parses the configured centroid-drift threshold, falling
// back to the default when the value is not a number.
func (c Conventions) DriftThreshold() float64 {
	raw := c.Get(KeyDriftThreshold, "0.25")
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return 0.25
}
