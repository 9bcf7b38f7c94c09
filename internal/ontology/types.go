package ontology

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// ============================================================================
// Governed Ontology Types
// ============================================================================

// Concept status values. Merged and rejected are terminal; canonical is
// stable but may still be merged or rejected by an explicit governance
// action.
const (
	StatusProposed  = "proposed"
	StatusCanonical = "canonical"
	StatusMerged    = "merged"
	StatusRejected  = "rejected"
)

// Concept is a governed, named ontology category that Particulars can be
// classified under. The required core is explicit; everything else rides in
// the open Props map so the schema can evolve without migrations.
type Concept struct {
	ID         string                 `json:"id"`
	Status     string                 `json:"status"`
	Kind       string                 `json:"kind"`
	ParentForm string                 `json:"parent_form,omitempty"`
	Centroids  map[string][]float32   `json:"centroids,omitempty"` // keyed by embedding space
	Cohesion   float64                `json:"cohesion_score,omitempty"`
	Provenance map[string]interface{} `json:"provenance,omitempty"`
	CreatedAt  time.Time              `json:"created_at,omitempty"`
	UpdatedAt  time.Time              `json:"updated_at,omitempty"`
	Props      map[string]interface{} `json:"props,omitempty"`
}

// Particular is a concrete, ungeneralized instance extracted from source
// material, awaiting classification under a Concept.
type Particular struct {
	ID          string                 `json:"id"`
	ConceptID   string                 `json:"concept_id,omitempty"`
	ConceptKind string                 `json:"concept_kind,omitempty"`
	Props       map[string]interface{} `json:"props,omitempty"`
}

// Relationship is a candidate graph edge inside a mutation bundle.
type Relationship struct {
	FromID string                 `json:"from_id"`
	ToID   string                 `json:"to_id"`
	Type   string                 `json:"type"`
	Props  map[string]interface{} `json:"props,omitempty"`
}

// Bundle is a candidate graph-mutation bundle: the closure of nodes and
// relationships about to be committed together. Integrity validation runs
// over the bundle alone, never the live graph.
type Bundle struct {
	Concepts      []Concept      `json:"concepts,omitempty"`
	Particulars   []Particular   `json:"particulars,omitempty"`
	Relationships []Relationship `json:"relationships,omitempty"`
}

// HypothesisID derives the stable id for an algorithmically generated
// Concept from its membership signature. Re-running the same clustering over
// an unchanged member set yields the same id, so periodic runs MERGE into
// one proposal instead of multiplying near-duplicates.
func HypothesisID(kind, algorithm, seed string, memberIDs []string) string {
	sorted := make([]string, len(memberIDs))
	copy(sorted, memberIDs)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{'|'})
	h.Write([]byte(algorithm))
	h.Write([]byte{'|'})
	h.Write([]byte(seed))
	h.Write([]byte{'|'})
	h.Write([]byte(strings.Join(sorted, ",")))
	return "concept-" + hex.EncodeToString(h.Sum(nil))[:32]
}
