package integrity

import (
	"fmt"

	"go.uber.org/zap"

	"ontogov/internal/ontology"
	apperrors "ontogov/pkg/errors"
	"ontogov/pkg/logger"
)

// Context carries provenance for audit logging of a rejected bundle.
type Context struct {
	InteractionID string
	SourceURIs    []string
}

// Guard validates a candidate graph-mutation bundle against structural
// invariants immediately before commit. Validation is pure: it sees only the
// in-memory bundle, never the live graph, and is all-or-nothing.
type Guard struct {
	conv   ontology.Conventions
	logger *zap.Logger
}

// NewGuard creates an ontology integrity guard
func NewGuard(conv ontology.Conventions) *Guard {
	return &Guard{
		conv:   conv,
		logger: logger.Named("integrity"),
	}
}

// Validate checks every invariant and returns an IntegrityViolation carrying
// the full violation list when any rule is breached. A nil return means the
// bundle may be committed.
func (g *Guard) Validate(bundle ontology.Bundle, vctx Context) error {
	var violations []apperrors.Violation

	violations = append(violations, g.checkConceptStatuses(bundle)...)
	violations = append(violations, g.checkOrphanParticulars(bundle)...)
	violations = append(violations, g.checkImplicitFormCreation(bundle)...)

	if len(violations) == 0 {
		return nil
	}

	g.logger.Warn("Bundle rejected",
		zap.Int("violations", len(violations)),
		zap.String("interaction_id", vctx.InteractionID),
		zap.Strings("source_uris", vctx.SourceURIs),
	)
	return apperrors.NewIntegrityViolation(violations, vctx.InteractionID, vctx.SourceURIs)
}

// checkConceptStatuses enforces that every Concept entering the graph is
// either proposed or canonical. Merged and rejected concepts are written
// only by governance transitions, never through a bundle.
func (g *Guard) checkConceptStatuses(bundle ontology.Bundle) []apperrors.Violation {
	var violations []apperrors.Violation
	for _, c := range bundle.Concepts {
		if c.Status != ontology.StatusProposed && c.Status != ontology.StatusCanonical {
			violations = append(violations, apperrors.Violation{
				Code:    apperrors.CodeInvalidConceptStatus,
				Message: fmt.Sprintf("concept %s has status %q, expected proposed or canonical", c.ID, c.Status),
				NodeID:  c.ID,
			})
		}
	}
	return violations
}

// checkOrphanParticulars enforces that every Particular resolves to a
// Concept within the bundle, via an explicit concept reference or an
// outgoing classification edge. A silent orphan raises both codes so the
// audit log captures the missing edge and the orphaned node.
func (g *Guard) checkOrphanParticulars(bundle ontology.Bundle) []apperrors.Violation {
	classified := map[string]bool{}
	candidateRel := g.conv.CandidateRelType()
	ratifiedRel := g.conv.RatifiedRelType()
	for _, rel := range bundle.Relationships {
		if rel.Type == ratifiedRel || rel.Type == candidateRel {
			classified[rel.FromID] = true
		}
	}

	var violations []apperrors.Violation
	for _, p := range bundle.Particulars {
		if p.ConceptID != "" || classified[p.ID] {
			continue
		}
		violations = append(violations,
			apperrors.Violation{
				Code:    apperrors.CodeParticularMissingInstance,
				Message: fmt.Sprintf("particular %s has no %s edge in bundle", p.ID, ratifiedRel),
				NodeID:  p.ID,
			},
			apperrors.Violation{
				Code:    apperrors.CodeOrphanParticular,
				Message: fmt.Sprintf("particular %s resolves to no concept", p.ID),
				NodeID:  p.ID,
			},
		)
	}
	return violations
}

// checkImplicitFormCreation forbids a Particular from referencing a
// top-level Form concept that the bundle does not itself carry: Forms are
// never invented from a dangling reference.
func (g *Guard) checkImplicitFormCreation(bundle ontology.Bundle) []apperrors.Violation {
	present := map[string]bool{}
	for _, c := range bundle.Concepts {
		present[c.ID] = true
	}

	formKind := g.conv.FormKind()
	var violations []apperrors.Violation
	for _, p := range bundle.Particulars {
		if p.ConceptID == "" || p.ConceptKind != formKind {
			continue
		}
		if !present[p.ConceptID] {
			violations = append(violations, apperrors.Violation{
				Code:    apperrors.CodeAutomaticFormCreation,
				Message: fmt.Sprintf("particular %s references %s-kind concept %s absent from bundle", p.ID, formKind, p.ConceptID),
				NodeID:  p.ID,
			})
		}
	}
	return violations
}
