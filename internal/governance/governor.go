package governance

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ontogov/internal/graph"
	"ontogov/internal/ontology"
	apperrors "ontogov/pkg/errors"
	"ontogov/pkg/logger"
)

// PromotionResult reports a completed promotion.
type PromotionResult struct {
	ConceptID              string                 `json:"concept_id"`
	Status                 string                 `json:"status"`
	ConvertedRelationships int                    `json:"converted_relationships"`
	Provenance             map[string]interface{} `json:"provenance"`
}

// MergeResult reports a completed merge.
type MergeResult struct {
	SourceID               string `json:"source_concept_id"`
	TargetID               string `json:"target_concept_id"`
	RepointedRelationships int    `json:"repointed_relationships"`
}

// Governor is the authoritative state machine for Concept status. Every
// transition executes as a single conditional transaction keyed on the
// expected current status, so two concurrent callers cannot both convert
// the same candidate edges.
type Governor struct {
	store  graph.Store
	conv   ontology.Conventions
	logger *zap.Logger
}

// NewGovernor creates a concept lifecycle governor
func NewGovernor(store graph.Store, conv ontology.Conventions) *Governor {
	return &Governor{
		store:  store,
		conv:   conv,
		logger: logger.Named("governance"),
	}
}

// ProposeConceptFromCluster MERGE-creates or updates a proposed Concept and
// one candidate-classification edge per particular id. Idempotent: identical
// inputs derive the same concept id and leave exactly one edge per
// particular.
func (g *Governor) ProposeConceptFromCluster(ctx context.Context, clusterID, parentForm string, particularIDs []string, algorithm string, createdAt time.Time, provenance map[string]interface{}) (string, error) {
	conceptID := ontology.HypothesisID(parentForm, algorithm, clusterID, particularIDs)
	now := time.Now().UTC().Format(time.RFC3339)
	created := createdAt.UTC().Format(time.RFC3339)

	err := g.store.RunInTx(ctx, func(tx graph.Tx) error {
		conceptQuery := fmt.Sprintf(`
			MERGE (c:%s {id: $id})
			ON CREATE SET c.status = $proposed, c.created_at = datetime($createdAt)
			SET c.parent_form = $parentForm,
			    c.algorithm = $algorithm,
			    c.cluster_id = $clusterId,
			    c.provenance_review_required = true,
			    c.updated_at = datetime($now)
			SET c += $provenance
		`, g.conv.ConceptLabel())
		params := map[string]interface{}{
			"id":         conceptID,
			"proposed":   ontology.StatusProposed,
			"parentForm": parentForm,
			"algorithm":  algorithm,
			"clusterId":  clusterID,
			"createdAt":  created,
			"now":        now,
			"provenance": provenanceProps(provenance),
		}
		if _, err := tx.Run(ctx, conceptQuery, params); err != nil {
			return fmt.Errorf("failed to merge proposed concept: %w", err)
		}

		for _, pid := range particularIDs {
			edgeQuery := fmt.Sprintf(`
				MATCH (c:%s {id: $conceptId})
				MERGE (p:%s {id: $particularId})
				MERGE (p)-[r:%s]->(c)
				ON CREATE SET r.algorithm = $algorithm, r.created_at = datetime($createdAt)
			`, g.conv.ConceptLabel(), g.conv.ParticularLabel(), g.conv.CandidateRelType())
			if _, err := tx.Run(ctx, edgeQuery, map[string]interface{}{
				"conceptId":    conceptID,
				"particularId": pid,
				"algorithm":    algorithm,
				"createdAt":    created,
			}); err != nil {
				return fmt.Errorf("failed to merge candidate edge for %s: %w", pid, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	g.logger.Info("Concept proposed from cluster",
		zap.String("concept_id", conceptID),
		zap.String("cluster_id", clusterID),
		zap.Int("particulars", len(particularIDs)),
		zap.String("algorithm", algorithm),
	)
	return conceptID, nil
}

// PromoteProposedConcept promotes only when manualTrigger is set: clusters
// never self-promote. Returns false with zero graph mutation otherwise.
func (g *Governor) PromoteProposedConcept(ctx context.Context, conceptID string, manualTrigger bool, promotedBy string) (bool, *PromotionResult, error) {
	if !manualTrigger {
		g.logger.Info("Promotion skipped: manual trigger required",
			zap.String("concept_id", conceptID),
		)
		return false, nil, nil
	}
	result, err := g.PromoteConcept(ctx, conceptID, promotedBy)
	if err != nil {
		return false, nil, err
	}
	return true, result, nil
}

// PromoteConcept atomically converts every candidate-classification edge on
// the concept into a ratified edge, preserving the original metadata and
// stamping promotion metadata, then sets status=canonical. The whole
// transition runs in one transaction conditioned on status=proposed.
func (g *Governor) PromoteConcept(ctx context.Context, conceptID, promotedBy string) (*PromotionResult, error) {
	conceptLabel := g.conv.ConceptLabel()
	now := time.Now().UTC().Format(time.RFC3339)

	var result *PromotionResult
	err := g.store.RunInTx(ctx, func(tx graph.Tx) error {
		if err := g.assertProposed(ctx, tx, conceptID); err != nil {
			return err
		}

		// Conversion preserves r's properties and stamps promotion
		// metadata; conditioning on status keeps a concurrent promote
		// from double-converting.
		convertQuery := fmt.Sprintf(`
			MATCH (n)-[r:%s]->(c:%s {id: $id, status: $proposed})
			CREATE (n)-[i:%s]->(c)
			SET i = properties(r),
			    i.promoted_at = datetime($now),
			    i.promoted_by = $promotedBy
			DELETE r
			RETURN count(i) AS converted
		`, g.conv.CandidateRelType(), conceptLabel, g.conv.RatifiedRelType())
		records, err := tx.Run(ctx, convertQuery, map[string]interface{}{
			"id":         conceptID,
			"proposed":   ontology.StatusProposed,
			"promotedBy": promotedBy,
			"now":        now,
		})
		if err != nil {
			return fmt.Errorf("failed to convert candidate edges: %w", err)
		}
		converted := 0
		if len(records) > 0 {
			converted = graph.GetInt(records[0], "converted")
		}

		statusQuery := fmt.Sprintf(`
			MATCH (c:%s {id: $id, status: $proposed})
			SET c.status = $canonical,
			    c.promoted_at = datetime($now),
			    c.promoted_by = $promotedBy,
			    c.updated_at = datetime($now)
			RETURN c.id AS id
		`, conceptLabel)
		records, err = tx.Run(ctx, statusQuery, map[string]interface{}{
			"id":         conceptID,
			"proposed":   ontology.StatusProposed,
			"canonical":  ontology.StatusCanonical,
			"promotedBy": promotedBy,
			"now":        now,
		})
		if err != nil {
			return fmt.Errorf("failed to set canonical status: %w", err)
		}
		if len(records) == 0 {
			// A concurrent writer changed the status between our
			// assertion and the update; the condition saved us.
			return apperrors.NewGovernanceError(apperrors.CodeConceptNotProposed, conceptID, "concept is no longer proposed")
		}

		result = &PromotionResult{
			ConceptID:              conceptID,
			Status:                 ontology.StatusCanonical,
			ConvertedRelationships: converted,
			Provenance: map[string]interface{}{
				"promoted_by": promotedBy,
				"promoted_at": now,
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	g.logger.Info("Concept promoted",
		zap.String("concept_id", conceptID),
		zap.String("promoted_by", promotedBy),
		zap.Int("converted_relationships", result.ConvertedRelationships),
	)
	return result, nil
}

// MergeProposedConcept repoints every candidate edge from source to target
// and marks the source merged. The target's own status is deliberately not
// validated; a warning is logged when the target is not canonical so merge
// chains into unreviewed targets are at least visible.
func (g *Governor) MergeProposedConcept(ctx context.Context, sourceID, targetID, mergedBy string) (*MergeResult, error) {
	conceptLabel := g.conv.ConceptLabel()
	candidateRel := g.conv.CandidateRelType()
	now := time.Now().UTC().Format(time.RFC3339)

	var result *MergeResult
	err := g.store.RunInTx(ctx, func(tx graph.Tx) error {
		if err := g.assertProposed(ctx, tx, sourceID); err != nil {
			return err
		}

		targetStatus, err := g.fetchStatus(ctx, tx, targetID)
		if err != nil {
			return err
		}
		if targetStatus == "" {
			return apperrors.NewGovernanceError(apperrors.CodeConceptNotFound, targetID, "merge target not found")
		}
		if targetStatus != ontology.StatusCanonical {
			g.logger.Warn("Merging into a non-canonical target",
				zap.String("source_id", sourceID),
				zap.String("target_id", targetID),
				zap.String("target_status", targetStatus),
			)
		}

		repointQuery := fmt.Sprintf(`
			MATCH (n)-[r:%s]->(src:%s {id: $sourceId, status: $proposed})
			MATCH (tgt:%s {id: $targetId})
			MERGE (n)-[r2:%s]->(tgt)
			ON CREATE SET r2 = properties(r), r2.merged_from = $sourceId
			DELETE r
			RETURN count(r2) AS repointed
		`, candidateRel, conceptLabel, conceptLabel, candidateRel)
		records, err := tx.Run(ctx, repointQuery, map[string]interface{}{
			"sourceId": sourceID,
			"targetId": targetID,
			"proposed": ontology.StatusProposed,
		})
		if err != nil {
			return fmt.Errorf("failed to repoint candidate edges: %w", err)
		}
		repointed := 0
		if len(records) > 0 {
			repointed = graph.GetInt(records[0], "repointed")
		}

		statusQuery := fmt.Sprintf(`
			MATCH (c:%s {id: $sourceId, status: $proposed})
			SET c.status = $merged,
			    c.provenance_target_concept_id = $targetId,
			    c.provenance_merged_by = $mergedBy,
			    c.merged_at = datetime($now),
			    c.updated_at = datetime($now)
			RETURN c.id AS id
		`, conceptLabel)
		records, err = tx.Run(ctx, statusQuery, map[string]interface{}{
			"sourceId": sourceID,
			"targetId": targetID,
			"proposed": ontology.StatusProposed,
			"merged":   ontology.StatusMerged,
			"mergedBy": mergedBy,
			"now":      now,
		})
		if err != nil {
			return fmt.Errorf("failed to set merged status: %w", err)
		}
		if len(records) == 0 {
			return apperrors.NewGovernanceError(apperrors.CodeConceptNotProposed, sourceID, "concept is no longer proposed")
		}

		result = &MergeResult{
			SourceID:               sourceID,
			TargetID:               targetID,
			RepointedRelationships: repointed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	g.logger.Info("Concept merged",
		zap.String("source_id", sourceID),
		zap.String("target_id", targetID),
		zap.String("merged_by", mergedBy),
		zap.Int("repointed_relationships", result.RepointedRelationships),
	)
	return result, nil
}

// RejectProposedConcept marks the concept rejected with audit provenance.
// Candidate edges survive untouched: rejection is a record, not an erasure.
func (g *Governor) RejectProposedConcept(ctx context.Context, conceptID, rejectedBy, reason string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	err := g.store.RunInTx(ctx, func(tx graph.Tx) error {
		if err := g.assertProposed(ctx, tx, conceptID); err != nil {
			return err
		}

		statusQuery := fmt.Sprintf(`
			MATCH (c:%s {id: $id, status: $proposed})
			SET c.status = $rejected,
			    c.provenance_reason = $reason,
			    c.provenance_rejected_by = $rejectedBy,
			    c.rejected_at = datetime($now),
			    c.updated_at = datetime($now)
			RETURN c.id AS id
		`, g.conv.ConceptLabel())
		records, err := tx.Run(ctx, statusQuery, map[string]interface{}{
			"id":         conceptID,
			"proposed":   ontology.StatusProposed,
			"rejected":   ontology.StatusRejected,
			"reason":     reason,
			"rejectedBy": rejectedBy,
			"now":        now,
		})
		if err != nil {
			return fmt.Errorf("failed to set rejected status: %w", err)
		}
		if len(records) == 0 {
			return apperrors.NewGovernanceError(apperrors.CodeConceptNotProposed, conceptID, "concept is no longer proposed")
		}
		return nil
	})
	if err != nil {
		return err
	}

	g.logger.Info("Concept rejected",
		zap.String("concept_id", conceptID),
		zap.String("rejected_by", rejectedBy),
		zap.String("reason", reason),
	)
	return nil
}

// assertProposed fails with a typed GovernanceError unless the concept
// exists with status=proposed. Runs inside the caller's transaction so the
// check and the mutation commit together.
func (g *Governor) assertProposed(ctx context.Context, tx graph.Tx, conceptID string) error {
	status, err := g.fetchStatus(ctx, tx, conceptID)
	if err != nil {
		return err
	}
	if status == "" {
		return apperrors.NewGovernanceError(apperrors.CodeConceptNotFound, conceptID, "concept not found")
	}
	if status != ontology.StatusProposed {
		return apperrors.NewGovernanceError(apperrors.CodeConceptNotProposed, conceptID, fmt.Sprintf("concept status is %q", status))
	}
	return nil
}

func (g *Governor) fetchStatus(ctx context.Context, tx graph.Tx, conceptID string) (string, error) {
	query := fmt.Sprintf(`
		MATCH (c:%s {id: $id})
		RETURN c.status AS status
	`, g.conv.ConceptLabel())
	records, err := tx.Run(ctx, query, map[string]interface{}{"id": conceptID})
	if err != nil {
		return "", fmt.Errorf("failed to fetch concept status: %w", err)
	}
	if len(records) == 0 {
		return "", nil
	}
	return graph.GetString(records[0], "status"), nil
}

// provenanceProps prefixes provenance keys for storage as node properties.
// Only scalar values are carried.
func provenanceProps(provenance map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	for k, v := range provenance {
		switch v.(type) {
		case string, bool, int, int64, float64:
			out["provenance_"+k] = v
		}
	}
	return out
}
