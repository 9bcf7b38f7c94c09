package cluster

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ontogov/internal/embedding"
	"ontogov/internal/graph"
	"ontogov/internal/ontology"
	"ontogov/pkg/logger"
)

// Embedding space names, used as centroid property suffixes.
const (
	SpaceText  = "text"
	SpaceGraph = "graph"
)

const embedBatchSize = 64

// Config holds clustering run parameters
type Config struct {
	ExemplarLimit  int
	NeighborLimit  int
	CommunityK     int
	Namespace      string  // seed folded into hypothesis ids
	DriftThreshold float64 // 0 means take the conventions value
}

// RunOptions selects which generators a run executes
type RunOptions struct {
	Density   bool
	Community bool
	UpdatedAt time.Time
}

// RunResult reports what a clustering run wrote
type RunResult struct {
	ClustersCreated    int `json:"clusters_created"`
	MembershipsCreated int `json:"memberships_created"`
}

// member is one clusterable entity: a text-space Particular/Interaction or a
// graph-space Concept.
type member struct {
	ID    string
	Label string
	Text  string
}

// hypothesis is one cluster materialized as a proposed Concept.
type hypothesis struct {
	ID          string
	Kind        string
	Algorithm   string
	Space       string
	Centroid    []float32
	Cohesion    float64
	Members     []member
	Confidences []float64 // parallel to Members
	Exemplars   []string  // Particular ids ranked by similarity to centroid
	Neighbors   []string  // nearest canonical concept ids, reviewer context
}

// Engine periodically groups embeddings into hypothesis clusters and
// materializes each as a proposed Concept awaiting governance review.
// Runs are single-writer and out-of-band; hypotheses written before a
// mid-run failure remain durable.
type Engine struct {
	store     graph.Store
	provider  embedding.Provider
	conv      ontology.Conventions
	schema    *graph.SchemaRegistry
	density   Backend
	community Backend
	cfg       Config
	logger    *zap.Logger
}

// NewEngine creates a clustering engine. A nil density or community backend
// selects the corresponding deterministic fallback.
func NewEngine(store graph.Store, provider embedding.Provider, conv ontology.Conventions, schema *graph.SchemaRegistry, density, community Backend, cfg Config) *Engine {
	if density == nil {
		density = CentroidFallback{}
	}
	if community == nil {
		community = NewComponentsFallback(cfg.CommunityK)
	}
	if cfg.ExemplarLimit <= 0 {
		cfg.ExemplarLimit = 5
	}
	if cfg.NeighborLimit <= 0 {
		cfg.NeighborLimit = 5
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "ontogov"
	}
	if cfg.DriftThreshold <= 0 {
		cfg.DriftThreshold = conv.DriftThreshold()
	}
	return &Engine{
		store:     store,
		provider:  provider,
		conv:      conv,
		schema:    schema,
		density:   density,
		community: community,
		cfg:       cfg,
		logger:    logger.Named("cluster"),
	}
}

// Run executes the selected generators and writes the resulting hypotheses.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	result := &RunResult{}

	if opts.Density {
		if err := e.runDensity(ctx, opts, result); err != nil {
			return result, fmt.Errorf("density clustering failed: %w", err)
		}
	}
	if opts.Community {
		if err := e.runCommunity(ctx, opts, result); err != nil {
			return result, fmt.Errorf("community clustering failed: %w", err)
		}
	}

	e.recordShapes(ctx)

	e.logger.Info("Clustering run complete",
		zap.Int("clusters_created", result.ClustersCreated),
		zap.Int("memberships_created", result.MembershipsCreated),
		zap.String("density_backend", e.density.Name()),
		zap.String("community_backend", e.community.Name()),
	)
	return result, nil
}

// runDensity clusters text embeddings of unmatched Particulars and
// Interactions, discarding noise points.
func (e *Engine) runDensity(ctx context.Context, opts RunOptions, result *RunResult) error {
	members, err := e.loadUnmatched(ctx)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		e.logger.Debug("No unmatched entities to cluster")
		return nil
	}

	points, err := e.embedMembers(ctx, members)
	if err != nil {
		return err
	}

	labels, err := e.density.Cluster(points)
	if err != nil {
		return fmt.Errorf("backend %s: %w", e.density.Name(), err)
	}

	neighbors, err := e.loadCanonicalCentroids(ctx, SpaceText)
	if err != nil {
		return err
	}

	for _, group := range groupByLabel(labels) {
		hyp := e.buildHypothesis(members, points, group, e.density.Name(), SpaceText, neighbors)
		if err := e.writeHypothesis(ctx, hyp, opts.UpdatedAt); err != nil {
			return err
		}
		result.ClustersCreated++
		result.MembershipsCreated += len(hyp.Members)
	}
	return nil
}

// runCommunity clusters graph embeddings of existing Concepts over their
// relationship structure.
func (e *Engine) runCommunity(ctx context.Context, opts RunOptions, result *RunResult) error {
	ids, edges, err := e.loadConceptGraph(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		e.logger.Debug("No concepts to cluster")
		return nil
	}

	vectors, err := e.provider.EmbedGraph(ctx, ids, edges)
	if err != nil {
		return fmt.Errorf("failed to embed concept graph: %w", err)
	}

	members := make([]member, len(ids))
	points := make([][]float32, len(ids))
	for i, id := range ids {
		members[i] = member{ID: id, Label: e.conv.ConceptLabel()}
		points[i] = vectors[id]
	}

	labels, err := e.community.Cluster(points)
	if err != nil {
		return fmt.Errorf("backend %s: %w", e.community.Name(), err)
	}

	neighbors, err := e.loadCanonicalCentroids(ctx, SpaceGraph)
	if err != nil {
		return err
	}

	for _, group := range groupByLabel(labels) {
		// Single-member communities carry no grouping signal
		if len(group) < 2 {
			continue
		}
		hyp := e.buildHypothesis(members, points, group, e.community.Name(), SpaceGraph, neighbors)
		if err := e.writeHypothesis(ctx, hyp, opts.UpdatedAt); err != nil {
			return err
		}
		result.ClustersCreated++
		result.MembershipsCreated += len(hyp.Members)
	}
	return nil
}

// loadUnmatched returns Particulars and Interactions with neither a concept
// reference nor a classification edge.
func (e *Engine) loadUnmatched(ctx context.Context) ([]member, error) {
	var members []member
	for _, label := range []string{e.conv.ParticularLabel(), e.conv.InteractionLabel()} {
		query := fmt.Sprintf(`
			MATCH (p:%s)
			WHERE p.concept_id IS NULL
			  AND NOT (p)-[:%s|%s]->(:%s)
			RETURN p.id AS id, coalesce(p.text, p.name, p.value, '') AS text
		`, label, e.conv.CandidateRelType(), e.conv.RatifiedRelType(), e.conv.ConceptLabel())

		records, err := e.store.Run(ctx, query, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to load unmatched %s nodes: %w", label, err)
		}
		for _, rec := range records {
			id := graph.GetString(rec, "id")
			if id == "" {
				continue
			}
			members = append(members, member{
				ID:    id,
				Label: label,
				Text:  graph.GetString(rec, "text"),
			})
		}
	}
	return members, nil
}

// loadConceptGraph returns ids of live concepts and the relationships among
// them.
func (e *Engine) loadConceptGraph(ctx context.Context) ([]string, []embedding.Edge, error) {
	conceptLabel := e.conv.ConceptLabel()

	nodeQuery := fmt.Sprintf(`
		MATCH (c:%s)
		WHERE c.status IN [$proposed, $canonical]
		RETURN c.id AS id
		ORDER BY c.id
	`, conceptLabel)
	records, err := e.store.Run(ctx, nodeQuery, map[string]interface{}{
		"proposed":  ontology.StatusProposed,
		"canonical": ontology.StatusCanonical,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load concepts: %w", err)
	}
	var ids []string
	known := map[string]bool{}
	for _, rec := range records {
		id := graph.GetString(rec, "id")
		if id != "" {
			ids = append(ids, id)
			known[id] = true
		}
	}

	edgeQuery := fmt.Sprintf(`
		MATCH (a:%s)-[r]->(b:%s)
		RETURN a.id AS from, type(r) AS type, b.id AS to
	`, conceptLabel, conceptLabel)
	records, err = e.store.Run(ctx, edgeQuery, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load concept relationships: %w", err)
	}
	var edges []embedding.Edge
	for _, rec := range records {
		from := graph.GetString(rec, "from")
		to := graph.GetString(rec, "to")
		if known[from] && known[to] {
			edges = append(edges, embedding.Edge{
				From: from,
				To:   to,
				Type: graph.GetString(rec, "type"),
			})
		}
	}
	return ids, edges, nil
}

// embedMembers embeds member texts in concurrent batches.
func (e *Engine) embedMembers(ctx context.Context, members []member) ([][]float32, error) {
	points := make([][]float32, len(members))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for start := 0; start < len(members); start += embedBatchSize {
		start := start
		end := start + embedBatchSize
		if end > len(members) {
			end = len(members)
		}
		g.Go(func() error {
			texts := make([]string, end-start)
			for i := start; i < end; i++ {
				texts[i-start] = members[i].Text
			}
			vecs, err := e.provider.EmbedText(gctx, texts)
			if err != nil {
				return fmt.Errorf("failed to embed batch [%d:%d]: %w", start, end, err)
			}
			copy(points[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return points, nil
}

type canonicalCentroid struct {
	ID       string
	Centroid []float32
}

// loadCanonicalCentroids fetches canonical concept centroids for the given
// space, used to attach reviewer context to hypotheses.
func (e *Engine) loadCanonicalCentroids(ctx context.Context, space string) ([]canonicalCentroid, error) {
	query := fmt.Sprintf(`
		MATCH (c:%s)
		WHERE c.status = $canonical AND c.centroid_%s IS NOT NULL
		RETURN c.id AS id, c.centroid_%s AS centroid
	`, e.conv.ConceptLabel(), space, space)

	records, err := e.store.Run(ctx, query, map[string]interface{}{
		"canonical": ontology.StatusCanonical,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load canonical centroids: %w", err)
	}

	var out []canonicalCentroid
	for _, rec := range records {
		out = append(out, canonicalCentroid{
			ID:       graph.GetString(rec, "id"),
			Centroid: graph.GetVector(rec, "centroid"),
		})
	}
	return out, nil
}

// groupByLabel collects point indices per cluster label, dropping noise.
// Groups come back in ascending label order.
func groupByLabel(labels []int) [][]int {
	byLabel := map[int][]int{}
	for i, l := range labels {
		if l == Noise {
			continue
		}
		byLabel[l] = append(byLabel[l], i)
	}
	keys := make([]int, 0, len(byLabel))
	for l := range byLabel {
		keys = append(keys, l)
	}
	sort.Ints(keys)
	groups := make([][]int, 0, len(keys))
	for _, l := range keys {
		groups = append(groups, byLabel[l])
	}
	return groups
}

// buildHypothesis computes the derived fields of one cluster: stable id,
// centroid, cohesion, per-member confidence, exemplars and nearest canonical
// neighbors.
func (e *Engine) buildHypothesis(members []member, points [][]float32, group []int, algorithm, space string, canonical []canonicalCentroid) *hypothesis {
	hyp := &hypothesis{
		Kind:      e.conv.HypothesisKind(),
		Algorithm: algorithm,
		Space:     space,
	}

	vectors := make([][]float32, 0, len(group))
	memberIDs := make([]string, 0, len(group))
	for _, i := range group {
		hyp.Members = append(hyp.Members, members[i])
		vectors = append(vectors, points[i])
		memberIDs = append(memberIDs, members[i].ID)
	}

	hyp.ID = ontology.HypothesisID(hyp.Kind, algorithm, e.cfg.Namespace, memberIDs)
	hyp.Centroid = embedding.Centroid(vectors)
	hyp.Cohesion = embedding.Cohesion(vectors, hyp.Centroid)

	hyp.Confidences = make([]float64, len(vectors))
	for i, v := range vectors {
		hyp.Confidences[i] = embedding.Cosine(v, hyp.Centroid)
	}

	// Exemplars: Particular members ranked by similarity to the centroid
	type ranked struct {
		id   string
		conf float64
	}
	var particulars []ranked
	for i, m := range hyp.Members {
		if m.Label == e.conv.ParticularLabel() {
			particulars = append(particulars, ranked{id: m.ID, conf: hyp.Confidences[i]})
		}
	}
	sort.SliceStable(particulars, func(a, b int) bool {
		if particulars[a].conf != particulars[b].conf {
			return particulars[a].conf > particulars[b].conf
		}
		return particulars[a].id < particulars[b].id
	})
	limit := e.cfg.ExemplarLimit
	if limit > len(particulars) {
		limit = len(particulars)
	}
	for _, p := range particulars[:limit] {
		hyp.Exemplars = append(hyp.Exemplars, p.id)
	}

	// Nearest canonical concepts, reviewer context only
	type near struct {
		id  string
		sim float64
	}
	var nears []near
	for _, c := range canonical {
		if c.ID == "" || len(c.Centroid) == 0 {
			continue
		}
		nears = append(nears, near{id: c.ID, sim: embedding.Cosine(hyp.Centroid, c.Centroid)})
	}
	sort.SliceStable(nears, func(a, b int) bool {
		if nears[a].sim != nears[b].sim {
			return nears[a].sim > nears[b].sim
		}
		return nears[a].id < nears[b].id
	})
	nlimit := e.cfg.NeighborLimit
	if nlimit > len(nears) {
		nlimit = len(nears)
	}
	for _, n := range nears[:nlimit] {
		hyp.Neighbors = append(hyp.Neighbors, n.id)
	}

	return hyp
}

// writeHypothesis MERGEs the proposed Concept, its membership edges and the
// exemplar candidate edges in one transaction, then checks centroid drift.
func (e *Engine) writeHypothesis(ctx context.Context, hyp *hypothesis, updatedAt time.Time) error {
	conceptLabel := e.conv.ConceptLabel()
	now := time.Now().UTC().Format(time.RFC3339)

	prevCentroid, err := e.fetchCentroid(ctx, hyp.ID, hyp.Space)
	if err != nil {
		return err
	}

	err = e.store.RunInTx(ctx, func(tx graph.Tx) error {
		// Status set on create only, so a re-cluster of a promoted or
		// merged Concept cannot silently revert the governance decision.
		conceptQuery := fmt.Sprintf(`
			MERGE (c:%s {id: $id})
			ON CREATE SET c.status = $proposed, c.created_at = datetime($now)
			SET c.kind = $kind,
			    c.algorithm = $algorithm,
			    c.centroid_%s = $centroid,
			    c.cohesion_score = $cohesion,
			    c.exemplars = $exemplars,
			    c.nearest_canonical = $neighbors,
			    c.provenance_review_required = true,
			    c.provenance_run_at = datetime($runAt),
			    c.updated_at = datetime($now)
		`, conceptLabel, hyp.Space)
		if _, err := tx.Run(ctx, conceptQuery, map[string]interface{}{
			"id":        hyp.ID,
			"proposed":  ontology.StatusProposed,
			"kind":      hyp.Kind,
			"algorithm": hyp.Algorithm,
			"centroid":  graph.VectorParam(hyp.Centroid),
			"cohesion":  hyp.Cohesion,
			"exemplars": hyp.Exemplars,
			"neighbors": hyp.Neighbors,
			"runAt":     updatedAt.UTC().Format(time.RFC3339),
			"now":       now,
		}); err != nil {
			return fmt.Errorf("failed to merge hypothesis concept: %w", err)
		}

		for i, m := range hyp.Members {
			memberQuery := fmt.Sprintf(`
				MATCH (c:%s {id: $conceptId})
				MERGE (e:%s {id: $memberId})
				MERGE (e)-[m:%s]->(c)
				SET m.confidence = $confidence,
				    m.algorithm = $algorithm,
				    m.updated_at = datetime($now)
			`, conceptLabel, m.Label, e.conv.MembershipRelType())
			if _, err := tx.Run(ctx, memberQuery, map[string]interface{}{
				"conceptId":  hyp.ID,
				"memberId":   m.ID,
				"confidence": hyp.Confidences[i],
				"algorithm":  hyp.Algorithm,
				"now":        now,
			}); err != nil {
				return fmt.Errorf("failed to merge membership edge: %w", err)
			}
		}

		for _, pid := range hyp.Exemplars {
			candidateQuery := fmt.Sprintf(`
				MATCH (c:%s {id: $conceptId})
				MERGE (p:%s {id: $particularId})
				MERGE (p)-[r:%s]->(c)
				ON CREATE SET r.algorithm = $algorithm, r.created_at = datetime($now)
			`, conceptLabel, e.conv.ParticularLabel(), e.conv.CandidateRelType())
			if _, err := tx.Run(ctx, candidateQuery, map[string]interface{}{
				"conceptId":    hyp.ID,
				"particularId": pid,
				"algorithm":    hyp.Algorithm,
				"now":          now,
			}); err != nil {
				return fmt.Errorf("failed to merge candidate edge: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.checkDrift(ctx, hyp, prevCentroid)
	return nil
}

// fetchCentroid reads the previously stored centroid of a concept, nil when
// the concept or property does not exist.
func (e *Engine) fetchCentroid(ctx context.Context, conceptID, space string) ([]float32, error) {
	query := fmt.Sprintf(`
		MATCH (c:%s {id: $id})
		RETURN c.centroid_%s AS centroid
	`, e.conv.ConceptLabel(), space)
	records, err := e.store.Run(ctx, query, map[string]interface{}{"id": conceptID})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stored centroid: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return graph.GetVector(records[0], "centroid"), nil
}

// checkDrift compares the new centroid against the previously stored one
// and files a review item when the shift exceeds the threshold. Concept
// status is untouched; this is a signal for a human, not a transition.
func (e *Engine) checkDrift(ctx context.Context, hyp *hypothesis, prevCentroid []float32) {
	if len(prevCentroid) == 0 {
		return
	}
	drift := 1.0 - embedding.Cosine(prevCentroid, hyp.Centroid)
	if drift <= e.cfg.DriftThreshold {
		return
	}

	e.logger.Warn("Concept drift detected",
		zap.String("concept_id", hyp.ID),
		zap.Float64("drift", drift),
		zap.Float64("threshold", e.cfg.DriftThreshold),
	)

	query := fmt.Sprintf(`
		MATCH (c:%s {id: $conceptId})
		CREATE (r:%s {
			id: $reviewId,
			reason: 'concept_drift',
			drift: $drift,
			created_at: datetime($now)
		})
		CREATE (c)-[:%s]->(r)
	`, e.conv.ConceptLabel(), e.conv.ReviewLabel(), e.conv.ReviewRelType())
	if _, err := e.store.Run(ctx, query, map[string]interface{}{
		"conceptId": hyp.ID,
		"reviewId":  uuid.New().String(),
		"drift":     drift,
		"now":       time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		e.logger.Error("Failed to create drift review item",
			zap.String("concept_id", hyp.ID),
			zap.Error(err),
		)
	}
}

// recordShapes records the node and relationship shapes this run writes into
// the self-describing schema store. Metadata only; failures are logged and
// ignored.
func (e *Engine) recordShapes(ctx context.Context) {
	if e.schema == nil {
		return
	}
	conceptProps := []string{"id", "status", "kind", "algorithm", "cohesion_score", "exemplars", "nearest_canonical", "created_at", "updated_at"}
	if err := e.schema.RecordNodeType(ctx, e.conv.ConceptLabel(), conceptProps); err != nil {
		e.logger.Debug("Failed to record concept node type", zap.Error(err))
	}
	if err := e.schema.RecordNodeType(ctx, e.conv.ReviewLabel(), []string{"id", "reason", "drift", "created_at"}); err != nil {
		e.logger.Debug("Failed to record review node type", zap.Error(err))
	}
	if err := e.schema.RecordRelationshipType(ctx, e.conv.MembershipRelType(), []string{"confidence", "algorithm", "updated_at"}); err != nil {
		e.logger.Debug("Failed to record membership relationship type", zap.Error(err))
	}
	if err := e.schema.RecordRelationshipType(ctx, e.conv.CandidateRelType(), []string{"algorithm", "created_at"}); err != nil {
		e.logger.Debug("Failed to record candidate relationship type", zap.Error(err))
	}
}
