package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"ontogov/internal/assign"
	"ontogov/internal/cluster"
	"ontogov/internal/embedding"
	"ontogov/internal/governance"
	"ontogov/internal/graph"
	"ontogov/internal/ontology"
	"ontogov/pkg/config"
	apperrors "ontogov/pkg/errors"
	"ontogov/pkg/logger"
)

func main() {
	// Initialize logger
	if err := logger.Init(os.Getenv("ENV")); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting ontology governance server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize Neo4j driver
	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		log.Fatal("Failed to create Neo4j driver", zap.Error(err))
	}
	defer driver.Close(context.Background())

	// Verify Neo4j connection
	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Fatal("Failed to verify Neo4j connectivity", zap.Error(err))
	}

	// Initialize dependencies
	store := graph.NewNeo4jStore(driver)
	conv := ontology.NewConventions(nil)

	var provider embedding.Provider
	if cfg.EmbeddingsAPIKey != "" {
		provider = embedding.NewOpenAIProvider(cfg.EmbeddingsBaseURL, cfg.EmbeddingsAPIKey, cfg.EmbeddingModel)
		log.Info("Using OpenAI-compatible embeddings", zap.String("model", cfg.EmbeddingModel))
	} else {
		provider = embedding.NewHashProvider(cfg.EmbeddingDim)
		log.Info("Using deterministic hash embeddings", zap.Int("dim", cfg.EmbeddingDim))
	}

	schemaRegistry := graph.NewSchemaRegistry(store, conv)
	governor := governance.NewGovernor(store, conv)
	assignEngine := assign.NewEngine(provider, conv, assign.Thresholds{
		EmbeddingWeight:              cfg.EmbeddingWeight,
		StructuralWeight:             cfg.StructuralWeight,
		LexicalWeight:                cfg.LexicalWeight,
		EmbeddingSimilarityThreshold: cfg.EmbeddingSimilarityThreshold,
		DecisionThreshold:            cfg.DecisionThreshold,
		AmbiguityGap:                 cfg.AmbiguityGap,
	}, nil)

	clusterEngine := cluster.NewEngine(
		store,
		provider,
		conv,
		schemaRegistry,
		cluster.NewDensityBackend(cfg.DensityEps, cfg.DensityMinPoints),
		cluster.NewCommunityBackend(cfg.CommunityK),
		cluster.Config{
			ExemplarLimit:  cfg.ExemplarLimit,
			NeighborLimit:  cfg.NeighborLimit,
			CommunityK:     cfg.CommunityK,
			Namespace:      cfg.ClusterNamespace,
			DriftThreshold: cfg.DriftThreshold,
		},
	)

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Administrative surface: governance transitions, clustering runs and
	// assignment for the normalization pipeline
	api := router.Group("/api")
	{
		api.POST("/assign", func(c *gin.Context) {
			var body struct {
				ConceptKey string             `json:"concept_key" binding:"required"`
				Value      string             `json:"value" binding:"required"`
				Candidates []assign.Candidate `json:"candidates"`
				EntityType string             `json:"entity_type"`
			}
			if err := c.ShouldBindJSON(&body); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			decision, err := assignEngine.Assign(c.Request.Context(), body.ConceptKey, body.Value, body.Candidates, assign.Context{EntityType: body.EntityType}, nil)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, decision)
		})

		api.POST("/concepts/:id/promote", func(c *gin.Context) {
			var body struct {
				PromotedBy string `json:"promoted_by" binding:"required"`
			}
			if err := c.ShouldBindJSON(&body); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			result, err := governor.PromoteConcept(c.Request.Context(), c.Param("id"), body.PromotedBy)
			if err != nil {
				respondGovernanceError(c, err)
				return
			}
			c.JSON(http.StatusOK, result)
		})

		api.POST("/concepts/:id/merge", func(c *gin.Context) {
			var body struct {
				TargetID string `json:"target_concept_id" binding:"required"`
				MergedBy string `json:"merged_by" binding:"required"`
			}
			if err := c.ShouldBindJSON(&body); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			result, err := governor.MergeProposedConcept(c.Request.Context(), c.Param("id"), body.TargetID, body.MergedBy)
			if err != nil {
				respondGovernanceError(c, err)
				return
			}
			c.JSON(http.StatusOK, result)
		})

		api.POST("/concepts/:id/reject", func(c *gin.Context) {
			var body struct {
				RejectedBy string `json:"rejected_by" binding:"required"`
				Reason     string `json:"reason"`
			}
			if err := c.ShouldBindJSON(&body); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if err := governor.RejectProposedConcept(c.Request.Context(), c.Param("id"), body.RejectedBy, body.Reason); err != nil {
				respondGovernanceError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"concept_id": c.Param("id"), "status": ontology.StatusRejected})
		})

		api.POST("/clustering/run", func(c *gin.Context) {
			var body struct {
				Density   *bool `json:"density"`
				Community *bool `json:"community"`
			}
			if err := c.ShouldBindJSON(&body); err != nil && err.Error() != "EOF" {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			opts := cluster.RunOptions{Density: true, Community: true, UpdatedAt: time.Now().UTC()}
			if body.Density != nil {
				opts.Density = *body.Density
			}
			if body.Community != nil {
				opts.Community = *body.Community
			}
			result, err := clusterEngine.Run(c.Request.Context(), opts)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "partial": result})
				return
			}
			c.JSON(http.StatusOK, result)
		})
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info("Server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := store.Close(); err != nil {
		log.Error("Failed to close graph store", zap.Error(err))
	}
	log.Info("Server stopped")
}

// respondGovernanceError maps typed governance failures onto transport
// semantics: not-found vs. conflict.
func respondGovernanceError(c *gin.Context, err error) {
	if ge, ok := apperrors.AsGovernanceError(err); ok {
		status := http.StatusConflict
		if ge.Code == apperrors.CodeConceptNotFound {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{
			"code":       string(ge.Code),
			"message":    ge.Message,
			"concept_id": ge.ConceptID,
		})
		return
	}
	if iv, ok := apperrors.AsIntegrityViolation(err); ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"violations":     iv.Violations,
			"interaction_id": iv.InteractionID,
			"source_uris":    iv.SourceURIs,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// ginLogger returns a gin middleware that logs requests with zap
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
