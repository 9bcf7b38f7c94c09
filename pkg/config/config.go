package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// App
	Port string
	Env  string

	// Neo4j
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// Embeddings
	EmbeddingsBaseURL string
	EmbeddingsAPIKey  string
	EmbeddingModel    string
	EmbeddingDim      int // dimension of the deterministic fallback embedder

	// Assignment scoring
	EmbeddingWeight              float64
	StructuralWeight             float64
	LexicalWeight                float64
	EmbeddingSimilarityThreshold float64
	DecisionThreshold            float64
	AmbiguityGap                 float64

	// Clustering
	DensityEps       float64 // max cosine distance for density neighborhoods
	DensityMinPoints int
	CommunityK       int // k for the k-NN similarity graph
	ExemplarLimit    int
	NeighborLimit    int // nearest canonical concepts attached to a hypothesis
	ClusterNamespace string

	// Drift
	DriftThreshold float64
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		Env:               getEnv("ENV", "development"),
		Neo4jURI:          getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:         getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:     getEnv("NEO4J_PASSWORD", "password"),
		EmbeddingsBaseURL: getEnv("EMBEDDINGS_URL", "http://localhost:4000"),
		EmbeddingsAPIKey:  getEnv("EMBEDDINGS_API_KEY", ""),
		EmbeddingModel:    getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDim:      getEnvInt("EMBEDDING_DIM", 256),

		EmbeddingWeight:              getEnvFloat("ASSIGN_EMBEDDING_WEIGHT", 0.6),
		StructuralWeight:             getEnvFloat("ASSIGN_STRUCTURAL_WEIGHT", 0.2),
		LexicalWeight:                getEnvFloat("ASSIGN_LEXICAL_WEIGHT", 0.2),
		EmbeddingSimilarityThreshold: getEnvFloat("ASSIGN_EMBEDDING_SIMILARITY_THRESHOLD", 0.5),
		DecisionThreshold:            getEnvFloat("ASSIGN_DECISION_THRESHOLD", 0.65),
		AmbiguityGap:                 getEnvFloat("ASSIGN_AMBIGUITY_GAP", 0.05),

		DensityEps:       getEnvFloat("CLUSTER_DENSITY_EPS", 0.3),
		DensityMinPoints: getEnvInt("CLUSTER_DENSITY_MIN_POINTS", 3),
		CommunityK:       getEnvInt("CLUSTER_COMMUNITY_K", 5),
		ExemplarLimit:    getEnvInt("CLUSTER_EXEMPLAR_LIMIT", 5),
		NeighborLimit:    getEnvInt("CLUSTER_NEIGHBOR_LIMIT", 5),
		ClusterNamespace: getEnv("CLUSTER_NAMESPACE", "ontogov"),

		DriftThreshold: getEnvFloat("DRIFT_THRESHOLD", 0.25),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.Neo4jURI == "" {
		return fmt.Errorf("NEO4J_URI is required")
	}
	if c.Neo4jUser == "" {
		return fmt.Errorf("NEO4J_USER is required")
	}
	if c.Neo4jPassword == "" {
		return fmt.Errorf("NEO4J_PASSWORD is required")
	}
	if c.EmbeddingDim < 8 {
		return fmt.Errorf("EMBEDDING_DIM must be at least 8")
	}
	if c.DensityMinPoints < 1 {
		return fmt.Errorf("CLUSTER_DENSITY_MIN_POINTS must be positive")
	}
	if c.CommunityK < 1 {
		return fmt.Errorf("CLUSTER_COMMUNITY_K must be positive")
	}
	// Embeddings API key is optional: without it the deterministic
	// fallback embedder is used.
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var result float64
		if _, err := fmt.Sscanf(value, "%f", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
