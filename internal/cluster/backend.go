package cluster

// Noise is the label for points left outside every cluster.
const Noise = -1

// Backend is a pluggable clustering strategy. Cluster returns one label per
// input point; Noise marks unclustered outliers. Implementations must be
// deterministic for identical input.
//
// Backends are chosen at construction time. When no density or community
// implementation is configured, the deterministic fallbacks
// (CentroidFallback, ComponentsFallback) substitute transparently; backend
// absence is never an error.
type Backend interface {
	Name() string
	Cluster(points [][]float32) ([]int, error)
}
