package cluster

import (
	"ontogov/internal/embedding"
)

// ============================================================================
// Density Clustering
// ============================================================================

// DensityBackend groups points whose cosine distance stays within Eps,
// requiring MinPoints neighbors to seed a cluster. Points reachable from no
// dense region are labeled Noise. DBSCAN-style region expansion over a full
// pairwise scan; candidate sets here are batch-sized, not corpus-sized.
type DensityBackend struct {
	Eps       float64
	MinPoints int
}

// NewDensityBackend creates a density clustering backend
func NewDensityBackend(eps float64, minPoints int) *DensityBackend {
	if eps <= 0 {
		eps = 0.3
	}
	if minPoints < 1 {
		minPoints = 3
	}
	return &DensityBackend{Eps: eps, MinPoints: minPoints}
}

func (b *DensityBackend) Name() string { return "density" }

// Cluster labels each point with its cluster index, or Noise.
func (b *DensityBackend) Cluster(points [][]float32) ([]int, error) {
	n := len(points)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = Noise
	}

	visited := make([]bool, n)
	clusterID := 0

	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true

		neighbors := b.regionQuery(points, i)
		if len(neighbors) < b.MinPoints {
			continue
		}

		labels[i] = clusterID
		// Expand the cluster breadth-first
		queue := append([]int(nil), neighbors...)
		for qi := 0; qi < len(queue); qi++ {
			j := queue[qi]
			if !visited[j] {
				visited[j] = true
				jn := b.regionQuery(points, j)
				if len(jn) >= b.MinPoints {
					queue = append(queue, jn...)
				}
			}
			if labels[j] == Noise {
				labels[j] = clusterID
			}
		}
		clusterID++
	}

	return labels, nil
}

// regionQuery returns indices within Eps cosine distance of point i,
// including i itself.
func (b *DensityBackend) regionQuery(points [][]float32, i int) []int {
	var neighbors []int
	for j := range points {
		if 1.0-embedding.Cosine(points[i], points[j]) <= b.Eps {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}

// CentroidFallback is the deterministic density fallback: every point joins
// a single cluster. The engine scores each membership by cosine similarity
// to the global centroid, so weak members are still visible to reviewers.
type CentroidFallback struct{}

func (CentroidFallback) Name() string { return "centroid-fallback" }

func (CentroidFallback) Cluster(points [][]float32) ([]int, error) {
	labels := make([]int, len(points))
	return labels, nil
}
