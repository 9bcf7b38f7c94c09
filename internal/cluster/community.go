package cluster

import (
	"sort"

	"ontogov/internal/embedding"
)

// ============================================================================
// Community Clustering
// ============================================================================

// knnGraph is an undirected k-nearest-neighbor similarity graph over points.
type knnGraph struct {
	adj map[int][]int
}

// buildKNNGraph links each point to its k most similar peers (cosine),
// symmetrized. Ties break on index so the graph is deterministic.
func buildKNNGraph(points [][]float32, k int) *knnGraph {
	n := len(points)
	g := &knnGraph{adj: make(map[int][]int, n)}

	type scored struct {
		idx int
		sim float64
	}

	for i := 0; i < n; i++ {
		neighbors := make([]scored, 0, n-1)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			neighbors = append(neighbors, scored{idx: j, sim: embedding.Cosine(points[i], points[j])})
		}
		sort.SliceStable(neighbors, func(a, b int) bool {
			if neighbors[a].sim != neighbors[b].sim {
				return neighbors[a].sim > neighbors[b].sim
			}
			return neighbors[a].idx < neighbors[b].idx
		})
		limit := k
		if limit > len(neighbors) {
			limit = len(neighbors)
		}
		for _, nb := range neighbors[:limit] {
			g.addEdge(i, nb.idx)
		}
	}
	return g
}

func (g *knnGraph) addEdge(a, b int) {
	for _, x := range g.adj[a] {
		if x == b {
			return
		}
	}
	g.adj[a] = append(g.adj[a], b)
	g.adj[b] = append(g.adj[b], a)
}

// CommunityBackend partitions the k-NN similarity graph by label
// propagation, a modularity-style community detection. Propagation runs in
// fixed index order with lowest-label tiebreaks, so the result is
// deterministic.
type CommunityBackend struct {
	K int
}

// NewCommunityBackend creates a community detection backend
func NewCommunityBackend(k int) *CommunityBackend {
	if k < 1 {
		k = 5
	}
	return &CommunityBackend{K: k}
}

func (b *CommunityBackend) Name() string { return "community" }

func (b *CommunityBackend) Cluster(points [][]float32) ([]int, error) {
	n := len(points)
	if n == 0 {
		return nil, nil
	}
	g := buildKNNGraph(points, b.K)

	labels := make([]int, n)
	for i := range labels {
		labels[i] = i
	}

	maxPasses := 20
	for pass := 0; pass < maxPasses; pass++ {
		changed := false
		for i := 0; i < n; i++ {
			counts := map[int]int{}
			for _, j := range g.adj[i] {
				counts[labels[j]]++
			}
			if len(counts) == 0 {
				continue
			}
			best, bestCount := labels[i], counts[labels[i]]
			keys := make([]int, 0, len(counts))
			for l := range counts {
				keys = append(keys, l)
			}
			sort.Ints(keys)
			for _, l := range keys {
				if counts[l] > bestCount {
					best, bestCount = l, counts[l]
				}
			}
			if best != labels[i] {
				labels[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	return compactLabels(labels), nil
}

// ComponentsFallback is the deterministic community fallback: connected
// components of the same k-NN similarity graph.
type ComponentsFallback struct {
	K int
}

// NewComponentsFallback creates the connected-components fallback
func NewComponentsFallback(k int) *ComponentsFallback {
	if k < 1 {
		k = 5
	}
	return &ComponentsFallback{K: k}
}

func (b *ComponentsFallback) Name() string { return "knn-components" }

func (b *ComponentsFallback) Cluster(points [][]float32) ([]int, error) {
	n := len(points)
	if n == 0 {
		return nil, nil
	}
	g := buildKNNGraph(points, b.K)

	labels := make([]int, n)
	for i := range labels {
		labels[i] = Noise
	}

	component := 0
	for i := 0; i < n; i++ {
		if labels[i] != Noise {
			continue
		}
		// BFS flood fill
		queue := []int{i}
		labels[i] = component
		for qi := 0; qi < len(queue); qi++ {
			for _, j := range g.adj[queue[qi]] {
				if labels[j] == Noise {
					labels[j] = component
					queue = append(queue, j)
				}
			}
		}
		component++
	}

	return labels, nil
}

// compactLabels renumbers arbitrary label values into 0..k-1 by first
// appearance, leaving Noise untouched.
func compactLabels(labels []int) []int {
	next := 0
	mapping := map[int]int{}
	out := make([]int, len(labels))
	for i, l := range labels {
		if l == Noise {
			out[i] = Noise
			continue
		}
		if _, ok := mapping[l]; !ok {
			mapping[l] = next
			next++
		}
		out[i] = mapping[l]
	}
	return out
}
