// Package cluster groups contacts by semantic similarity of their
// embeddings using k-means with deterministic seeding.
package cluster

import (
	"math"
	"math/rand"
)

const (
	defaultK      = 3
	maxIterations = 100
	randomSeed    = 42
)

// Assignments maps each input vector index to its cluster index.
type Assignments []int

// KMeans partitions vectors into k clusters. k is capped at the number of
// vectors; k <= 0 selects min(3, n). The seed is fixed so repeated runs on
// the same input agree.
func KMeans(vectors [][]float64, k int) Assignments {
	n := len(vectors)
	if n == 0 {
		return nil
	}
	if k <= 0 {
		k = defaultK
	}
	if k > n {
		k = n
	}

	assignments := make(Assignments, n)
	if k == 1 {
		return assignments
	}

	rng := rand.New(rand.NewSource(randomSeed))
	centroids := initialCentroids(vectors, k, rng)

	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, v := range vectors {
			best := nearestCentroid(v, centroids)
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}
		centroids = recomputeCentroids(vectors, assignments, k, centroids)
	}

	return assignments
}

// initialCentroids uses the k-means++ seeding strategy: spread starting
// centroids by distance-weighted sampling.
func initialCentroids(vectors [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, vectors[rng.Intn(len(vectors))])

	for len(centroids) < k {
		dists := make([]float64, len(vectors))
		total := 0.0
		for i, v := range vectors {
			d := math.Inf(1)
			for _, c := range centroids {
				if sq := squaredDistance(v, c); sq < d {
					d = sq
				}
			}
			dists[i] = d
			total += d
		}

		if total == 0 {
			// All remaining points coincide with a centroid.
			centroids = append(centroids, vectors[rng.Intn(len(vectors))])
			continue
		}

		target := rng.Float64() * total
		acc := 0.0
		pick := len(vectors) - 1
		for i, d := range dists {
			acc += d
			if acc >= target {
				pick = i
				break
			}
		}
		centroids = append(centroids, vectors[pick])
	}

	return centroids
}

func nearestCentroid(v []float64, centroids [][]float64) int {
	best := 0
	bestDist := math.Inf(1)
	for i, c := range centroids {
		if d := squaredDistance(v, c); d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

func recomputeCentroids(vectors [][]float64, assignments Assignments, k int, prev [][]float64) [][]float64 {
	dim := len(vectors[0])
	sums := make([][]float64, k)
	counts := make([]int, k)
	for i := range sums {
		sums[i] = make([]float64, dim)
	}

	for i, v := range vectors {
		c := assignments[i]
		counts[c]++
		for j, x := range v {
			sums[c][j] += x
		}
	}

	centroids := make([][]float64, k)
	for i := range centroids {
		if counts[i] == 0 {
			// Empty cluster keeps its previous centroid.
			centroids[i] = prev[i]
			continue
		}
		c := make([]float64, dim)
		for j := range c {
			c[j] = sums[i][j] / float64(counts[i])
		}
		centroids[i] = c
	}
	return centroids
}

func squaredDistance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
