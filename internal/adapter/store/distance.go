package store

import (
	"math"
	"sort"

	"ekb/internal/domain"
)

// L2Distance returns the Euclidean distance between a and b.
// Vectors of different length are never comparable and return +Inf.
func L2Distance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// TopK sorts hits by ascending distance and keeps the first k. Ties are
// broken by document id then chunk order so results are stable.
func TopK(hits []domain.ChunkHit, k int) []domain.ChunkHit {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		if hits[i].Chunk.DocumentID != hits[j].Chunk.DocumentID {
			return hits[i].Chunk.DocumentID.String() < hits[j].Chunk.DocumentID.String()
		}
		return hits[i].Chunk.Order < hits[j].Chunk.Order
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits
}
