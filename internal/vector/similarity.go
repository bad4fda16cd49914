// Package vector provides similarity helpers and the on-disk vector encoding.
package vector

import (
	"fmt"
	"math"
)

// InnerProduct returns the inner product of two vectors (for normalized vectors equals cosine similarity).
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// CosineSimilarity returns the cosine of the angle between a and b.
// It fails on a dimension mismatch, empty input, or a zero-magnitude vector.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("cosine similarity dimension mismatch: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("cosine similarity on empty vectors")
	}
	na, nb := L2Norm(a), L2Norm(b)
	if na == 0 || nb == 0 {
		return 0, fmt.Errorf("cosine similarity with zero-magnitude vector")
	}
	return InnerProduct(a, b) / (na * nb), nil
}

// CosineDistance returns 1 - cosine similarity, matching pgvector's <=> operator.
// A zero-magnitude vector has distance 1 (orthogonal to everything).
func CosineDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("cosine distance dimension mismatch: %d vs %d", len(a), len(b))
	}
	if L2Norm(a) == 0 || L2Norm(b) == 0 {
		return 1, nil
	}
	sim, err := CosineSimilarity(a, b)
	if err != nil {
		return 0, err
	}
	return 1 - sim, nil
}

// SimilarityFromDistance converts a cosine distance to the reported score.
func SimilarityFromDistance(d float64) float64 {
	return 1 - d
}
