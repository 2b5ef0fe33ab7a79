// Package similarity ranks candidates by cosine similarity to a query vector.
package similarity

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrNoQueryVector indicates the query has no embedding.
	ErrNoQueryVector = errors.New("no query vector")

	// ErrDimensionMismatch indicates a candidate vector has a different
	// dimensionality than the query. Mixing vectors from different
	// providers is a caller contract violation.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Candidate pairs an identifier with its optional embedding.
type Candidate struct {
	ID     string
	Vector []float32
}

// Result is a scored candidate.
type Result struct {
	ID    string
	Score float64
}

// Rank scores every candidate with a vector against the query and returns
// them in descending score order. Candidates without a vector carry no
// signal and are filtered out before scoring, never treated as
// zero-similarity. Ties preserve input order (stable sort).
func Rank(query []float32, candidates []Candidate) ([]Result, error) {
	if len(query) == 0 {
		return nil, ErrNoQueryVector
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		if c.Vector == nil {
			continue
		}
		if len(c.Vector) != len(query) {
			return nil, fmt.Errorf("%w: candidate %s has %d dimensions, query has %d",
				ErrDimensionMismatch, c.ID, len(c.Vector), len(query))
		}
		results = append(results, Result{ID: c.ID, Score: cosine(query, c.Vector)})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results, nil
}

// cosine computes cosine similarity between two equal-length vectors.
//
// Formula: cos(θ) = (A · B) / (||A|| * ||B||), range [-1, 1].
func cosine(a, b []float32) float64 {
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}

	magA = math.Sqrt(magA)
	magB = math.Sqrt(magB)

	// Zero vectors have no direction; score them as orthogonal.
	if magA == 0 || magB == 0 {
		return 0
	}

	return dot / (magA * magB)
}
