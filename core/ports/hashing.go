package ports

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/siherrmann/docflow/helper"
)

// HashingVectorizer is a deterministic vectorizer that folds token hashes into
// a fixed-dimension vector (the hashing trick). Texts sharing tokens map to
// nearby vectors, which is enough for retrieval, rerank and citation scoring
// without a model.
type HashingVectorizer struct {
	dimension int
}

// NewHashingVectorizer creates a hashing vectorizer with the given dimension.
func NewHashingVectorizer(dimension int) (*HashingVectorizer, error) {
	if dimension <= 0 {
		return nil, helper.NewKindError("create hashing vectorizer", helper.KindInvalidInput, fmt.Errorf("dimension must be positive, got %d", dimension))
	}
	return &HashingVectorizer{dimension: dimension}, nil
}

// Dimension returns the vector dimension.
func (v *HashingVectorizer) Dimension() int {
	return v.dimension
}

// Vectorize maps text to an L2-normalized vector. The zero vector is returned
// for texts without tokens.
func (v *HashingVectorizer) Vectorize(ctx context.Context, text string) ([]float32, error) {
	vector := make([]float32, v.dimension)

	for _, token := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(token))
		sum := h.Sum32()

		index := int(sum % uint32(v.dimension))
		// Second hash bit decides the sign so collisions cancel rather than pile up.
		if sum&0x80000000 != 0 {
			vector[index] -= 1
		} else {
			vector[index] += 1
		}
	}

	var norm float64
	for _, value := range vector {
		norm += float64(value) * float64(value)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vector {
			vector[i] *= scale
		}
	}

	return vector, nil
}
