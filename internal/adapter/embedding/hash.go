package embedding

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"

	"ekb/internal/adapter/analyzer"
)

// HashModel is a local feature-hashing embedding model. Lexical features are
// hashed into a fixed number of signed buckets and the result is L2
// normalized, so texts sharing vocabulary land close under L2 distance.
type HashModel struct {
	dimension int
	tokenizer *analyzer.Tokenizer
}

func NewHashModel(dimension int, tokenizer *analyzer.Tokenizer) *HashModel {
	if tokenizer == nil {
		tokenizer = analyzer.NewTokenizer()
	}
	return &HashModel{dimension: dimension, tokenizer: tokenizer}
}

func (m *HashModel) Embed(_ context.Context, text string) ([]float32, error) {
	features := m.tokenizer.Features(text)
	if len(features) == 0 {
		return nil, errors.New("text has no embeddable features")
	}

	acc := make([]float64, m.dimension)
	for _, f := range features {
		h := fnv.New64a()
		_, _ = h.Write([]byte(f))
		sum := h.Sum64()

		idx := int(sum % uint64(m.dimension))
		if sum&(1<<63) != 0 {
			acc[idx]--
		} else {
			acc[idx]++
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	vec := make([]float32, m.dimension)
	if norm == 0 {
		return vec, nil
	}
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec, nil
}

func (m *HashModel) Dimension() int {
	return m.dimension
}

func (m *HashModel) ModelName() string {
	return fmt.Sprintf("hash-%d", m.dimension)
}
