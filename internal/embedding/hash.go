package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
	"unicode"

	"github.com/philippgille/chromem-go"
)

const defaultHashDim = 256

// NewHash returns a deterministic feature-hashing embedder: every lower-cased word adds
// ±1 to a bucket chosen by its sha256, and the result is normalised. Texts sharing words
// score higher under cosine similarity, which is enough for offline runs and tests.
func NewHash(dim int) chromem.EmbeddingFunc {
	if dim <= 0 {
		dim = defaultHashDim
	}
	return func(_ context.Context, text string) ([]float32, error) {
		return hashVector(text, dim), nil
	}
}

func hashVector(text string, dim int) []float32 {
	vec := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := sha256.Sum256([]byte(w))
		bucket := binary.BigEndian.Uint32(h[:4]) % uint32(dim)
		if h[4]&1 == 0 {
			vec[bucket]++
		} else {
			vec[bucket]--
		}
	}
	return normalize(vec)
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		// cosine is undefined for the zero vector
		v[0] = 1
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}
