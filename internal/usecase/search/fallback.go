package search

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// DefaultFallbackDimensions matches the default vectorizer dimensionality.
const DefaultFallbackDimensions = 1024

// fallbackVector derives a deterministic unit vector from the query text
// by expanding a sha256 hash chain. The same text always yields the same
// vector; it carries no semantic meaning.
func fallbackVector(text string, dims int) []float32 {
	if dims <= 0 {
		dims = DefaultFallbackDimensions
	}

	v := make([]float32, dims)
	var norm float64

	block := sha256.Sum256([]byte(text))
	i := 0
	for i < dims {
		for j := 0; j+4 <= len(block) && i < dims; j += 4 {
			bits := binary.LittleEndian.Uint32(block[j:])
			// Map uint32 onto [-1, 1].
			v[i] = float32(bits)/float32(math.MaxUint32)*2 - 1
			norm += float64(v[i]) * float64(v[i])
			i++
		}
		block = sha256.Sum256(block[:])
	}

	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range v {
			v[i] *= scale
		}
	}
	return v
}
