package vector

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hyperjump/kioku/internal/apperr"
)

// EncodeEmbedding encodes vec as a little-endian float32 BLOB without a length prefix.
func EncodeEmbedding(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// DecodeEmbedding decodes a BLOB produced by EncodeEmbedding.
func DecodeEmbedding(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d (not multiple of 4)", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}

// ValidateDimension fails with a validation error when vec does not have want entries
// or contains NaN or Inf values.
func ValidateDimension(vec []float32, want int) error {
	if len(vec) != want {
		return apperr.Validationf("embedding has dimension %d, expected %d", len(vec), want)
	}
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return apperr.Validationf("embedding value at index %d is not finite", i)
		}
	}
	return nil
}
