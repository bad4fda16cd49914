package embedding

// MeanPool averages token vectors of a [1, T, D] hidden state over positions where
// attentionMask is 1. hidden is laid out row-major; T is len(attentionMask).
func MeanPool(hidden []float32, attentionMask []int64, dims int) []float32 {
	out := make([]float32, dims)
	var count float32
	for t, m := range attentionMask {
		if m == 0 {
			continue
		}
		base := t * dims
		if base+dims > len(hidden) {
			break
		}
		for d := 0; d < dims; d++ {
			out[d] += hidden[base+d]
		}
		count++
	}
	if count > 0 {
		for d := range out {
			out[d] /= count
		}
	}
	return out
}
