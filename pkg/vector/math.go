package vector

import "math"

// CosineSimilarity returns the cosine of the angle between a and b.
// Vectors of different length or zero norm score 0.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// Mean returns the element-wise mean of vs. All vectors must share a length.
func Mean(vs ...[]float32) ([]float32, error) {
	if len(vs) == 0 {
		return nil, ErrEmbedding
	}

	dim := len(vs[0])
	out := make([]float32, dim)
	for _, v := range vs {
		if len(v) != dim {
			return nil, ErrDimensionMismatch
		}
		for i, x := range v {
			out[i] += x
		}
	}

	n := float32(len(vs))
	for i := range out {
		out[i] /= n
	}
	return out, nil
}

// Normalize scales v to unit length in place and returns it.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}
