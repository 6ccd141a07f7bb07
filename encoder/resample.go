package encoder

// Resample renders samples at a new rate offline, using linear
// interpolation between neighboring source samples. The output length
// is ceil(duration * to), matching an offline rendering context sized
// from the source duration.
func Resample(samples []float64, from, to int) []float64 {
	if from == to || len(samples) == 0 {
		return samples
	}

	outLen := (len(samples)*to + from - 1) / from
	out := make([]float64, outLen)
	ratio := float64(from) / float64(to)

	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}
	return out
}
