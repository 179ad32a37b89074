package audio

// resample converts mono samples from one rate to another using linear
// interpolation.
func resample(in []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(in) == 0 || fromRate <= 0 || toRate <= 0 {
		return in
	}

	outLen := int(int64(len(in)) * int64(toRate) / int64(fromRate))
	out := make([]float32, outLen)
	ratio := float64(fromRate) / float64(toRate)

	for i := range out {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		s0 := sampleAt(in, srcIdx)
		s1 := sampleAt(in, srcIdx+1)
		out[i] = s0 + frac*(s1-s0)
	}
	return out
}

func sampleAt(buf []float32, idx int) float32 {
	if idx >= len(buf) {
		// Clamp to last sample.
		idx = len(buf) - 1
	}
	if idx < 0 {
		return 0
	}
	return buf[idx]
}

// downmix averages interleaved channels into a single mono channel.
func downmix(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
