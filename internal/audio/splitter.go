package audio

// DefaultSegmentSeconds is the window length used for oversized inputs.
const DefaultSegmentSeconds = 30

// Split cuts samples into consecutive, non-overlapping windows of exactly
// segmentSeconds*sampleRate samples. A non-empty remainder is returned as a
// final shorter window. The returned slices share memory with samples and are
// in chronological order.
func Split(samples []float32, sampleRate, segmentSeconds int) [][]float32 {
	if len(samples) == 0 {
		return nil
	}
	if segmentSeconds <= 0 {
		segmentSeconds = DefaultSegmentSeconds
	}
	window := segmentSeconds * sampleRate
	if window <= 0 {
		return [][]float32{samples}
	}

	full := len(samples) / window
	segments := make([][]float32, 0, full+1)
	for i := 0; i < full; i++ {
		segments = append(segments, samples[i*window:(i+1)*window:(i+1)*window])
	}
	if len(samples)%window > 0 {
		segments = append(segments, samples[full*window:])
	}
	return segments
}

// SplitHandle splits h into per-window handles. Each returned handle carries
// no source path, so it is transcribed from its samples.
func SplitHandle(h *Handle, segmentSeconds int) []*Handle {
	parts := Split(h.Samples, h.SampleRate, segmentSeconds)
	out := make([]*Handle, 0, len(parts))
	for _, p := range parts {
		out = append(out, NewHandle(p, h.SampleRate, ""))
	}
	return out
}
