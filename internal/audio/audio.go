// Package audio loads audio files into 16 kHz mono sample buffers and cuts
// them into fixed-length windows for transcription.
package audio

import "time"

// TargetSampleRate is the rate every loaded handle is normalised to. The
// speech models consume 16 kHz input only.
const TargetSampleRate = 16000

// Handle is an immutable in-memory view of a loaded audio file.
type Handle struct {
	SampleRate int
	Samples    []float32
	Duration   float64 // seconds
	SourcePath string  // empty when the handle was built from raw samples
}

// NewHandle builds a handle from raw mono samples.
func NewHandle(samples []float32, sampleRate int, sourcePath string) *Handle {
	h := &Handle{
		SampleRate: sampleRate,
		Samples:    samples,
		SourcePath: sourcePath,
	}
	if sampleRate > 0 {
		h.Duration = float64(len(samples)) / float64(sampleRate)
	}
	return h
}

// Length returns the handle duration as a time.Duration.
func (h *Handle) Length() time.Duration {
	return time.Duration(h.Duration * float64(time.Second))
}
