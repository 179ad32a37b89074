// Package engine defines the speech-to-text engine contract shared by all
// transcription backends.
package engine

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
)

// Segment is a timed piece of a transcription. Times are in seconds.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Result is a completed transcription.
type Result struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
	Duration float64   `json:"duration"`
}

// Input is the audio handed to an engine. Exactly one of Path or Data is set.
type Input struct {
	Path string
	Data []byte
	// Name is the file name sent to HTTP backends when Data is used.
	Name string
}

// FileName returns the name to present the audio under.
func (in Input) FileName() string {
	if in.Path != "" {
		return filepath.Base(in.Path)
	}
	if in.Name != "" {
		return in.Name
	}
	return "audio.wav"
}

// Open returns a reader over the audio bytes.
func (in Input) Open() (io.ReadCloser, error) {
	switch {
	case in.Path != "":
		return os.Open(in.Path)
	case len(in.Data) > 0:
		return io.NopCloser(bytes.NewReader(in.Data)), nil
	default:
		return nil, errors.New("no audio supplied")
	}
}

// Request is a single transcription call.
type Request struct {
	Audio Input
	// Language is an ISO code. Empty means detect.
	Language string
	// Config is optional; engines fall back to their own defaults when nil.
	Config *InferenceConfig
}

// Engine transcribes whole audio files.
type Engine interface {
	Transcribe(ctx context.Context, req Request) (*Result, error)
	Models() []ModelInfo
	Close() error
}
