package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/voicetyped/voicequery/internal/faults"
)

// Loader reads audio files into 16 kHz mono handles.
type Loader struct {
	ffmpegPath string
	tempDir    string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFFmpeg sets the ffmpeg binary used for non-WAV inputs.
func WithFFmpeg(path string) LoaderOption {
	return func(l *Loader) {
		if path != "" {
			l.ffmpegPath = path
		}
	}
}

// WithTempDir sets the directory for intermediate files.
func WithTempDir(dir string) LoaderOption {
	return func(l *Loader) {
		l.tempDir = dir
	}
}

// NewLoader creates a loader. By default ffmpeg is looked up on PATH.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{ffmpegPath: "ffmpeg"}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads path and returns a handle resampled to TargetSampleRate.
//
// PCM WAV files are decoded in process. Everything else goes through ffmpeg;
// when ffmpeg is unavailable such files fail with an InputError.
func (l *Loader) Load(ctx context.Context, path string) (*Handle, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, faults.Input("load audio", err)
	}

	samples, rate, err := l.readWAV(path)
	if errors.Is(err, errNotWAV) {
		samples, rate, err = l.readTranscoded(ctx, path)
	}
	if err != nil {
		return nil, faults.Input("load audio", err)
	}

	if rate != TargetSampleRate {
		slog.DebugContext(ctx, "resampling audio",
			slog.String("path", path),
			slog.Int("from_rate", rate),
			slog.Int("to_rate", TargetSampleRate))
		samples = resample(samples, rate, TargetSampleRate)
	}

	return NewHandle(samples, TargetSampleRate, path), nil
}

func (l *Loader) readWAV(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	return decodeWAV(f)
}

func (l *Loader) readTranscoded(ctx context.Context, path string) ([]float32, int, error) {
	converted, err := transcode(ctx, l.ffmpegPath, path, l.tempDir)
	if err != nil {
		return nil, 0, fmt.Errorf("unsupported audio %q: %w", filepath.Base(path), err)
	}
	defer os.Remove(converted)
	return l.readWAV(converted)
}
