package audio

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/voicetyped/voicequery/internal/faults"
)

func seqSamples(n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(i%100) / 100
	}
	return s
}

func TestSplitCountsAndReassembles(t *testing.T) {
	cases := []struct {
		length, rate, seconds int
	}{
		{length: 0, rate: 10, seconds: 3},
		{length: 5, rate: 10, seconds: 3},
		{length: 30, rate: 10, seconds: 3},
		{length: 31, rate: 10, seconds: 3},
		{length: 95, rate: 10, seconds: 3},
		{length: 16000*65 + 7, rate: 16000, seconds: 30},
	}

	for _, tc := range cases {
		samples := seqSamples(tc.length)
		segs := Split(samples, tc.rate, tc.seconds)

		window := tc.rate * tc.seconds
		want := (tc.length + window - 1) / window
		if len(segs) != want {
			t.Fatalf("len=%d: got %d segments, want %d", tc.length, len(segs), want)
		}

		var joined []float32
		for i, seg := range segs {
			if i < len(segs)-1 && len(seg) != window {
				t.Errorf("len=%d: segment %d has %d samples, want %d", tc.length, i, len(seg), window)
			}
			joined = append(joined, seg...)
		}
		if len(joined) != tc.length {
			t.Fatalf("len=%d: reassembled %d samples", tc.length, len(joined))
		}
		for i := range joined {
			if joined[i] != samples[i] {
				t.Fatalf("len=%d: sample %d differs after reassembly", tc.length, i)
			}
		}
	}
}

func TestSplitShortInputIsSingleSegment(t *testing.T) {
	samples := seqSamples(100)
	segs := Split(samples, 16000, 30)
	if len(segs) != 1 || len(segs[0]) != 100 {
		t.Fatalf("got %d segments, want one of 100 samples", len(segs))
	}
}

func TestSplitDoesNotAliasNextWindow(t *testing.T) {
	segs := Split(seqSamples(40), 10, 2)
	first := append(segs[0], 42)
	if segs[1][0] == 42 || len(first) != 21 {
		t.Error("appending to a window must not overwrite the next window")
	}
}

func TestEncodeDecodeRoundTripKeepsLength(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1, -1, 0.25}
	b, err := EncodeWAV(samples, TargetSampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	h, err := NewLoader().Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h.SampleRate != TargetSampleRate {
		t.Errorf("sample rate = %d, want %d", h.SampleRate, TargetSampleRate)
	}
	if len(h.Samples) != len(samples) {
		t.Fatalf("got %d samples, want %d", len(h.Samples), len(samples))
	}
	if d := h.Samples[1] - 0.5; d > 0.001 || d < -0.001 {
		t.Errorf("sample 1 = %f, want ~0.5", h.Samples[1])
	}
	if h.SourcePath != path {
		t.Errorf("source path = %q, want %q", h.SourcePath, path)
	}
}

func TestLoadResamplesToTargetRate(t *testing.T) {
	b, err := EncodeWAV(seqSamples(8000), 8000)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	path := filepath.Join(t.TempDir(), "8k.wav")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	h, err := NewLoader().Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(h.Samples) != 16000 {
		t.Errorf("got %d samples, want 16000", len(h.Samples))
	}
	if h.Duration < 0.99 || h.Duration > 1.01 {
		t.Errorf("duration = %f, want ~1s", h.Duration)
	}
}

func TestLoadMissingFileIsInputError(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), filepath.Join(t.TempDir(), "nope.wav"))
	if !faults.IsInput(err) {
		t.Fatalf("expected InputError, got %v", err)
	}
}

func TestLoadUnsupportedWithoutFFmpeg(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("definitely not audio"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	l := NewLoader(WithFFmpeg(filepath.Join(t.TempDir(), "missing-ffmpeg")))
	_, err := l.Load(context.Background(), path)
	if !faults.IsInput(err) {
		t.Fatalf("expected InputError, got %v", err)
	}
}

func TestSplitHandleDropsSourcePath(t *testing.T) {
	h := NewHandle(seqSamples(50), 10, "/tmp/source.wav")
	parts := SplitHandle(h, 2)
	if len(parts) != 3 {
		t.Fatalf("got %d parts, want 3", len(parts))
	}
	for i, p := range parts {
		if p.SourcePath != "" {
			t.Errorf("part %d kept source path", i)
		}
	}
	if parts[2].Duration != 1 {
		t.Errorf("last part duration = %f, want 1", parts[2].Duration)
	}
}
