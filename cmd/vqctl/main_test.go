package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/pitabwire/frame/config"

	vqconfig "github.com/voicetyped/voicequery/config"
	"github.com/voicetyped/voicequery/internal/audio"
	"github.com/voicetyped/voicequery/internal/transcription/engine"
	"github.com/voicetyped/voicequery/internal/transcription/registry"
)

type countingEngine struct {
	calls *atomic.Int32
}

func (e *countingEngine) Transcribe(context.Context, engine.Request) (*engine.Result, error) {
	n := e.calls.Add(1)
	return &engine.Result{Text: fmt.Sprintf("chunk%d", n), Duration: 10}, nil
}
func (e *countingEngine) Models() []engine.ModelInfo { return nil }
func (e *countingEngine) Close() error               { return nil }

var (
	stubCalls atomic.Int32
	stubCfg   atomic.Pointer[map[string]string]
)

func init() {
	registry.ASR.Register("vqctl-stub", func(cfg map[string]string) (engine.Engine, error) {
		stubCfg.Store(&cfg)
		return &countingEngine{calls: &stubCalls}, nil
	})
}

func loadConfig(t *testing.T) vqconfig.VoiceQueryConfig {
	t.Helper()
	cfg, err := config.FromEnv[vqconfig.VoiceQueryConfig]()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	return cfg
}

func TestParseFlagsDefaultsFromConfig(t *testing.T) {
	t.Setenv("ASR_BACKEND", "whispercpp")
	t.Setenv("EXPORT_DIR", "/tmp/out")
	cfg := loadConfig(t)

	o, err := parseFlags(flag.NewFlagSet("vqctl", flag.ContinueOnError), []string{"-i", "a.wav", "-model", "small"}, &cfg)
	if err != nil {
		t.Fatal(err)
	}
	if o.backend != "whispercpp" || o.model != "small" || o.exportDir != "/tmp/out" {
		t.Fatalf("options = %+v", o)
	}
}

func TestParseFlagsRequiresInput(t *testing.T) {
	cfg := loadConfig(t)
	_, err := parseFlags(flag.NewFlagSet("vqctl", flag.ContinueOnError), nil, &cfg)
	if err == nil || !strings.Contains(err.Error(), "input") {
		t.Fatalf("err = %v", err)
	}
}

func TestRunLocalUsesSegmentingConfig(t *testing.T) {
	t.Setenv("SEGMENT_THRESHOLD_MB", "1")
	t.Setenv("SEGMENT_SECONDS", "10")
	cfg := loadConfig(t)

	// 40 s of 16-bit mono audio is about 1.2 MiB.
	wav, err := audio.EncodeWAV(make([]float32, 40*audio.TargetSampleRate), audio.TargetSampleRate)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "long.wav")
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		t.Fatal(err)
	}

	stubCalls.Store(0)
	out, err := runLocal(context.Background(), &cfg, options{
		input:   path,
		backend: "vqctl-stub",
		model:   "base",
		noQuery: true,
	})
	if err != nil {
		t.Fatalf("runLocal: %v", err)
	}
	if !out.Segmented {
		t.Fatal("file above SEGMENT_THRESHOLD_MB should be segmented")
	}
	if got := stubCalls.Load(); got != 4 {
		t.Fatalf("engine calls = %d, want 4 segments of 10s", got)
	}
	if out.Transcription != "chunk1 chunk2 chunk3 chunk4" {
		t.Errorf("transcription = %q", out.Transcription)
	}
	if m := stubCfg.Load(); m == nil || (*m)["faster_whisper_binary"] != "python3" || (*m)["faster_whisper_device"] != "auto" {
		t.Errorf("engine config lost defaults: %v", m)
	}
}

func TestRunLocalRequiresGeneratorKey(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	cfg := loadConfig(t)
	_, err := runLocal(context.Background(), &cfg, options{input: "x.wav", backend: "vqctl-stub"})
	if err == nil || !strings.Contains(err.Error(), "GOOGLE_API_KEY") {
		t.Fatalf("err = %v", err)
	}
}
