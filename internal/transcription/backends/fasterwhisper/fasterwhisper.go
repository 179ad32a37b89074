// Package fasterwhisper runs a local faster-whisper model through an
// embedded Python helper.
package fasterwhisper

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/voicetyped/voicequery/internal/transcription/engine"
	"github.com/voicetyped/voicequery/internal/transcription/registry"
)

//go:embed assets/faster_whisper.py
var helperScript []byte

func init() {
	registry.ASR.Register("fasterwhisper", func(config map[string]string) (engine.Engine, error) {
		model := config["model"]
		if model == "" {
			model = engine.DefaultModel
		}
		return New(config["faster_whisper_binary"], model, config["faster_whisper_device"]), nil
	})
}

// ASR implements engine.Engine. Runs are serialised: each one loads the
// model onto the device.
type ASR struct {
	python string
	model  string
	device string

	mu     sync.Mutex
	script string
}

// New creates an engine. python defaults to python3 and device to auto.
func New(python, model, device string) *ASR {
	if python == "" {
		python = "python3"
	}
	if device == "" {
		device = "auto"
	}
	return &ASR{python: python, model: model, device: device}
}

type helperOutput struct {
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// computeType maps a precision onto a CTranslate2 compute type.
func computeType(p engine.Precision) string {
	if p == engine.PrecisionInt8 {
		return "int8"
	}
	return "float16"
}

func (f *ASR) args(audioPath string, req engine.Request) []string {
	cfg := engine.DefaultConfig()
	if req.Config != nil {
		cfg = *req.Config
	}
	args := []string{
		f.script,
		"--audio", audioPath,
		"--model", f.model,
		"--device", f.device,
		"--compute-type", computeType(cfg.Precision),
		"--beam-size", strconv.Itoa(cfg.BeamSize),
		"--batch-size", strconv.Itoa(cfg.BatchSize),
	}
	if req.Language != "" {
		args = append(args, "--language", req.Language)
	}
	return args
}

func (f *ASR) Transcribe(ctx context.Context, req engine.Request) (*engine.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.ensureScript(); err != nil {
		return nil, err
	}

	audioPath := req.Audio.Path
	if audioPath == "" {
		tmp, err := writeTemp(req.Audio.Data)
		if err != nil {
			return nil, err
		}
		defer os.Remove(tmp)
		audioPath = tmp
	}

	cmd := exec.CommandContext(ctx, f.python, f.args(audioPath, req)...)
	cmd.Env = os.Environ()
	out, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return nil, fmt.Errorf("faster-whisper failed: %s", strings.TrimSpace(string(ee.Stderr)))
		}
		return nil, fmt.Errorf("run helper: %w", err)
	}

	return parseOutput(out)
}

func parseOutput(out []byte) (*engine.Result, error) {
	var parsed helperOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("parse helper output: %w", err)
	}

	res := &engine.Result{
		Language: parsed.Language,
		Duration: parsed.Duration,
		Segments: make([]engine.Segment, 0, len(parsed.Segments)),
	}
	texts := make([]string, 0, len(parsed.Segments))
	for _, s := range parsed.Segments {
		text := strings.TrimSpace(s.Text)
		res.Segments = append(res.Segments, engine.Segment{Text: text, Start: s.Start, End: s.End})
		if text != "" {
			texts = append(texts, text)
		}
	}
	res.Text = strings.Join(texts, " ")
	return res, nil
}

// ensureScript writes the helper once per engine. Caller holds f.mu.
func (f *ASR) ensureScript() error {
	if f.script != "" {
		return nil
	}
	tmp, err := os.CreateTemp("", "voicequery_faster_whisper_*.py")
	if err != nil {
		return fmt.Errorf("write helper script: %w", err)
	}
	defer tmp.Close()
	if _, err := tmp.Write(helperScript); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write helper script: %w", err)
	}
	f.script = tmp.Name()
	return nil
}

func writeTemp(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("no audio supplied")
	}
	tmp, err := os.CreateTemp("", "voicequery_segment_*.wav")
	if err != nil {
		return "", fmt.Errorf("create temp audio: %w", err)
	}
	defer tmp.Close()
	if _, err := tmp.Write(data); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write temp audio: %w", err)
	}
	return tmp.Name(), nil
}

func (f *ASR) Models() []engine.ModelInfo {
	models := engine.WhisperModels(false)
	for i := range models {
		models[i].IsDefault = models[i].ID == f.model
	}
	return models
}

// Close removes the helper script. A later Transcribe writes it again, so an
// engine evicted from the cache mid-request still finishes.
func (f *ASR) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.script != "" {
		err := os.Remove(f.script)
		f.script = ""
		return err
	}
	return nil
}
