// Package transcription turns audio into text through a configured speech
// engine.
package transcription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voicetyped/voicequery/internal/audio"
	"github.com/voicetyped/voicequery/internal/faults"
	"github.com/voicetyped/voicequery/internal/transcription/engine"
)

// Source resolves an engine by backend and model.
type Source interface {
	Get(backend, model string) (engine.Engine, error)
}

// Audio is either a file path or an in-memory handle.
type Audio struct {
	Path   string
	Handle *audio.Handle
}

// FromPath refers to an audio file on disk.
func FromPath(path string) Audio { return Audio{Path: path} }

// FromHandle refers to loaded samples.
func FromHandle(h *audio.Handle) Audio { return Audio{Handle: h} }

func (a Audio) input() (engine.Input, error) {
	switch {
	case a.Path != "":
		return engine.Input{Path: a.Path}, nil
	case a.Handle != nil && a.Handle.SourcePath != "":
		return engine.Input{Path: a.Handle.SourcePath}, nil
	case a.Handle != nil:
		b, err := a.Handle.WAV()
		if err != nil {
			return engine.Input{}, fmt.Errorf("encode segment: %w", err)
		}
		return engine.Input{Data: b, Name: "segment.wav"}, nil
	default:
		return engine.Input{}, faults.Input("transcribe", errors.New("no audio supplied"))
	}
}

// Transcriber sends audio to one backend/model pair.
type Transcriber struct {
	engines Source
	backend string
	model   string
}

// New creates a transcriber for the default backend and model.
func New(engines Source, backend, model string) *Transcriber {
	return &Transcriber{engines: engines, backend: backend, model: model}
}

// Using returns a copy bound to another backend or model. Empty values keep
// the current setting.
func (t *Transcriber) Using(backend, model string) *Transcriber {
	c := *t
	if backend != "" {
		c.backend = backend
	}
	if model != "" {
		c.model = model
	}
	return &c
}

// Backend reports the bound backend name.
func (t *Transcriber) Backend() string { return t.backend }

// Model reports the bound model name.
func (t *Transcriber) Model() string { return t.model }

// Models lists the bound engine's models.
func (t *Transcriber) Models() ([]engine.ModelInfo, error) {
	e, err := t.engines.Get(t.backend, t.model)
	if err != nil {
		return nil, faults.Transcription(t.backend, err)
	}
	return e.Models(), nil
}

// NormalizeLanguage returns the language hint to send, or "" for detection.
func NormalizeLanguage(language string) string {
	language = strings.TrimSpace(language)
	if language == "" || strings.EqualFold(language, "auto-detect") || language == "None" {
		return ""
	}
	return language
}

// Transcribe transcribes in. When the engine rejects the language hint the
// call is retried once with detection.
func (t *Transcriber) Transcribe(ctx context.Context, in Audio, language string, cfg *engine.InferenceConfig) (*engine.Result, error) {
	input, err := in.input()
	if err != nil {
		return nil, err
	}

	e, err := t.engines.Get(t.backend, t.model)
	if err != nil {
		return nil, faults.Transcription(t.backend, err)
	}

	req := engine.Request{
		Audio:    input,
		Language: NormalizeLanguage(language),
		Config:   cfg,
	}
	res, err := e.Transcribe(ctx, req)
	if err != nil && req.Language != "" && strings.Contains(strings.ToLower(err.Error()), "language") {
		slog.WarnContext(ctx, "language rejected, retrying with detection",
			slog.String("backend", t.backend),
			slog.String("language", req.Language),
			slog.String("error", err.Error()))
		req.Language = ""
		res, err = e.Transcribe(ctx, req)
	}
	if err != nil {
		return nil, faults.Transcription(t.backend, err)
	}
	return res, nil
}
