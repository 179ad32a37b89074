// Package whispercpp transcribes audio through a whisper.cpp HTTP server.
package whispercpp

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/voicetyped/voicequery/internal/transcription/backends/restutil"
	"github.com/voicetyped/voicequery/internal/transcription/engine"
	"github.com/voicetyped/voicequery/internal/transcription/registry"
)

const defaultURL = "http://127.0.0.1:8080"

func init() {
	registry.ASR.Register("whispercpp", func(config map[string]string) (engine.Engine, error) {
		url := config["whispercpp_url"]
		if url == "" {
			url = defaultURL
		}
		model := config["model"]
		if model == "" {
			model = engine.DefaultModel
		}
		return New(url, model), nil
	})
}

// ASR implements engine.Engine against the server's /inference endpoint.
// The server holds a single loaded model; model is reported only.
type ASR struct {
	baseURL string
	model   string
}

// New creates an engine for the server at baseURL.
func New(baseURL, model string) *ASR {
	return &ASR{baseURL: strings.TrimRight(baseURL, "/"), model: model}
}

type verboseResponse struct {
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
	Segments []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"segments"`
}

func (w *ASR) Transcribe(ctx context.Context, req engine.Request) (*engine.Result, error) {
	rc, err := req.Audio.Open()
	if err != nil {
		return nil, fmt.Errorf("whispercpp ASR: %w", err)
	}
	defer rc.Close()

	cfg := engine.DefaultConfig()
	if req.Config != nil {
		cfg = *req.Config
	}
	fields := map[string]string{
		"response_format": "verbose_json",
		"temperature":     "0.0",
		"beam_size":       strconv.Itoa(cfg.BeamSize),
	}
	if req.Language != "" {
		fields["language"] = req.Language
	}

	var resp verboseResponse
	err = restutil.DoMultipart(ctx, w.baseURL+"/inference", nil, restutil.Form{
		FileField: "file",
		FileName:  req.Audio.FileName(),
		File:      rc,
		Fields:    fields,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("whispercpp ASR: %w", err)
	}

	out := &engine.Result{
		Text:     strings.TrimSpace(resp.Text),
		Language: resp.Language,
		Duration: resp.Duration,
		Segments: make([]engine.Segment, 0, len(resp.Segments)),
	}
	for _, s := range resp.Segments {
		out.Segments = append(out.Segments, engine.Segment{
			Text:  strings.TrimSpace(s.Text),
			Start: s.Start,
			End:   s.End,
		})
	}
	if out.Duration == 0 && len(out.Segments) > 0 {
		out.Duration = out.Segments[len(out.Segments)-1].End
	}
	return out, nil
}

func (w *ASR) Models() []engine.ModelInfo {
	models := engine.WhisperModels(false)
	for i := range models {
		models[i].IsDefault = models[i].ID == w.model
	}
	return models
}

func (w *ASR) Close() error {
	return nil
}
