// Package openai transcribes audio with an OpenAI-compatible transcription
// endpoint.
package openai

import (
	"context"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/voicetyped/voicequery/internal/transcription/engine"
	"github.com/voicetyped/voicequery/internal/transcription/registry"
)

const defaultModel = goopenai.Whisper1

func init() {
	registry.ASR.Register("openai", func(config map[string]string) (engine.Engine, error) {
		apiKey := config["openai_api_key"]
		if apiKey == "" {
			apiKey = config["api_key"]
		}
		if apiKey == "" {
			return nil, fmt.Errorf("openai API key required (set OPENAI_API_KEY)")
		}
		return New(apiKey, config["openai_base_url"], config["model"]), nil
	})
}

// ASR implements engine.Engine on top of the audio transcription API.
type ASR struct {
	client *goopenai.Client
	model  string
}

// New creates an engine. An empty baseURL uses the public OpenAI API. Local
// whisper sizes such as "base" map to whisper-1, the only hosted model.
func New(apiKey, baseURL, model string) *ASR {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if _, local := engine.LookupModel(model); local || model == "" {
		model = defaultModel
	}
	return &ASR{client: goopenai.NewClientWithConfig(cfg), model: model}
}

func (o *ASR) Transcribe(ctx context.Context, req engine.Request) (*engine.Result, error) {
	rc, err := req.Audio.Open()
	if err != nil {
		return nil, fmt.Errorf("openai ASR: %w", err)
	}
	defer rc.Close()

	resp, err := o.client.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    o.model,
		FilePath: req.Audio.FileName(),
		Reader:   rc,
		Language: req.Language,
		Format:   goopenai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("openai ASR: %w", err)
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
	return out, nil
}

func (o *ASR) Models() []engine.ModelInfo {
	return []engine.ModelInfo{
		{ID: goopenai.Whisper1, DisplayName: "Whisper 1", IsDefault: true},
	}
}

func (o *ASR) Close() error {
	return nil
}
