// Package query turns a transcript and an optional image into a structured
// shopping query using a multimodal chat model.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/voicetyped/voicequery/internal/faults"
	"github.com/voicetyped/voicequery/internal/query/prompt"
)

const (
	// DefaultBaseURL is Gemini's OpenAI-compatible endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	DefaultModel   = "gemini-2.0-flash"

	rawResponseLimit = 200
)

// ChatClient is the subset of the go-openai client the generator uses.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewClient builds a chat client for an OpenAI-compatible endpoint.
func NewClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(baseURL, "/")
	return openai.NewClientWithConfig(cfg)
}

// Generator produces structured queries.
type Generator struct {
	client  ChatClient
	model   string
	prompts *prompt.Loader
}

// NewGenerator creates a generator. A nil prompts uses the built-in templates.
func NewGenerator(client ChatClient, model string, prompts *prompt.Loader) *Generator {
	if model == "" {
		model = DefaultModel
	}
	if prompts == nil {
		prompts = prompt.NewLoader("", "")
	}
	return &Generator{client: client, model: model, prompts: prompts}
}

// Model reports the chat model in use.
func (g *Generator) Model() string { return g.model }

// Generate asks the model for a query. It never returns an error; failures
// are carried in the result.
func (g *Generator) Generate(ctx context.Context, transcript string, img *Image) Result {
	var imageURL string
	if img != nil {
		u, err := img.DataURL()
		if err != nil {
			slog.WarnContext(ctx, "skipping image", slog.String("error", err.Error()))
		} else {
			imageURL = u
		}
	}

	if strings.TrimSpace(transcript) == "" && imageURL == "" {
		return Result{Query: emptyQuery}
	}

	text, err := g.prompts.Current().Render(transcript)
	if err != nil {
		return invocationFailure(transcript, err)
	}

	reply, err := g.complete(ctx, text, imageURL)
	if err != nil {
		slog.ErrorContext(ctx, "query generation failed",
			slog.String("model", g.model),
			slog.String("error", err.Error()))
		return invocationFailure(transcript, err)
	}

	return parseReply(reply, transcript)
}

func (g *Generator) complete(ctx context.Context, text, imageURL string) (string, error) {
	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if imageURL == "" {
		msg.Content = text
	} else {
		msg.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: text},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
				URL:    imageURL,
				Detail: openai.ImageURLDetailAuto,
			}},
		}
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: []openai.ChatCompletionMessage{msg},
	})
	if err != nil {
		return "", &faults.GenerationError{Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &faults.GenerationError{Err: errors.New("model returned no choices")}
	}
	return resp.Choices[0].Message.Content, nil
}

func parseReply(reply, transcript string) Result {
	body := Normalize(reply)
	if json.Valid([]byte(body)) {
		return Result{Query: json.RawMessage(body)}
	}
	raw := truncate(reply, rawResponseLimit)
	return Result{Failure: &Failure{
		Error:       "Could not parse response as JSON",
		Transcript:  transcript,
		RawResponse: &raw,
	}}
}

func invocationFailure(transcript string, err error) Result {
	var ge *faults.GenerationError
	if errors.As(err, &ge) {
		err = ge.Err
	}
	return Result{Failure: &Failure{
		Error:      fmt.Sprintf("Failed to generate query: %v", err),
		Transcript: transcript,
	}}
}
