package rpc

import (
	"encoding/json"

	"github.com/voicetyped/voicequery/internal/transcription/engine"
)

// Byte fields travel as base64 strings in JSON.

type TranscribeRequest struct {
	Audio    []byte `json:"audio"`
	FileName string `json:"file_name,omitempty"`
	Language string `json:"language,omitempty"`
	Backend  string `json:"backend,omitempty"`
	Model    string `json:"model,omitempty"`
}

type TranscribeResponse struct {
	RequestID     string                 `json:"request_id"`
	Transcription string                 `json:"transcription"`
	Language      string                 `json:"language,omitempty"`
	Segments      []engine.Segment       `json:"segments"`
	Duration      float64                `json:"duration"`
	Segmented     bool                   `json:"segmented"`
	Config        engine.InferenceConfig `json:"config"`
}

type GenerateQueryRequest struct {
	Transcription string `json:"transcription"`
	Image         []byte `json:"image,omitempty"`
}

type GenerateQueryResponse struct {
	Transcription string          `json:"transcription"`
	Query         json.RawMessage `json:"query"`
	OK            bool            `json:"ok"`
}

type ProcessRequest struct {
	Audio       []byte `json:"audio"`
	FileName    string `json:"file_name,omitempty"`
	Image       []byte `json:"image,omitempty"`
	Language    string `json:"language,omitempty"`
	Backend     string `json:"backend,omitempty"`
	Model       string `json:"model,omitempty"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type ProcessResponse struct {
	RequestID     string          `json:"request_id"`
	Transcription string          `json:"transcription"`
	Query         json.RawMessage `json:"query"`
	OK            bool            `json:"ok"`
	Segmented     bool            `json:"segmented"`
}

type ListModelsRequest struct {
	Backend     string `json:"backend,omitempty"`
	EnglishOnly bool   `json:"english_only,omitempty"`
}

type ListModelsResponse struct {
	Backend string             `json:"backend"`
	Models  []engine.ModelInfo `json:"models"`
}
