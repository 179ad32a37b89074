package api

import (
	"encoding/json"

	"github.com/voicetyped/voicequery/internal/transcription/engine"
	"github.com/voicetyped/voicequery/pkg/history"
)

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Success       bool            `json:"success"`
	Error         string          `json:"error"`
	Transcription *string         `json:"transcription"`
	Query         json.RawMessage `json:"query"`
}

// InfoResponse describes the service.
type InfoResponse struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status                   string  `json:"status"`
	Uptime                   float64 `json:"uptime"`
	WhisperBackend           string  `json:"whisper_backend"`
	WhisperModel             string  `json:"whisper_model"`
	QueryGenerationAvailable bool    `json:"query_generation_available"`
	Version                  string  `json:"version"`
}

// TranscribeResponse is returned by POST /transcribe.
type TranscribeResponse struct {
	Success       bool             `json:"success"`
	RequestID     string           `json:"request_id"`
	Transcription string           `json:"transcription"`
	Language      string           `json:"language,omitempty"`
	Segments      []engine.Segment `json:"segments"`
	Duration      float64          `json:"duration"`
	Segmented     bool             `json:"segmented"`
}

// QueryResponse is returned by POST /generate-query.
type QueryResponse struct {
	Success       bool            `json:"success"`
	Query         json.RawMessage `json:"query"`
	Transcription string          `json:"transcription"`
}

// ProcessResponse is returned by POST /process.
type ProcessResponse struct {
	Success       bool            `json:"success"`
	RequestID     string          `json:"request_id"`
	Transcription string          `json:"transcription"`
	Query         json.RawMessage `json:"query"`
	Segmented     bool            `json:"segmented"`
}

// ExportRequest is the body of POST /export.
type ExportRequest struct {
	Transcript string         `json:"transcript"`
	Format     string         `json:"format"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Filename   string         `json:"filename,omitempty"`
}

// ExportResponse reports where an export was written.
type ExportResponse struct {
	Path string `json:"path"`
}

// ModelsResponse lists a backend's models.
type ModelsResponse struct {
	Backend string             `json:"backend"`
	Models  []engine.ModelInfo `json:"models"`
}

// PromptResponse describes a prompt template.
type PromptResponse struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Current     bool   `json:"current"`
}

// HistoryResponse is one stored query.
type HistoryResponse struct {
	ID         string          `json:"id"`
	Transcript string          `json:"transcript"`
	Language   string          `json:"language,omitempty"`
	Query      history.JSONB   `json:"query"`
	Error      string          `json:"error,omitempty"`
	Items      int             `json:"items"`
	Segmented  bool            `json:"segmented"`
	Backend    string          `json:"backend"`
	Model      string          `json:"model"`
	DurationMs int64           `json:"duration_ms"`
	CreatedAt  string          `json:"created_at"`
}
