package events

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of event flowing through the system.
type EventType string

const (
	TranscriptionCompleted EventType = "transcription.completed"
	QueryGenerated         EventType = "query.generated"
	QueryFailed            EventType = "query.failed"
	PipelineFailed         EventType = "pipeline.failed"
	CallbackDelivered      EventType = "callback.delivered"
	CallbackFailed         EventType = "callback.failed"
)

// Envelope wraps every event on the bus. RequestID ties it to the pipeline
// run that produced it.
type Envelope struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Source    string          `json:"source"`
	RequestID string          `json:"request_id"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// TranscriptionCompletedData is the payload for transcription.completed events.
type TranscriptionCompletedData struct {
	Transcript string  `json:"transcript"`
	Language   string  `json:"language,omitempty"`
	Duration   float64 `json:"duration"`
	Segmented  bool    `json:"segmented"`
	Segments   int     `json:"segments"`
	Backend    string  `json:"backend"`
	Model      string  `json:"model"`
}

// QueryGeneratedData is the payload for query.generated events.
type QueryGeneratedData struct {
	Transcript string          `json:"transcript"`
	Query      json.RawMessage `json:"query"`
	Items      int             `json:"items"`
}

// QueryFailedData is the payload for query.failed events.
type QueryFailedData struct {
	Transcript string `json:"transcript"`
	Error      string `json:"error"`
}

// PipelineFailedData is the payload for pipeline.failed events.
type PipelineFailedData struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// CallbackData is the payload for callback.delivered and callback.failed events.
type CallbackData struct {
	URL        string `json:"url"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
}
