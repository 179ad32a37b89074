// Package api serves the REST interface of the voice query service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/voicetyped/voicequery/internal/faults"
	"github.com/voicetyped/voicequery/internal/pipeline"
	"github.com/voicetyped/voicequery/internal/query/prompt"
	"github.com/voicetyped/voicequery/internal/transcription/engine"
	"github.com/voicetyped/voicequery/pkg/events"
	"github.com/voicetyped/voicequery/pkg/export"
	"github.com/voicetyped/voicequery/pkg/history"
)

const (
	Version = "1.0.0"

	defaultMaxUpload   = 200 << 20
	maxJSONBodySize    = 1 << 20 // 1 MiB
	multipartMemory    = 32 << 20
	defaultHistoryPage = 50
)

// HistoryStore is the part of the history repository the API exposes.
type HistoryStore interface {
	GetByID(ctx context.Context, id string) (*history.QueryRecord, error)
	List(ctx context.Context, limit, offset int) ([]history.QueryRecord, error)
	Delete(ctx context.Context, id string) error
}

// Config wires optional collaborators into the handler.
type Config struct {
	Exporter  *export.Exporter
	History   HistoryStore
	Publisher *events.Publisher
	Prompts   *prompt.Loader
	// MaxUploadBytes caps multipart request bodies. Zero uses 200 MiB.
	MaxUploadBytes int64
	TempDir        string
}

// Handler provides the REST endpoints.
type Handler struct {
	pipeline  *pipeline.Pipeline
	exporter  *export.Exporter
	history   HistoryStore
	publisher *events.Publisher
	prompts   *prompt.Loader
	maxUpload int64
	tempDir   string
	started   time.Time
}

// NewHandler creates a REST handler around p.
func NewHandler(p *pipeline.Pipeline, cfg Config) *Handler {
	h := &Handler{
		pipeline:  p,
		exporter:  cfg.Exporter,
		history:   cfg.History,
		publisher: cfg.Publisher,
		prompts:   cfg.Prompts,
		maxUpload: cfg.MaxUploadBytes,
		tempDir:   cfg.TempDir,
		started:   time.Now(),
	}
	if h.maxUpload <= 0 {
		h.maxUpload = defaultMaxUpload
	}
	if h.exporter == nil {
		h.exporter = export.New("")
	}
	return h
}

// RegisterRoutes registers all REST routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Info)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /transcribe", h.Transcribe)
	mux.HandleFunc("POST /generate-query", h.GenerateQuery)
	mux.HandleFunc("POST /process", h.Process)
	mux.HandleFunc("POST /export", h.Export)
	mux.HandleFunc("POST /prepare", h.Prepare)
	mux.HandleFunc("GET /models", h.Models)
	mux.HandleFunc("GET /languages", h.Languages)
	mux.HandleFunc("GET /prompts", h.Prompts)
	if h.history != nil {
		mux.HandleFunc("GET /api/v1/history", h.ListHistory)
		mux.HandleFunc("GET /api/v1/history/{id}", h.GetHistory)
		mux.HandleFunc("DELETE /api/v1/history/{id}", h.DeleteHistory)
	}
	if h.publisher != nil {
		mux.HandleFunc("GET /api/v1/events", h.Events)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeFailure maps a pipeline error onto a status code. prefix is used for
// server-side failures only.
func writeFailure(ctx context.Context, w http.ResponseWriter, prefix string, err error) {
	switch {
	case errors.Is(err, pipeline.ErrNoGenerator):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case faults.IsInput(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.ErrorContext(ctx, prefix, slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("%s: %v", prefix, err))
	}
}

// Info handles GET /
func (h *Handler) Info(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, InfoResponse{
		Name:        "voicequery API",
		Version:     Version,
		Description: "Turns spoken shopping requests into structured product queries",
	})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	tr := h.pipeline.Transcriber()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:                   "healthy",
		Uptime:                   time.Since(h.started).Seconds(),
		WhisperBackend:           tr.Backend(),
		WhisperModel:             tr.Model(),
		QueryGenerationAvailable: h.pipeline.CanGenerate(),
		Version:                  Version,
	})
}

func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return false
	}
	return true
}

// Transcribe handles POST /transcribe
func (h *Handler) Transcribe(w http.ResponseWriter, r *http.Request) {
	if !h.parseMultipart(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	path, err := h.audioUpload(r)
	if errors.Is(err, errNoAudio) {
		writeError(w, http.StatusBadRequest, "No audio file provided")
		return
	}
	if err != nil {
		writeFailure(r.Context(), w, "Error during transcription", err)
		return
	}
	defer os.Remove(path)

	resp, err := h.pipeline.Process(r.Context(), pipeline.Request{
		AudioPath: path,
		Language:  r.FormValue("language"),
		Backend:   r.FormValue("backend"),
		Model:     r.FormValue("model"),
		SkipQuery: true,
	})
	if err != nil {
		writeFailure(r.Context(), w, "Error during transcription", err)
		return
	}

	writeJSON(w, http.StatusOK, TranscribeResponse{
		Success:       true,
		RequestID:     resp.RequestID,
		Transcription: resp.Transcript,
		Language:      resp.Language,
		Segments:      resp.Segments,
		Duration:      resp.Duration,
		Segmented:     resp.Segmented,
	})
}

// GenerateQuery handles POST /generate-query
func (h *Handler) GenerateQuery(w http.ResponseWriter, r *http.Request) {
	if !h.pipeline.CanGenerate() {
		writeError(w, http.StatusServiceUnavailable, pipeline.ErrNoGenerator.Error())
		return
	}
	if !h.parseMultipart(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	transcript := r.FormValue("transcription")
	img, err := imageUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.pipeline.Generate(r.Context(), transcript, img)
	if err != nil {
		writeFailure(r.Context(), w, "Error generating query", err)
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{
		Success:       true,
		Query:         res.JSON(),
		Transcription: transcript,
	})
}

// Process handles POST /process
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	if !h.pipeline.CanGenerate() {
		writeError(w, http.StatusServiceUnavailable, pipeline.ErrNoGenerator.Error())
		return
	}
	if !h.parseMultipart(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	path, err := h.audioUpload(r)
	if errors.Is(err, errNoAudio) {
		writeError(w, http.StatusBadRequest, "No audio file provided")
		return
	}
	if err != nil {
		writeFailure(r.Context(), w, "Error processing request", err)
		return
	}
	defer os.Remove(path)

	img, err := imageUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.pipeline.Process(r.Context(), pipeline.Request{
		AudioPath:   path,
		Image:       img,
		Language:    r.FormValue("language"),
		Backend:     r.FormValue("backend"),
		Model:       r.FormValue("model"),
		CallbackURL: r.FormValue("callback_url"),
	})
	if err != nil {
		writeFailure(r.Context(), w, "Error processing request", err)
		return
	}

	writeJSON(w, http.StatusOK, ProcessResponse{
		Success:       true,
		RequestID:     resp.RequestID,
		Transcription: resp.Transcript,
		Query:         resp.Query.JSON(),
		Segmented:     resp.Segmented,
	})
}

func decodeExport(w http.ResponseWriter, r *http.Request) (ExportRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if req.Transcript == "" {
		writeError(w, http.StatusBadRequest, "transcript is required")
		return req, false
	}
	return req, true
}

// Export handles POST /export
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeExport(w, r)
	if !ok {
		return
	}
	if req.Format == "" {
		req.Format = string(export.Text)
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	path, err := h.exporter.Export(format, req.Transcript, req.Metadata, req.Filename)
	if err != nil {
		slog.ErrorContext(r.Context(), "export failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to export transcript")
		return
	}
	writeJSON(w, http.StatusCreated, ExportResponse{Path: path})
}

// Prepare handles POST /prepare
func (h *Handler) Prepare(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeExport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.exporter.PrepareForAI(req.Transcript, req.Metadata))
}

// Models handles GET /models
func (h *Handler) Models(w http.ResponseWriter, r *http.Request) {
	tr := h.pipeline.Transcriber().Using(r.URL.Query().Get("backend"), "")
	models, err := tr.Models()
	if err != nil {
		writeFailure(r.Context(), w, "Error listing models", err)
		return
	}
	if englishOnly, _ := strconv.ParseBool(r.URL.Query().Get("english_only")); englishOnly {
		filtered := make([]engine.ModelInfo, 0, len(models))
		for _, m := range models {
			if m.EnglishOnly {
				filtered = append(filtered, m)
			}
		}
		models = filtered
	}
	writeJSON(w, http.StatusOK, ModelsResponse{Backend: tr.Backend(), Models: models})
}

// Languages handles GET /languages
func (h *Handler) Languages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, engine.Languages())
}

// Prompts handles GET /prompts
func (h *Handler) Prompts(w http.ResponseWriter, _ *http.Request) {
	resp := []PromptResponse{}
	if h.prompts != nil {
		current := h.prompts.Current().Name
		for _, t := range h.prompts.List() {
			resp = append(resp, PromptResponse{
				Name:        t.Name,
				Description: t.Description,
				Current:     t.Name == current,
			})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func toHistoryResponse(rec *history.QueryRecord) HistoryResponse {
	return HistoryResponse{
		ID:         rec.ID,
		Transcript: rec.Transcript,
		Language:   rec.Language,
		Query:      rec.Query,
		Error:      rec.Error,
		Items:      rec.Items,
		Segmented:  rec.Segmented,
		Backend:    rec.Backend,
		Model:      rec.Model,
		DurationMs: rec.DurationMs,
		CreatedAt:  rec.CreatedAt.Format(time.RFC3339),
	}
}

// ListHistory handles GET /api/v1/history
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = defaultHistoryPage
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	records, err := h.history.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	resp := make([]HistoryResponse, 0, len(records))
	for i := range records {
		resp = append(resp, toHistoryResponse(&records[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetHistory handles GET /api/v1/history/{id}
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	rec, err := h.history.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "query record not found")
		return
	}
	writeJSON(w, http.StatusOK, toHistoryResponse(rec))
}

// DeleteHistory handles DELETE /api/v1/history/{id}
func (h *Handler) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.history.GetByID(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "query record not found")
		return
	}
	if err := h.history.Delete(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete query record")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
