// Package pipeline runs audio through transcription and query generation.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/voicetyped/voicequery/internal/audio"
	"github.com/voicetyped/voicequery/internal/faults"
	"github.com/voicetyped/voicequery/internal/query"
	"github.com/voicetyped/voicequery/internal/transcription"
	"github.com/voicetyped/voicequery/internal/transcription/engine"
	"github.com/voicetyped/voicequery/pkg/callback"
	"github.com/voicetyped/voicequery/pkg/events"
	"github.com/voicetyped/voicequery/pkg/history"
)

const (
	DefaultSegmentThresholdMB = 30
	DefaultSegmentSeconds     = audio.DefaultSegmentSeconds
)

// AudioLoader decodes an audio file into samples.
type AudioLoader interface {
	Load(ctx context.Context, path string) (*audio.Handle, error)
}

// Generator produces a query from a transcript.
type Generator interface {
	Generate(ctx context.Context, transcript string, img *query.Image) query.Result
}

// HistoryStore persists processed queries.
type HistoryStore interface {
	Save(ctx context.Context, rec *history.QueryRecord) error
}

// Callbacks delivers results to caller URLs.
type Callbacks interface {
	Validate(ctx context.Context, rawURL string) error
	Dispatch(ctx context.Context, target string, p callback.Payload)
}

// Request is one pipeline run.
type Request struct {
	RequestID   string
	AudioPath   string
	Image       *query.Image
	Language    string
	Backend     string
	Model       string
	SkipQuery   bool
	CallbackURL string
}

// Response is the outcome of a successful run. Query is nil when the query
// step was skipped.
type Response struct {
	RequestID  string                 `json:"request_id"`
	Transcript string                 `json:"transcription"`
	Language   string                 `json:"language,omitempty"`
	Segments   []engine.Segment       `json:"segments"`
	Duration   float64                `json:"duration"`
	Segmented  bool                   `json:"segmented"`
	Config     engine.InferenceConfig `json:"config"`
	Backend    string                 `json:"backend"`
	Model      string                 `json:"model"`
	Query      *query.Result          `json:"query"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithEvents emits pipeline events through pub.
func WithEvents(pub *events.Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithHistory persists each successful run.
func WithHistory(store HistoryStore) Option {
	return func(p *Pipeline) { p.history = store }
}

// WithCallbacks enables result callbacks.
func WithCallbacks(cb Callbacks) Option {
	return func(p *Pipeline) { p.callbacks = cb }
}

// WithSegmenting sets the size above which audio is split and the window
// length. Non-positive values keep the defaults.
func WithSegmenting(thresholdMB float64, seconds int) Option {
	return func(p *Pipeline) {
		if thresholdMB > 0 {
			p.thresholdMB = thresholdMB
		}
		if seconds > 0 {
			p.segmentSeconds = seconds
		}
	}
}

// WithStat replaces the file size lookup.
func WithStat(stat func(path string) (int64, error)) Option {
	return func(p *Pipeline) { p.stat = stat }
}

// Pipeline orchestrates a single request end to end.
type Pipeline struct {
	loader      AudioLoader
	transcriber *transcription.Transcriber
	generator   Generator

	publisher *events.Publisher
	history   HistoryStore
	callbacks Callbacks

	thresholdMB    float64
	segmentSeconds int
	stat           func(path string) (int64, error)
}

// New creates a pipeline. generator may be nil, in which case only
// transcription is available.
func New(loader AudioLoader, tr *transcription.Transcriber, generator Generator, opts ...Option) *Pipeline {
	p := &Pipeline{
		loader:         loader,
		transcriber:    tr,
		generator:      generator,
		thresholdMB:    DefaultSegmentThresholdMB,
		segmentSeconds: DefaultSegmentSeconds,
		stat:           fileSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func fileSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if fi.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}
	return fi.Size(), nil
}

// CanGenerate reports whether a query generator is configured.
func (p *Pipeline) CanGenerate() bool { return p.generator != nil }

// Transcriber returns the default transcriber.
func (p *Pipeline) Transcriber() *transcription.Transcriber { return p.transcriber }

// Generate runs only the query step.
func (p *Pipeline) Generate(ctx context.Context, transcript string, img *query.Image) (query.Result, error) {
	if p.generator == nil {
		return query.Result{}, ErrNoGenerator
	}
	return p.generator.Generate(ctx, transcript, img), nil
}

// Process transcribes req.AudioPath and, unless skipped, generates a query.
// Transcription failures abort the run; no partial transcript is returned.
func (p *Pipeline) Process(ctx context.Context, req Request) (*Response, error) {
	if req.RequestID == "" {
		req.RequestID = xid.New().String()
	}
	if !req.SkipQuery && p.generator == nil {
		return nil, ErrNoGenerator
	}
	if req.CallbackURL != "" {
		if p.callbacks == nil {
			return nil, faults.Input("callback", fmt.Errorf("callbacks are not enabled"))
		}
		if err := p.callbacks.Validate(ctx, req.CallbackURL); err != nil {
			return nil, faults.Input("callback", err)
		}
	}

	start := time.Now()
	size, err := p.stat(req.AudioPath)
	if err != nil {
		return nil, faults.Input("stat audio", err)
	}
	sizeMB := engine.FileSizeMB(size)
	cfg := engine.SelectConfig(sizeMB)
	tr := p.transcriber.Using(req.Backend, req.Model)

	slog.InfoContext(ctx, "processing audio",
		slog.String("request_id", req.RequestID),
		slog.String("backend", tr.Backend()),
		slog.Float64("size_mb", sizeMB),
		slog.Int("batch_size", cfg.BatchSize),
		slog.String("precision", string(cfg.Precision)),
		slog.Int("beam_size", cfg.BeamSize))

	resp := &Response{
		RequestID: req.RequestID,
		Config:    cfg,
		Backend:   tr.Backend(),
		Model:     tr.Model(),
	}

	var res *engine.Result
	if sizeMB > p.thresholdMB {
		resp.Segmented = true
		res, err = p.transcribeSegments(ctx, tr, req, &cfg)
	} else {
		res, err = tr.Transcribe(ctx, transcription.FromPath(req.AudioPath), req.Language, &cfg)
	}
	if err != nil {
		p.emit(ctx, events.PipelineFailed, req.RequestID, events.PipelineFailedData{Stage: "transcription", Error: err.Error()})
		return nil, err
	}

	resp.Transcript = res.Text
	resp.Language = res.Language
	resp.Segments = res.Segments
	resp.Duration = res.Duration

	p.emit(ctx, events.TranscriptionCompleted, req.RequestID, events.TranscriptionCompletedData{
		Transcript: res.Text,
		Language:   res.Language,
		Duration:   res.Duration,
		Segmented:  resp.Segmented,
		Segments:   len(res.Segments),
		Backend:    resp.Backend,
		Model:      resp.Model,
	})

	if !req.SkipQuery {
		q := p.generator.Generate(ctx, res.Text, req.Image)
		resp.Query = &q
		if q.OK() {
			p.emit(ctx, events.QueryGenerated, req.RequestID, events.QueryGeneratedData{
				Transcript: res.Text, Query: q.JSON(), Items: q.ItemCount(),
			})
		} else {
			p.emit(ctx, events.QueryFailed, req.RequestID, events.QueryFailedData{
				Transcript: res.Text, Error: q.ErrorMessage(),
			})
		}
	}

	p.record(ctx, req, resp, size, time.Since(start))
	p.notify(ctx, req, resp)
	return resp, nil
}

// transcribeSegments loads the file, splits it into fixed windows and
// transcribes them in order. Segment times are shifted to the window offset.
func (p *Pipeline) transcribeSegments(ctx context.Context, tr *transcription.Transcriber, req Request, cfg *engine.InferenceConfig) (*engine.Result, error) {
	h, err := p.loader.Load(ctx, req.AudioPath)
	if err != nil {
		return nil, err
	}

	parts := audio.SplitHandle(h, p.segmentSeconds)
	slog.InfoContext(ctx, "transcribing in segments",
		slog.String("request_id", req.RequestID),
		slog.Int("segments", len(parts)),
		slog.Int("segment_seconds", p.segmentSeconds))

	out := &engine.Result{Duration: h.Duration}
	texts := make([]string, 0, len(parts))
	for i, part := range parts {
		res, err := tr.Transcribe(ctx, transcription.FromHandle(part), req.Language, cfg)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		texts = append(texts, res.Text)
		if out.Language == "" {
			out.Language = res.Language
		}
		offset := float64(i * p.segmentSeconds)
		for _, s := range res.Segments {
			out.Segments = append(out.Segments, engine.Segment{
				Text:  s.Text,
				Start: s.Start + offset,
				End:   s.End + offset,
			})
		}
	}
	out.Text = strings.Join(texts, " ")
	return out, nil
}

func (p *Pipeline) emit(ctx context.Context, et events.EventType, requestID string, data any) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Emit(ctx, et, requestID, data); err != nil {
		slog.WarnContext(ctx, "emit event failed",
			slog.String("event_type", string(et)),
			slog.String("error", err.Error()))
	}
}

func (p *Pipeline) record(ctx context.Context, req Request, resp *Response, size int64, elapsed time.Duration) {
	if p.history == nil {
		return
	}
	rec := &history.QueryRecord{
		Transcript: resp.Transcript,
		Language:   resp.Language,
		AudioBytes: size,
		Segmented:  resp.Segmented,
		Backend:    resp.Backend,
		Model:      resp.Model,
		DurationMs: elapsed.Milliseconds(),
	}
	if resp.Query != nil {
		rec.Query = history.JSONB(resp.Query.JSON())
		rec.Error = resp.Query.ErrorMessage()
		rec.Items = resp.Query.ItemCount()
	}
	if err := p.history.Save(ctx, rec); err != nil {
		slog.ErrorContext(ctx, "save query history",
			slog.String("request_id", req.RequestID),
			slog.String("error", err.Error()))
	}
}

func (p *Pipeline) notify(ctx context.Context, req Request, resp *Response) {
	if req.CallbackURL == "" || p.callbacks == nil {
		return
	}
	payload := callback.Payload{
		Event:      string(events.TranscriptionCompleted),
		RequestID:  resp.RequestID,
		Transcript: resp.Transcript,
	}
	if resp.Query != nil {
		payload.Query = resp.Query.JSON()
		payload.Event = string(events.QueryGenerated)
		if !resp.Query.OK() {
			payload.Event = string(events.QueryFailed)
		}
	}
	p.callbacks.Dispatch(context.WithoutCancel(ctx), req.CallbackURL, payload)
}
