package rpc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"connectrpc.com/connect"

	"github.com/voicetyped/voicequery/internal/faults"
	"github.com/voicetyped/voicequery/internal/pipeline"
	"github.com/voicetyped/voicequery/internal/query"
	"github.com/voicetyped/voicequery/internal/transcription/engine"
)

var _ QueryServiceHandler = (*QueryHandler)(nil)

// QueryHandler implements QueryServiceHandler on top of the pipeline.
type QueryHandler struct {
	pipeline *pipeline.Pipeline
	tempDir  string
}

// NewQueryHandler creates a handler; uploaded audio is staged in tempDir.
func NewQueryHandler(p *pipeline.Pipeline, tempDir string) *QueryHandler {
	return &QueryHandler{pipeline: p, tempDir: tempDir}
}

func toConnectError(err error) error {
	switch {
	case errors.Is(err, pipeline.ErrNoGenerator):
		return connect.NewError(connect.CodeUnavailable, err)
	case faults.IsInput(err):
		return connect.NewError(connect.CodeInvalidArgument, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

// stage writes request audio to a temp file named after fileName's extension.
func (h *QueryHandler) stage(audio []byte, fileName string) (string, error) {
	if len(audio) == 0 {
		return "", connect.NewError(connect.CodeInvalidArgument, errors.New("audio is required"))
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" {
		ext = ".wav"
	}
	f, err := os.CreateTemp(h.tempDir, "rpc_audio_*"+ext)
	if err != nil {
		return "", connect.NewError(connect.CodeInternal, fmt.Errorf("stage audio: %w", err))
	}
	defer f.Close()
	if _, err := f.Write(audio); err != nil {
		os.Remove(f.Name())
		return "", connect.NewError(connect.CodeInternal, fmt.Errorf("stage audio: %w", err))
	}
	return f.Name(), nil
}

func image(b []byte) *query.Image {
	if len(b) == 0 {
		return nil
	}
	return query.ImageFromBytes(b)
}

func (h *QueryHandler) Transcribe(ctx context.Context, req *connect.Request[TranscribeRequest]) (*connect.Response[TranscribeResponse], error) {
	path, err := h.stage(req.Msg.Audio, req.Msg.FileName)
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)

	resp, err := h.pipeline.Process(ctx, pipeline.Request{
		AudioPath: path,
		Language:  req.Msg.Language,
		Backend:   req.Msg.Backend,
		Model:     req.Msg.Model,
		SkipQuery: true,
	})
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&TranscribeResponse{
		RequestID:     resp.RequestID,
		Transcription: resp.Transcript,
		Language:      resp.Language,
		Segments:      resp.Segments,
		Duration:      resp.Duration,
		Segmented:     resp.Segmented,
		Config:        resp.Config,
	}), nil
}

func (h *QueryHandler) GenerateQuery(ctx context.Context, req *connect.Request[GenerateQueryRequest]) (*connect.Response[GenerateQueryResponse], error) {
	res, err := h.pipeline.Generate(ctx, req.Msg.Transcription, image(req.Msg.Image))
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&GenerateQueryResponse{
		Transcription: req.Msg.Transcription,
		Query:         res.JSON(),
		OK:            res.OK(),
	}), nil
}

func (h *QueryHandler) Process(ctx context.Context, req *connect.Request[ProcessRequest]) (*connect.Response[ProcessResponse], error) {
	if !h.pipeline.CanGenerate() {
		return nil, toConnectError(pipeline.ErrNoGenerator)
	}
	path, err := h.stage(req.Msg.Audio, req.Msg.FileName)
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)

	resp, err := h.pipeline.Process(ctx, pipeline.Request{
		AudioPath:   path,
		Image:       image(req.Msg.Image),
		Language:    req.Msg.Language,
		Backend:     req.Msg.Backend,
		Model:       req.Msg.Model,
		CallbackURL: req.Msg.CallbackURL,
	})
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&ProcessResponse{
		RequestID:     resp.RequestID,
		Transcription: resp.Transcript,
		Query:         resp.Query.JSON(),
		OK:            resp.Query.OK(),
		Segmented:     resp.Segmented,
	}), nil
}

func (h *QueryHandler) ListModels(_ context.Context, req *connect.Request[ListModelsRequest]) (*connect.Response[ListModelsResponse], error) {
	tr := h.pipeline.Transcriber().Using(req.Msg.Backend, "")
	models, err := tr.Models()
	if err != nil {
		return nil, toConnectError(err)
	}
	if req.Msg.EnglishOnly {
		filtered := make([]engine.ModelInfo, 0, len(models))
		for _, m := range models {
			if m.EnglishOnly {
				filtered = append(filtered, m)
			}
		}
		models = filtered
	}
	return connect.NewResponse(&ListModelsResponse{Backend: tr.Backend(), Models: models}), nil
}
