package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"

	"github.com/voicetyped/voicequery/internal/connectutil"
	"github.com/voicetyped/voicequery/internal/pipeline"
	"github.com/voicetyped/voicequery/internal/query"
	"github.com/voicetyped/voicequery/internal/transcription"
	"github.com/voicetyped/voicequery/internal/transcription/engine"
)

type fakeEngine struct{ err error }

func (f *fakeEngine) Transcribe(_ context.Context, req engine.Request) (*engine.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &engine.Result{Text: "black boots", Language: "en", Duration: 1}, nil
}
func (f *fakeEngine) Models() []engine.ModelInfo { return engine.WhisperModels(false) }
func (f *fakeEngine) Close() error               { return nil }

type fakeSource struct{ e engine.Engine }

func (s fakeSource) Get(string, string) (engine.Engine, error) { return s.e, nil }

type fakeGenerator struct{}

func (fakeGenerator) Generate(_ context.Context, transcript string, _ *query.Image) query.Result {
	if transcript == "" {
		return query.Result{Failure: &query.Failure{Error: "empty"}}
	}
	return query.Result{Query: json.RawMessage(`{"items":[{"description":"black boots"}]}`)}
}

func newClient(t *testing.T, e engine.Engine, gen pipeline.Generator) QueryServiceClient {
	t.Helper()
	tr := transcription.New(fakeSource{e: e}, "fake", "base")
	p := pipeline.New(nil, tr, gen)

	mux := http.NewServeMux()
	path, h := NewQueryServiceHandler(NewQueryHandler(p, t.TempDir()), connectutil.DefaultOptions()...)
	mux.Handle(path, h)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return NewQueryServiceClient(srv.Client(), srv.URL, connectutil.DefaultClientOptions()...)
}

func TestTranscribe(t *testing.T) {
	c := newClient(t, &fakeEngine{}, nil)
	resp, err := c.Transcribe(context.Background(), connect.NewRequest(&TranscribeRequest{
		Audio:    []byte("RIFF...."),
		FileName: "clip.wav",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Msg.Transcription != "black boots" || resp.Msg.Config != engine.DefaultConfig() {
		t.Fatalf("response = %+v", resp.Msg)
	}
}

func TestTranscribeRequiresAudio(t *testing.T) {
	c := newClient(t, &fakeEngine{}, nil)
	_, err := c.Transcribe(context.Background(), connect.NewRequest(&TranscribeRequest{}))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Fatalf("code = %v (%v)", connect.CodeOf(err), err)
	}
}

func TestTranscribeBackendFailure(t *testing.T) {
	c := newClient(t, &fakeEngine{err: errors.New("boom")}, nil)
	_, err := c.Transcribe(context.Background(), connect.NewRequest(&TranscribeRequest{Audio: []byte("x")}))
	if connect.CodeOf(err) != connect.CodeInternal {
		t.Fatalf("code = %v", connect.CodeOf(err))
	}
}

func TestProcess(t *testing.T) {
	c := newClient(t, &fakeEngine{}, fakeGenerator{})
	resp, err := c.Process(context.Background(), connect.NewRequest(&ProcessRequest{Audio: []byte("RIFF")}))
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Msg.OK || resp.Msg.Transcription != "black boots" {
		t.Fatalf("response = %+v", resp.Msg)
	}
	var q struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.Unmarshal(resp.Msg.Query, &q); err != nil || len(q.Items) != 1 {
		t.Fatalf("query = %s (%v)", resp.Msg.Query, err)
	}
}

func TestProcessWithoutGenerator(t *testing.T) {
	c := newClient(t, &fakeEngine{}, nil)
	_, err := c.Process(context.Background(), connect.NewRequest(&ProcessRequest{Audio: []byte("RIFF")}))
	if connect.CodeOf(err) != connect.CodeUnavailable {
		t.Fatalf("code = %v", connect.CodeOf(err))
	}
}

func TestGenerateQueryFailureIsAValue(t *testing.T) {
	c := newClient(t, &fakeEngine{}, fakeGenerator{})
	resp, err := c.GenerateQuery(context.Background(), connect.NewRequest(&GenerateQueryRequest{}))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Msg.OK {
		t.Fatal("expected failure payload")
	}
}

func TestListModels(t *testing.T) {
	c := newClient(t, &fakeEngine{}, nil)
	resp, err := c.ListModels(context.Background(), connect.NewRequest(&ListModelsRequest{EnglishOnly: true}))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Msg.Backend != "fake" || len(resp.Msg.Models) != 4 {
		t.Fatalf("response = %+v", resp.Msg)
	}
}
