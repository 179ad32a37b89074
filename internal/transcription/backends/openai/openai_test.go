package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voicetyped/voicequery/internal/transcription/engine"
	"github.com/voicetyped/voicequery/internal/transcription/registry"
)

func TestTranscribeVerboseJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Error(err)
			return
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("model = %q", got)
		}
		if got := r.FormValue("language"); got != "es" {
			t.Errorf("language = %q", got)
		}
		if got := r.FormValue("response_format"); got != "verbose_json" {
			t.Errorf("response_format = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"task":     "transcribe",
			"language": "spanish",
			"duration": 3.5,
			"text":     " quiero una camisa azul ",
			"segments": []map[string]any{
				{"id": 0, "start": 0.0, "end": 3.5, "text": " quiero una camisa azul"},
			},
		})
	}))
	defer srv.Close()

	asr := New("key", srv.URL+"/v1", "base")
	res, err := asr.Transcribe(context.Background(), engine.Request{
		Audio:    engine.Input{Data: []byte("RIFF"), Name: "clip.wav"},
		Language: "es",
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "quiero una camisa azul" {
		t.Errorf("text = %q", res.Text)
	}
	if res.Duration != 3.5 || res.Language != "spanish" {
		t.Errorf("duration/language = %v/%q", res.Duration, res.Language)
	}
	if len(res.Segments) != 1 || res.Segments[0].End != 3.5 {
		t.Errorf("segments = %+v", res.Segments)
	}
}

func TestTranscribeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"unsupported language","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	_, err := New("key", srv.URL, "").Transcribe(context.Background(), engine.Request{
		Audio: engine.Input{Data: []byte("RIFF")},
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestFactoryRequiresKey(t *testing.T) {
	if _, err := registry.ASR.Create("openai", map[string]string{}); err == nil {
		t.Fatal("expected missing key error")
	}
	e, err := registry.ASR.Create("openai", map[string]string{"api_key": "k", "model": "gpt-4o-transcribe"})
	if err != nil {
		t.Fatal(err)
	}
	if e.(*ASR).model != "gpt-4o-transcribe" {
		t.Errorf("model = %q", e.(*ASR).model)
	}
}
