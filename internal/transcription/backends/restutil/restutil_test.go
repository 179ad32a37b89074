package restutil

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDoRawErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad language code", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := DoRaw(context.Background(), http.MethodGet, srv.URL, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "HTTP 400") || !strings.Contains(err.Error(), "language") {
		t.Fatalf("err = %v", err)
	}
}

func TestDoMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Error(err)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Error(err)
			return
		}
		b, _ := io.ReadAll(f)
		json.NewEncoder(w).Encode(map[string]string{
			"name": hdr.Filename,
			"body": string(b),
			"beam": r.FormValue("beam_size"),
		})
	}))
	defer srv.Close()

	var out map[string]string
	err := DoMultipart(context.Background(), srv.URL, nil, Form{
		FileField: "file",
		FileName:  "clip.wav",
		File:      strings.NewReader("RIFF"),
		Fields:    map[string]string{"beam_size": "5"},
	}, &out)
	if err != nil {
		t.Fatal(err)
	}
	if out["name"] != "clip.wav" || out["body"] != "RIFF" || out["beam"] != "5" {
		t.Errorf("got %v", out)
	}
}
