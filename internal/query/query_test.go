package query

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

type fakeChat struct {
	reply string
	err   error
	reqs  []openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: f.reply}}},
	}, nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"items\":[]}\n```":           `{"items":[]}`,
		"Sure!\n```json\n{\"a\":1}\n```\nBye":     `{"a":1}`,
		"```\n{\"b\":2}\n```":                     `{"b":2}`,
		"```json\n{\"c\":3}":                      `{"c":3}`,
		"  {\"plain\":true}  ":                    "  {\"plain\":true}  ",
		"no fences here":                          "no fences here",
		"x ```js\n[1]``` y ```json\n[2]\n``` end": "[2]",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGenerateFencedReply(t *testing.T) {
	chat := &fakeChat{reply: "```json\n{\"items\":[{\"description\":\"red shirt\",\"max_price\":30}]}\n```"}
	g := NewGenerator(chat, "", nil)

	res := g.Generate(context.Background(), "a red shirt under thirty", nil)
	if !res.OK() {
		t.Fatalf("unexpected failure: %+v", res.Failure)
	}
	if res.ItemCount() != 1 {
		t.Errorf("items = %d, want 1", res.ItemCount())
	}

	req := chat.reqs[0]
	if req.Model != DefaultModel {
		t.Errorf("model = %q", req.Model)
	}
	if !strings.Contains(req.Messages[0].Content, "Transcribed text: a red shirt under thirty") {
		t.Error("prompt should embed the transcript")
	}
	if len(req.Messages[0].MultiContent) != 0 {
		t.Error("no image parts expected")
	}
}

func TestGenerateUnparseableReply(t *testing.T) {
	g := NewGenerator(&fakeChat{reply: "not json at all"}, "", nil)

	res := g.Generate(context.Background(), "blue jeans", nil)
	if res.OK() {
		t.Fatal("expected failure")
	}
	if res.Failure.Error != "Could not parse response as JSON" {
		t.Errorf("error = %q", res.Failure.Error)
	}
	if res.Failure.RawResponse == nil || *res.Failure.RawResponse != "not json at all" {
		t.Errorf("raw_response = %v", res.Failure.RawResponse)
	}
	if res.Failure.Transcript != "blue jeans" {
		t.Errorf("transcript = %q", res.Failure.Transcript)
	}
}

func TestGenerateRawResponseTruncated(t *testing.T) {
	long := strings.Repeat("é", 300)
	res := NewGenerator(&fakeChat{reply: long}, "", nil).Generate(context.Background(), "x", nil)
	if got := []rune(*res.Failure.RawResponse); len(got) != 200 {
		t.Errorf("raw_response has %d runes, want 200", len(got))
	}
}

func TestGenerateInvocationError(t *testing.T) {
	g := NewGenerator(&fakeChat{err: errors.New("quota exceeded")}, "", nil)

	res := g.Generate(context.Background(), "shoes", nil)
	if res.OK() {
		t.Fatal("expected failure")
	}
	if res.Failure.Error != "Failed to generate query: quota exceeded" {
		t.Errorf("error = %q", res.Failure.Error)
	}
	if res.Failure.RawResponse != nil {
		t.Error("raw_response must be absent on invocation errors")
	}

	var m map[string]any
	if err := json.Unmarshal(res.JSON(), &m); err != nil {
		t.Fatal(err)
	}
	if _, ok := m["raw_response"]; ok {
		t.Error("raw_response key must be omitted")
	}
}

func TestGenerateLongTranscriptReachesModel(t *testing.T) {
	chat := &fakeChat{reply: `{"items":[]}`}
	g := NewGenerator(chat, "", nil)

	transcript := strings.Repeat("black leather boots with a low heel. ", 2000)
	res := g.Generate(context.Background(), transcript, nil)
	if !res.OK() {
		t.Fatalf("unexpected failure: %+v", res.Failure)
	}
	if len(chat.reqs) != 1 {
		t.Fatalf("model calls = %d, want 1", len(chat.reqs))
	}
	if !strings.Contains(chat.reqs[0].Messages[0].Content, transcript) {
		t.Error("transcript was not sent verbatim")
	}
}

func TestGenerateEmptyTranscriptSkipsModel(t *testing.T) {
	chat := &fakeChat{reply: "{}"}
	res := NewGenerator(chat, "", nil).Generate(context.Background(), "   ", nil)
	if !res.OK() || string(res.JSON()) != `{"items":[]}` {
		t.Errorf("result = %s", res.JSON())
	}
	if len(chat.reqs) != 0 {
		t.Error("model should not be called")
	}
}

func TestGenerateWithImage(t *testing.T) {
	chat := &fakeChat{reply: `{"items":[]}`}
	path := filepath.Join(t.TempDir(), "shirt.png")
	if err := os.WriteFile(path, pngBytes(t), 0o644); err != nil {
		t.Fatal(err)
	}

	res := NewGenerator(chat, "", nil).Generate(context.Background(), "this one in green", ImageFromFile(path))
	if !res.OK() {
		t.Fatalf("failure: %+v", res.Failure)
	}
	parts := chat.reqs[0].Messages[0].MultiContent
	if len(parts) != 2 {
		t.Fatalf("parts = %d, want 2", len(parts))
	}
	if parts[1].Type != openai.ChatMessagePartTypeImageURL || !strings.HasPrefix(parts[1].ImageURL.URL, "data:image/png;base64,") {
		t.Errorf("image part = %+v", parts[1])
	}
}

func TestGenerateSkipsUndecodableImage(t *testing.T) {
	chat := &fakeChat{reply: `{"items":[]}`}
	NewGenerator(chat, "", nil).Generate(context.Background(), "hat", ImageFromBytes([]byte("not an image")))
	if len(chat.reqs[0].Messages[0].MultiContent) != 0 {
		t.Error("undecodable image should be skipped")
	}
}

func TestResultIndented(t *testing.T) {
	r := Result{Query: json.RawMessage(`{"items":[{"description":"café"}]}`)}
	want := "{\n  \"items\": [\n    {\n      \"description\": \"café\"\n    }\n  ]\n}"
	if got := r.Indented(); got != want {
		t.Errorf("Indented() =\n%s", got)
	}
}

func TestGenerateOverOpenAIWire(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/openai/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer gkey" {
			t.Error("missing bearer token")
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "1",
			"object":  "chat.completion",
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": "```json\n{\"items\":[]}\n```"}}},
		})
	}))
	defer srv.Close()

	g := NewGenerator(NewClient("gkey", srv.URL+"/v1beta/openai/"), "", nil)
	res := g.Generate(context.Background(), "socks", nil)
	if !res.OK() {
		t.Fatalf("failure: %+v", res.Failure)
	}
}
