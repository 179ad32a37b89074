// Package export writes transcripts to text, JSON or CSV files.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Format is an export file format.
type Format string

const (
	Text Format = "txt"
	JSON Format = "json"
	CSV  Format = "csv"
)

// ErrUnknownFormat is returned for formats other than txt, json and csv.
var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat maps a name onto a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case Text, JSON, CSV:
		return f, nil
	case "text":
		return Text, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Exporter writes files into a single directory.
type Exporter struct {
	dir string
	now func() time.Time
}

// New creates an exporter rooted at dir. The directory is created on first
// export.
func New(dir string) *Exporter {
	if dir == "" {
		dir = "exports"
	}
	return &Exporter{dir: dir, now: time.Now}
}

// Dir returns the export directory.
func (e *Exporter) Dir() string { return e.dir }

// Filename builds "<base>_<YYYYmmdd_HHMMSS>_<8 hex>.<ext>". An empty base
// becomes "transcript".
func (e *Exporter) Filename(base string, ext Format) string {
	if base == "" {
		base = "transcript"
	}
	id := uuid.NewString()[:8]
	return fmt.Sprintf("%s_%s_%s.%s", base, e.now().Format("20060102_150405"), id, ext)
}

// Export writes transcript in format f and returns the file path. filename
// overrides the generated name; only its base is used.
func (e *Exporter) Export(f Format, transcript string, metadata map[string]any, filename string) (string, error) {
	var (
		body []byte
		err  error
	)
	switch f {
	case Text:
		body = []byte(transcript)
	case JSON:
		body, err = e.jsonBody(transcript, metadata)
	case CSV:
		body, err = e.csvBody(transcript, metadata)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
	if err != nil {
		return "", err
	}

	if filename == "" {
		filename = e.Filename("", f)
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(e.dir, filepath.Base(filename))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}

func (e *Exporter) timestamp() string {
	return e.now().Format("2006-01-02T15:04:05.000000")
}

func (e *Exporter) jsonBody(transcript string, metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	err := enc.Encode(struct {
		Transcript string         `json:"transcript"`
		Timestamp  string         `json:"timestamp"`
		Metadata   map[string]any `json:"metadata"`
	}{transcript, e.timestamp(), metadata})
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// csvBody writes a header and one row. Metadata columns follow in key order.
func (e *Exporter) csvBody(transcript string, metadata map[string]any) ([]byte, error) {
	header := []string{"timestamp", "transcript"}
	row := []string{e.timestamp(), transcript}

	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		header = append(header, k)
		row = append(row, fmt.Sprint(metadata[k]))
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write(header)
	w.Write(row)
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	return buf.Bytes(), nil
}

// AIPayload is a transcript wrapped for a downstream model.
type AIPayload struct {
	Transcript      string         `json:"transcript"`
	Source          string         `json:"source"`
	Timestamp       string         `json:"timestamp"`
	ProcessingStage string         `json:"processing_stage"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// PrepareForAI wraps transcript for a downstream model.
func (e *Exporter) PrepareForAI(transcript string, metadata map[string]any) AIPayload {
	p := AIPayload{
		Transcript:      transcript,
		Source:          "voice_query",
		Timestamp:       e.timestamp(),
		ProcessingStage: "transcription_complete",
	}
	if len(metadata) > 0 {
		p.Metadata = metadata
	}
	return p
}
