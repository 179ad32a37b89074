package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/voicetyped/voicequery/internal/faults"
	"github.com/voicetyped/voicequery/internal/query"
)

// maxImageBytes caps the optional product image.
var maxImageBytes int64 = 20 << 20

var errNoAudio = errors.New("no audio file provided")

// saveUpload copies a multipart file to a temp file, keeping its extension
// so the decoder can tell the container apart. The caller removes the file.
func saveUpload(dir string, file multipart.File, hdr *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(hdr.Filename))
	if ext == "" {
		ext = ".wav"
	}
	f, err := os.CreateTemp(dir, "upload_*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(f, file); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("save upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// audioUpload stores the audio_file part on disk.
func (h *Handler) audioUpload(r *http.Request) (string, error) {
	file, hdr, err := r.FormFile("audio_file")
	if errors.Is(err, http.ErrMissingFile) {
		return "", errNoAudio
	}
	if err != nil {
		return "", fmt.Errorf("read audio_file: %w", err)
	}
	defer file.Close()
	if hdr.Size == 0 {
		return "", errNoAudio
	}
	return saveUpload(h.tempDir, file, hdr)
}

// imageUpload reads the optional image part. A missing part yields nil.
func imageUpload(r *http.Request) (*query.Image, error) {
	file, _, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	defer file.Close()
	b, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(b)) > maxImageBytes {
		return nil, faults.Input("read image", fmt.Errorf("image exceeds %d bytes", maxImageBytes))
	}
	if len(b) == 0 {
		return nil, nil
	}
	return query.ImageFromBytes(b), nil
}
