package faults

import (
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestInputWrapsUnderlying(t *testing.T) {
	err := Input("open audio", os.ErrNotExist)
	if !IsInput(err) {
		t.Fatal("expected InputError")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("InputError should unwrap to os.ErrNotExist")
	}
	if IsTranscription(err) {
		t.Error("InputError must not match TranscriptionError")
	}
}

func TestTranscriptionThroughWrap(t *testing.T) {
	err := fmt.Errorf("segment 2: %w", Transcription("openai", errors.New("model exploded")))
	if !IsTranscription(err) {
		t.Fatal("expected TranscriptionError through fmt wrap")
	}
	want := "segment 2: transcription failed (openai): model exploded"
	if err.Error() != want {
		t.Errorf("message = %q, want %q", err.Error(), want)
	}
}

func TestNilErrorsStayNil(t *testing.T) {
	if Input("x", nil) != nil {
		t.Error("Input(nil) should be nil")
	}
	if Transcription("x", nil) != nil {
		t.Error("Transcription(nil) should be nil")
	}
}
