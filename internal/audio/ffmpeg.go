package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// transcode uses ffmpeg to convert any input into a mono 16 kHz WAV file in
// tmpDir. It returns the path of the converted file; the caller removes it.
func transcode(ctx context.Context, ffmpegPath, src, tmpDir string) (string, error) {
	bin, err := exec.LookPath(ffmpegPath)
	if err != nil {
		return "", fmt.Errorf("ffmpeg not available: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	out, err := os.CreateTemp(tmpDir, base+"_16k_*.wav")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	outPath := out.Name()
	out.Close()

	// ffmpeg -y -i input -ac 1 -ar 16000 -f wav output
	cmd := exec.CommandContext(ctx, bin,
		"-hide_banner", "-loglevel", "error",
		"-y", "-i", src,
		"-ac", "1", "-ar", strconv.Itoa(TargetSampleRate),
		"-f", "wav",
		outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return outPath, nil
}
