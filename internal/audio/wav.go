package audio

import (
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"
)

const wavFormatPCM = 1

var errNotWAV = errors.New("not a PCM WAV file")

// decodeWAV reads a PCM WAV stream into mono float samples in [-1, 1] and
// returns them along with the source sample rate.
func decodeWAV(r io.ReadSeeker) ([]float32, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, errNotWAV
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, 0, fmt.Errorf("%w: audio format %d", errNotWAV, dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("read PCM: %w", err)
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth <= 0 {
		bitDepth = buf.SourceBitDepth
	}
	scale := float32(math.Pow(2, float64(bitDepth-1)))
	if bitDepth == 8 {
		// 8-bit WAV is unsigned.
		scale = 128
	}

	interleaved := make([]float32, len(buf.Data))
	for i, s := range buf.Data {
		if bitDepth == 8 {
			s -= 128
		}
		interleaved[i] = float32(s) / scale
	}

	channels := int(dec.NumChans)
	if buf.Format != nil && buf.Format.NumChannels > 0 {
		channels = buf.Format.NumChannels
	}
	return downmix(interleaved, channels), int(dec.SampleRate), nil
}

// EncodeWAV renders mono float samples as a 16-bit PCM WAV file.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	out := &writerseeker.WriterSeeker{}
	enc := wav.NewEncoder(out, sampleRate, 16, 1, wavFormatPCM)

	data := make([]int, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		data[i] = int(s * math.MaxInt16)
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encoder write buffer: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoder close: %w", err)
	}

	b, err := io.ReadAll(out.Reader())
	if err != nil {
		return nil, fmt.Errorf("reading wav into memory: %w", err)
	}
	return b, nil
}

// WAV renders the handle as a 16-bit PCM WAV file.
func (h *Handle) WAV() ([]byte, error) {
	return EncodeWAV(h.Samples, h.SampleRate)
}
