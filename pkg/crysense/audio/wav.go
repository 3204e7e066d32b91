// Package audio decodes cry recordings into mono float64 waveforms at the
// analysis sample rate.
package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrDecode is returned when a recording cannot be turned into samples.
var ErrDecode = errors.New("audio decode failed")

// Clip is a decoded mono recording.
type Clip struct {
	Samples    []float64
	SampleRate int

	// Channels and BitDepth describe the source before down-mixing.
	Channels int
	BitDepth int
}

// Duration returns the clip length.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(c.Samples)) / float64(c.SampleRate) * float64(time.Second))
}

// DecodeWAV reads a PCM WAV stream, averages its channels to mono and
// scales samples to [-1, 1).
func DecodeWAV(r io.ReadSeeker) (*Clip, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid WAV file", ErrDecode)
	}
	if decoder.WavAudioFormat != 1 {
		return nil, fmt.Errorf("%w: unsupported WAV encoding %d", ErrDecode, decoder.WavAudioFormat)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: reading samples: %v", ErrDecode, err)
	}
	channels := int(decoder.NumChans)
	bitDepth := int(decoder.BitDepth)
	if channels <= 0 {
		return nil, fmt.Errorf("%w: no channels", ErrDecode)
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, fmt.Errorf("%w: unsupported bit depth %d", ErrDecode, bitDepth)
	}

	return &Clip{
		Samples:    downmix(buf.Data, channels, bitDepth),
		SampleRate: int(decoder.SampleRate),
		Channels:   channels,
		BitDepth:   bitDepth,
	}, nil
}

// downmix converts interleaved integer PCM to mono floats. 8-bit WAV is
// unsigned; wider depths are signed.
func downmix(data []int, channels, bitDepth int) []float64 {
	scale := math.Ldexp(1, bitDepth-1)
	offset := 0.0
	if bitDepth == 8 {
		offset = 128
	}
	frames := len(data) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += (float64(data[i*channels+c]) - offset) / scale
		}
		out[i] = sum / float64(channels)
	}
	return out
}

// ReadWAV decodes the WAV file at path.
func ReadWAV(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio: %w", err)
	}
	defer f.Close()
	return DecodeWAV(f)
}

// EncodeWAV writes mono samples in [-1, 1] as 16-bit PCM.
func EncodeWAV(w io.WriteSeeker, samples []float64, sampleRate int) error {
	const bitDepth = 16
	enc := wav.NewEncoder(w, sampleRate, bitDepth, 1, 1)

	data := make([]int, len(samples))
	for i, v := range samples {
		v = math.Max(-1, math.Min(1, v))
		data[i] = int(math.Round(v * 32767))
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalise WAV: %w", err)
	}
	return nil
}

// WriteWAV writes samples to a new WAV file at path.
func WriteWAV(path string, samples []float64, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := EncodeWAV(f, samples, sampleRate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
