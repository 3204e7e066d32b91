package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SupportedExtensions lists the containers accepted by Load. Anything other
// than WAV goes through ffmpeg.
var SupportedExtensions = []string{".wav", ".wave", ".mp3", ".m4a", ".aac", ".ogg", ".oga", ".opus", ".webm", ".flac"}

// IsWAV reports whether path has a WAV extension.
func IsWAV(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".wav" || ext == ".wave"
}

// IsSupported reports whether Load accepts path's extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Loader decodes recordings to mono waveforms at a fixed rate.
type Loader struct {
	SampleRate int
	TempDir    string
}

// NewLoader returns a Loader targeting sampleRate (DefaultSampleRate when
// zero) that stages ffmpeg output in tempDir.
func NewLoader(sampleRate int, tempDir string) *Loader {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Loader{SampleRate: sampleRate, TempDir: tempDir}
}

// Load decodes path. WAV files are read natively and resampled if needed;
// a WAV the native decoder rejects and every other container is converted
// with ffmpeg first.
func (l *Loader) Load(ctx context.Context, path string) (*Clip, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if IsWAV(path) {
		clip, err := ReadWAV(path)
		if err == nil {
			return l.toRate(clip)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wavPath, err := Transcode(ctx, path, l.TempDir, l.SampleRate)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: audio conversion failed: %v", ErrDecode, err)
	}
	defer os.Remove(wavPath)

	clip, err := ReadWAV(wavPath)
	if err != nil {
		return nil, err
	}
	return l.toRate(clip)
}

func (l *Loader) toRate(clip *Clip) (*Clip, error) {
	if clip.SampleRate == l.SampleRate {
		return clip, nil
	}
	samples, err := Resample(clip.Samples, clip.SampleRate, l.SampleRate)
	if err != nil {
		return nil, err
	}
	return &Clip{
		Samples:    samples,
		SampleRate: l.SampleRate,
		Channels:   clip.Channels,
		BitDepth:   clip.BitDepth,
	}, nil
}
