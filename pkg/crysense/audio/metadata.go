package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-audio/wav"
)

// Info describes a recording without decoding its samples.
type Info struct {
	Name       string        `json:"name"`
	Container  string        `json:"container"`
	Codec      string        `json:"codec,omitempty"`
	Duration   time.Duration `json:"duration"`
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
	BitDepth   int           `json:"bit_depth,omitempty"`
}

// NeedsResample reports whether the recording must be converted to reach
// rate.
func (i *Info) NeedsResample(rate int) bool { return i.SampleRate != rate }

func (i *Info) String() string {
	return fmt.Sprintf("%s: %.2fs, %d Hz, %d ch (%s)", i.Name, i.Duration.Seconds(), i.SampleRate, i.Channels, i.Container)
}

// probeTimeout bounds ffprobe when the caller sets no deadline.
const probeTimeout = 5 * time.Second

// Probe reads the WAV header directly and falls back to ffprobe for every
// other container, or for WAV variants go-audio cannot parse.
func Probe(ctx context.Context, path string) (*Info, error) {
	if IsWAV(path) {
		if info, err := probeWAV(path); err == nil {
			return info, nil
		}
	}
	return probeFFmpeg(ctx, path)
}

func probeWAV(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: %s is not a PCM WAV file", ErrDecode, path)
	}
	// The duration comes from the data chunk size; FwdToPCM swallows
	// header errors, so Err is checked as well.
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := dec.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	bytesPerSec := int64(dec.SampleRate) * int64(dec.NumChans) * int64(dec.BitDepth) / 8
	if bytesPerSec <= 0 {
		return nil, fmt.Errorf("%w: %s has an invalid format header", ErrDecode, path)
	}
	return &Info{
		Name:       filepath.Base(path),
		Container:  "wav",
		Codec:      "pcm",
		Duration:   time.Duration(dec.PCMLen()) * time.Second / time.Duration(bytesPerSec),
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}, nil
}

func probeFFmpeg(ctx context.Context, path string) (*Info, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, probeTimeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "format=format_name,duration:stream=codec_name,sample_rate,channels,bits_per_raw_sample",
		"-of", "json",
		path)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: ffprobe %s: %v %s", ErrDecode, path, err, strings.TrimSpace(stderr.String()))
	}
	return decodeProbe(out, path)
}

// probeReport is the subset of `ffprobe -of json` output Probe asks for.
type probeReport struct {
	Format struct {
		Name     string `json:"format_name"`
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		Codec      string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
		BitDepth   string `json:"bits_per_raw_sample"`
	} `json:"streams"`
}

func decodeProbe(out []byte, path string) (*Info, error) {
	var r probeReport
	if err := json.Unmarshal(out, &r); err != nil {
		return nil, fmt.Errorf("%w: ffprobe output: %v", ErrDecode, err)
	}
	if len(r.Streams) == 0 {
		return nil, fmt.Errorf("%w: %s has no audio stream", ErrDecode, path)
	}

	s := r.Streams[0]
	info := &Info{
		Name:      filepath.Base(path),
		Container: strings.Split(r.Format.Name, ",")[0],
		Codec:     s.Codec,
		Channels:  s.Channels,
	}
	info.SampleRate, _ = strconv.Atoi(s.SampleRate)
	info.BitDepth, _ = strconv.Atoi(s.BitDepth)
	if secs, err := strconv.ParseFloat(r.Format.Duration, 64); err == nil {
		info.Duration = time.Duration(secs * float64(time.Second))
	}
	return info, nil
}
