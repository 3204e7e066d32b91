package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/himanishpuri/CrySense/pkg/utils"
)

// DefaultSampleRate is the analysis rate every recording is brought to.
const DefaultSampleRate = 16000

// DefaultConvertTimeout bounds an ffmpeg run when the caller sets no deadline.
const DefaultConvertTimeout = 30 * time.Second

// ErrNoFFmpeg is returned when a non-WAV recording arrives and ffmpeg is
// not on PATH.
var ErrNoFFmpeg = errors.New("ffmpeg not found in PATH")

// transcodeArgs builds the ffmpeg command line that writes in as 16-bit
// mono PCM at rate.
func transcodeArgs(in, out string, rate int) []string {
	return []string{
		"-nostdin", "-y",
		"-v", "error",
		"-i", in,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(rate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		out,
	}
}

// Transcode converts any ffmpeg-readable recording into a mono WAV at rate
// inside dir and returns the new file's path. The caller removes it.
func Transcode(ctx context.Context, in, dir string, rate int) (string, error) {
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	bin, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", ErrNoFFmpeg
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultConvertTimeout)
		defer cancel()
	}
	if err := utils.MakeDir(dir); err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}

	out := utils.TempPath(dir, ".wav")
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, transcodeArgs(in, out, rate)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		utils.DeleteFile(out)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ffmpeg %s: %v: %s", in, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}
