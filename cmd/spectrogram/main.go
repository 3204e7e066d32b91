// Command spectrogram renders the conditioned signal of cry recordings as
// PNG images.
package main

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/eligwz/spectrogram"
	"github.com/spf13/cobra"

	"github.com/himanishpuri/CrySense/pkg/crysense/audio"
	"github.com/himanishpuri/CrySense/pkg/crysense/signal"
	"github.com/himanishpuri/CrySense/pkg/logger"
	"github.com/himanishpuri/CrySense/pkg/utils"
)

type options struct {
	outputDir string
	width     int
	height    int
	raw       bool
	log10     bool
}

var opts options

var rootCmd = &cobra.Command{
	Use:          "spectrogram <audio|dir>...",
	Short:        "Render cry recordings as spectrogram PNGs",
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.GetLogger().With("spectrogram")
		loader := audio.NewLoader(audio.DefaultSampleRate, os.TempDir())
		if err := utils.MakeDir(opts.outputDir); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		var failed int
		for _, arg := range args {
			paths, err := collect(arg)
			if err != nil {
				return err
			}
			for _, path := range paths {
				out := filepath.Join(opts.outputDir, filepath.Base(path)+".png")
				if err := renderFile(cmd.Context(), loader, path, out, opts); err != nil {
					log.Errorf("%s: %v", path, err)
					failed++
					continue
				}
				log.Infof("Saved spectrogram to %s", out)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d recording(s) failed", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVarP(&opts.outputDir, "output", "o", "spectrograms", "directory for the PNG files")
	rootCmd.Flags().IntVar(&opts.width, "width", 2048, "image width in pixels")
	rootCmd.Flags().IntVar(&opts.height, "height", 512, "image height in pixels (frequency bins)")
	rootCmd.Flags().BoolVar(&opts.raw, "raw", false, "render the decoded waveform without conditioning")
	rootCmd.Flags().BoolVar(&opts.log10, "log10", false, "use a logarithmic magnitude scale")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// collect expands a directory into the supported recordings it contains.
func collect(arg string) ([]string, error) {
	info, err := os.Stat(arg)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{arg}, nil
	}

	var paths []string
	err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && audio.IsSupported(path) {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

func renderFile(ctx context.Context, loader *audio.Loader, path, out string, o options) error {
	clip, err := loader.Load(ctx, path)
	if err != nil {
		return err
	}
	samples := clip.Samples
	if !o.raw {
		samples, err = signal.Condition(samples, clip.SampleRate)
		if err != nil {
			return err
		}
	}

	img := spectrogram.NewImage128(image.Rect(0, 0, o.width, o.height))
	black := spectrogram.ParseColor("000000")
	draw.Draw(img, img.Bounds(), image.NewUniform(black), image.Point{}, draw.Src)

	// Hamming window, FFT, magnitude
	spectrogram.Drawfft(img, samples, uint32(clip.SampleRate), uint32(o.height), false, false, true, o.log10)
	return spectrogram.SavePng(img, out)
}
