package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/CrySense/pkg/crysense"
	"github.com/himanishpuri/CrySense/pkg/crysense/audio"
	"github.com/himanishpuri/CrySense/pkg/crysense/model"
)

var classifyTimeout time.Duration

var classifyCmd = &cobra.Command{
	Use:   "classify <audio>",
	Short: "Predict the cry type of a recording",
	Args:  cobra.ExactArgs(1),
	RunE:  runClassify,
}

func init() {
	classifyCmd.Flags().DurationVar(&classifyTimeout, "timeout", 2*time.Minute, "maximum time for decoding and classification")
}

func runClassify(cmd *cobra.Command, args []string) error {
	audioPath := args[0]

	svc, settings, log, err := createService(cmd, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	if settings.ModelPath == "" {
		return errors.New("no model artifact given, use --model or CRYSENSE_MODEL")
	}
	if !outputJSON {
		fmt.Println("🔧 Loading model...")
	}
	artifact, err := model.Load(settings.ModelPath)
	if err != nil {
		log.Errorf("Model load failed: %v", err)
		return err
	}
	log.Infof("Loaded %s model with %d classes and %d features", artifact.Kind(), len(artifact.ClassNames()), artifact.NumFeatures())

	if !outputJSON {
		fmt.Println("🎧 Analyzing recording...")
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), classifyTimeout)
	defer cancel()

	if info, err := audio.Probe(ctx, audioPath); err != nil {
		log.Debugf("Probe failed: %v", err)
	} else if !outputJSON {
		fmt.Printf("🎵 %s\n", info)
	}

	res, err := svc.Classify(ctx, audioPath, artifact)
	if err != nil {
		var pe *crysense.PredictionError
		if errors.As(err, &pe) {
			return fmt.Errorf("%s", pe.Message())
		}
		return err
	}

	if outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printResult(res)
	return nil
}

type classProb struct {
	name string
	pct  float64
}

func sortedProbabilities(probs map[string]float64) []classProb {
	out := make([]classProb, 0, len(probs))
	for name, pct := range probs {
		out = append(out, classProb{name, pct})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].pct != out[j].pct {
			return out[i].pct > out[j].pct
		}
		return out[i].name < out[j].name
	})
	return out
}

func printResult(res *crysense.PredictionResult) {
	fmt.Printf("\n✅ Detected cry type: %s\n", res.Class)
	fmt.Printf("   Confidence: %.1f%%\n", res.Confidence)

	if res.Reconciliation.Mismatched() {
		fmt.Printf("⚠️  Feature vector %s: model expects %d features, extracted %d\n",
			res.Reconciliation.Action, res.Reconciliation.Expected, res.Reconciliation.Actual)
	}

	fmt.Println("\n📊 Probabilities:")
	for _, cp := range sortedProbabilities(res.Probabilities) {
		bar := strings.Repeat("█", int(cp.pct/5+0.5))
		fmt.Printf("   %-14s %6.2f%% %s\n", cp.name, cp.pct, bar)
	}
	if res.HistoryID != "" {
		fmt.Printf("\n💾 Saved to history as %s\n", res.HistoryID)
	}
}
