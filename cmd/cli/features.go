package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/CrySense/pkg/crysense"
)

var featuresCmd = &cobra.Command{
	Use:   "features <audio>",
	Short: "Print the named feature vector of a recording",
	Args:  cobra.ExactArgs(1),
	RunE:  runFeatures,
}

func runFeatures(cmd *cobra.Command, args []string) error {
	svc, _, _, err := createService(cmd, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	vec, err := svc.ExtractFeatures(ctx, args[0])
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
		return enc.Encode(struct {
			Names  []string  `json:"names"`
			Values []float64 `json:"values"`
		}{vec.Names, vec.Values})
	}

	fmt.Printf("🧮 %d features\n\n", vec.Len())
	for i, name := range vec.Names {
		fmt.Printf("%-32s %s\n", name, strconv.FormatFloat(vec.Values[i], 'g', 8, 64))
	}
	return nil
}
