package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	historyLimit  int
	historyModels bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past classifications",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of records to show (0 = all)")
	historyCmd.Flags().BoolVar(&historyModels, "models", false, "list registered models instead")
}

func runHistory(cmd *cobra.Command, args []string) error {
	svc, _, _, err := createService(cmd, true)
	if err != nil {
		return err
	}
	defer svc.Close()

	if historyModels {
		list, err := svc.ListModels()
		if err != nil {
			return err
		}
		if outputJSON {
			return json.NewEncoder(os.Stdout).Encode(list)
		}
		if len(list) == 0 {
			fmt.Println("📭 No registered models")
			return nil
		}
		fmt.Printf("📚 %d registered model(s):\n\n", len(list))
		for i, m := range list {
			fmt.Printf("%d. %s (%s, %d features) ID: %s\n", i+1, m.Name, m.Kind, m.FeatureCount, m.ID)
			fmt.Printf("   %s\n", m.Path)
		}
		return nil
	}

	records, err := svc.ListHistory(historyLimit)
	if err != nil {
		return err
	}
	if outputJSON {
		return json.NewEncoder(os.Stdout).Encode(records)
	}
	if len(records) == 0 {
		fmt.Println("📭 No classifications recorded")
		return nil
	}

	fmt.Printf("📚 %d classification(s):\n\n", len(records))
	for i, r := range records {
		fmt.Printf("%d. %s (%.1f%%) %s\n", i+1, r.Class, r.Confidence, r.CreatedAt.Format("2006-01-02 15:04:05"))
		if r.AudioPath != "" {
			fmt.Printf("   Audio: %s\n", r.AudioPath)
		}
		if r.DurationMs > 0 {
			fmt.Printf("   Duration: %.1fs\n", float64(r.DurationMs)/1000)
		}
		if r.Reconciled != "" && r.Reconciled != "none" {
			fmt.Printf("   Features: %s to %d\n", r.Reconciled, r.FeatureCount)
		}
	}
	return nil
}
