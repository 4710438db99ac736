package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/miriamhowe1992-eng/smilemap/internal/model"
	"github.com/miriamhowe1992-eng/smilemap/internal/snapshot"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show dataset statistics from the latest snapshot",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		snap, err := snapshot.LoadLatest(cfg.Output.Dir)
		if err != nil {
			return err
		}
		if snap.Total == 0 {
			fmt.Println("No snapshot found. Run `smilemap crawl` first.")
			return nil
		}

		byStatus := map[model.Availability]int{}
		geocoded := 0
		for _, rec := range snap.Items {
			byStatus[rec.Availability]++
			if rec.Coordinates != nil {
				geocoded++
			}
		}

		fmt.Printf("Snapshot generated: %s\n", snap.GeneratedAt.Format(time.RFC3339))
		fmt.Printf("Practices:          %d\n", snap.Total)
		fmt.Printf("  accepting:        %d\n", byStatus[model.AvailabilityAccepting])
		fmt.Printf("  limited:          %d\n", byStatus[model.AvailabilityLimited])
		fmt.Printf("  not accepting:    %d\n", byStatus[model.AvailabilityNotAccepting])
		fmt.Printf("  unknown:          %d\n", byStatus[model.AvailabilityUnknown])
		fmt.Printf("Geocoded:           %d / %d\n", geocoded, snap.Total)

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		promos, err := st.ListFeatured(ctx, time.Now().UTC())
		if err != nil {
			return err
		}
		fmt.Printf("Featured (active):  %d\n", len(promos))

		if md, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "changes-latest.md")); err == nil {
			fmt.Println()
			fmt.Print(string(md))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
