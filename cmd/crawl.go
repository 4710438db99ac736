package main

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/miriamhowe1992-eng/smilemap/internal/classify"
	"github.com/miriamhowe1992-eng/smilemap/internal/crawler"
	"github.com/miriamhowe1992-eng/smilemap/internal/extract"
	"github.com/miriamhowe1992-eng/smilemap/internal/model"
	"github.com/miriamhowe1992-eng/smilemap/internal/snapshot"
	"github.com/miriamhowe1992-eng/smilemap/internal/store"
)

var crawlSeedFile string

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl the directory and write the nightly snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		runAt := time.Now().UTC()

		seedFile := crawlSeedFile
		if seedFile == "" {
			seedFile = cfg.Crawl.SeedFile
		}
		seeds, err := loadSeeds(seedFile)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		cr := crawler.New(crawler.Options{
			Concurrency:   cfg.Crawl.Concurrency,
			Timeout:       time.Duration(cfg.Crawl.TimeoutSecs) * time.Second,
			MaxAttempts:   cfg.Crawl.MaxAttempts,
			Pacing:        time.Duration(cfg.Crawl.PacingMS) * time.Millisecond,
			UserAgent:     cfg.Crawl.UserAgent,
			DirectoryHost: cfg.Crawl.DirectoryHost,
		})

		zap.L().Info("crawl started",
			zap.Int("seeds", len(seeds)),
			zap.String("seed_file", seedFile))
		results := cr.Run(ctx, seeds)

		snap, skipped, err := buildSnapshot(results, runAt)
		if err != nil {
			return err
		}

		prev, err := snapshot.LoadLatest(cfg.Output.Dir)
		if err != nil {
			return err
		}

		w, err := snapshot.NewWriter(cfg.Output.Dir)
		if err != nil {
			return err
		}
		path, err := w.WriteSnapshot(snap)
		if err != nil {
			return err
		}

		cs := snapshot.Diff(prev, snap, skipped)
		if err := w.WriteChanges(cs, runAt); err != nil {
			return err
		}

		if err := persistSnapshot(ctx, st, snap); err != nil {
			return err
		}

		zap.L().Info("crawl complete",
			zap.String("snapshot", path),
			zap.Int("practices", snap.Total),
			zap.Int("skipped", len(skipped)),
			zap.Int("added", len(cs.Added)),
			zap.Int("removed", len(cs.Removed)),
			zap.Int("status_changed", len(cs.StatusChanged)))
		return nil
	},
}

// loadSeeds reads the practice index produced by the discovery stage.
func loadSeeds(path string) ([]model.Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read seed file %s", path)
	}
	var seeds []model.Seed
	if err := json.Unmarshal(data, &seeds); err != nil {
		return nil, eris.Wrapf(err, "parse seed file %s", path)
	}
	if len(seeds) == 0 {
		return nil, eris.Errorf("seed file %s is empty", path)
	}
	return seeds, nil
}

// buildSnapshot turns crawl results into an immutable snapshot. Seeds that
// exhausted their retries go into the skipped set instead of the snapshot so
// an unreachable page never reads as a removed practice.
func buildSnapshot(results []crawler.Result, runAt time.Time) (*model.Snapshot, map[string]bool, error) {
	items := make([]model.PracticeRecord, 0, len(results))
	skipped := make(map[string]bool)

	for _, r := range results {
		canonical, err := model.CanonicalURL(r.Seed.URL)
		if err != nil {
			zap.L().Warn("seed url rejected", zap.String("url", r.Seed.URL), zap.Error(err))
			continue
		}
		if r.Failed() {
			skipped[canonical] = true
			zap.L().Warn("seed skipped",
				zap.String("url", canonical),
				zap.Int("attempts", r.Attempts),
				zap.Error(r.Err))
			continue
		}

		ext, err := extract.Page(r.HTML, r.Seed.URL, runAt)
		if err != nil {
			skipped[canonical] = true
			zap.L().Warn("extraction failed", zap.String("url", canonical), zap.Error(err))
			continue
		}

		rec := ext.Record
		// The index entry fills anything the page itself did not yield.
		if rec.Name == "" {
			rec.Name = r.Seed.Name
		}
		if rec.AddressText == "" {
			rec.AddressText = r.Seed.Address
			rec.Postcode = model.NormalizePostcode(r.Seed.Address)
		}
		if rec.Postcode == "" {
			rec.Postcode = model.NormalizePostcode(r.Seed.Postcode)
		}
		rec.Availability, rec.AvailabilityNote = classify.Classify(ext.StatusText)
		items = append(items, rec)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].CanonicalURL < items[j].CanonicalURL })

	return &model.Snapshot{
		GeneratedAt: runAt,
		Total:       len(items),
		Items:       items,
	}, skipped, nil
}

func persistSnapshot(ctx context.Context, st store.Store, snap *model.Snapshot) error {
	for i := range snap.Items {
		if err := st.UpsertPractice(ctx, &snap.Items[i]); err != nil {
			return eris.Wrapf(err, "persist practice %s", snap.Items[i].CanonicalURL)
		}
	}
	return nil
}

func init() {
	crawlCmd.Flags().StringVar(&crawlSeedFile, "seeds", "", "seed file path (default from config)")
	rootCmd.AddCommand(crawlCmd)
}
