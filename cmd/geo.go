package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/miriamhowe1992-eng/smilemap/internal/geocode"
	"github.com/miriamhowe1992-eng/smilemap/internal/store"
)

var geoCmd = &cobra.Command{
	Use:   "geo",
	Short: "Geocoding utilities",
}

var geoBackfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Resolve coordinates for stored practices that lack them",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		resolver := initResolver(st)

		recs, err := st.ListPractices(ctx, store.PracticeFilter{})
		if err != nil {
			return err
		}

		var pending []int
		var postcodes []string
		for i := range recs {
			if recs[i].Coordinates == nil && recs[i].Postcode != "" {
				pending = append(pending, i)
				postcodes = append(postcodes, recs[i].Postcode)
			}
		}
		if len(pending) == 0 {
			zap.L().Info("geo backfill: nothing to do", zap.Int("practices", len(recs)))
			return nil
		}

		resolved := resolver.ResolveBulk(ctx, postcodes)

		updated := 0
		for _, i := range pending {
			coords, ok := resolved[geocode.Normalize(recs[i].Postcode)]
			if !ok {
				continue
			}
			c := coords
			recs[i].Coordinates = &c
			if err := st.UpsertPractice(ctx, &recs[i]); err != nil {
				return eris.Wrapf(err, "update practice %s", recs[i].CanonicalURL)
			}
			updated++
		}

		zap.L().Info("geo backfill complete",
			zap.Int("pending", len(pending)),
			zap.Int("updated", updated),
			zap.Int("unresolved", len(pending)-updated))
		return nil
	},
}

func init() {
	geoCmd.AddCommand(geoBackfillCmd)
	rootCmd.AddCommand(geoCmd)
}
