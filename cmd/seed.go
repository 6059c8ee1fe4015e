package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/walkability/internal/ingest"
	"github.com/sells-group/walkability/internal/tiger"
)

func newSeedCmd(a *app) *cobra.Command {
	var useTiger bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write every known county name with empty statistics",
		Long: `Inserts a row for each county in the reference tables without touching
statistics of counties that already have data. With --tiger the national
TIGER/Line county file for reference.tiger_year is used when no
reference.county_shapefile is configured.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			f := a.newFetcher()
			source := a.cfg.Reference.CountyShapefile
			if source == "" && useTiger {
				source = tiger.CountyURL(a.cfg.Reference.TigerYear)
			}
			names, err := a.loadNames(ctx, f, st, source)
			if err != nil {
				return err
			}

			n, err := ingest.New(st, f, ingest.Options{Names: names}).SeedCounties(ctx, st)
			if err != nil {
				return eris.Wrap(err, "seed")
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d counties\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&useTiger, "tiger", false, "load county names from the Census TIGER/Line county file")
	return cmd
}
