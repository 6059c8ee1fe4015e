package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/walkability/internal/stats"
	"github.com/sells-group/walkability/internal/store"
)

func newStatsCmd(a *app) *cobra.Command {
	var (
		state, county string
		years         int
		asJSON        bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize stored walkability scores",
		Long: `Prints average, median and score distribution of the stored block groups
(50 states plus DC unless --state is given), per-state averages, the states
most in need of attention and, with --forecast-years, a projection.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			stateFIPS, err := resolveState(state)
			if err != nil {
				return err
			}
			if county != "" && stateFIPS == "" {
				return eris.New("--county requires --state")
			}

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			rep, err := stats.Build(ctx, st, store.SummaryFilter{StateFIPS: stateFIPS, CountyFIPS: county}, years)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			formatReport(out, rep)
			return nil
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "summarize one state (USPS code or FIPS)")
	cmd.Flags().StringVar(&county, "county", "", "summarize one county (3-digit FIPS, needs --state)")
	cmd.Flags().IntVar(&years, "forecast-years", 0, "project state averages this many years ahead (1-50)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// formatReport writes a human-readable stats report to out.
func formatReport(out io.Writer, rep *stats.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	s := rep.Summary
	_, _ = fmt.Fprintf(w, "Block groups:\t%d\n", s.BlockGroupCount)
	_, _ = fmt.Fprintf(w, "Population:\t%d\n", s.Population)
	_, _ = fmt.Fprintf(w, "Average score:\t%.2f\n", s.AvgWalkability)
	_, _ = fmt.Fprintf(w, "Median score:\t%.2f\n", s.MedianWalkability)
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "SCORE\tBLOCK_GROUPS")
	for _, b := range s.Buckets {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", b.Label, b.Count)
	}

	if len(rep.Recommendations) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "STATE\tSCORE\tPRIORITY\tRECOMMENDATION")
		for _, r := range rep.Recommendations {
			_, _ = fmt.Fprintf(w, "%s\t%.2f\t%s\t%s\n", r.Abbr, r.CurrentScore, r.Priority, r.Recommendation)
		}
	}

	if len(rep.Forecast) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "STATE\tCURRENT\tPROJECTED")
		for _, f := range rep.Forecast {
			_, _ = fmt.Fprintf(w, "%s\t%.2f\t%.2f\n", f.Abbr, f.Current, f.Projected)
		}
	}
	_ = w.Flush()
}
