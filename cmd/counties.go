package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/walkability/internal/model"
	"github.com/sells-group/walkability/internal/store"
)

// countyFlags are shared by "counties" and "export counties".
type countyFlags struct {
	state    string
	sort     string
	limit    int
	withData bool
}

func (f *countyFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.state, "state", "", "restrict to one state (USPS code or FIPS)")
	cmd.Flags().StringVar(&f.sort, "sort", string(store.SortByName), "sort order: name or walkability")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "max counties to return (0 = all)")
	cmd.Flags().BoolVar(&f.withData, "with-data", false, "only counties that have block groups")
}

func (f *countyFlags) filter() (store.CountyFilter, error) {
	stateFIPS, err := resolveState(f.state)
	if err != nil {
		return store.CountyFilter{}, err
	}
	sort := store.CountySort(f.sort)
	switch sort {
	case store.SortByName, store.SortByWalkability:
	default:
		return store.CountyFilter{}, eris.Errorf("unknown sort %q (want name or walkability)", f.sort)
	}
	if f.limit < 0 {
		return store.CountyFilter{}, eris.New("--limit must not be negative")
	}
	return store.CountyFilter{
		StateFIPS:    stateFIPS,
		Sort:         sort,
		Limit:        f.limit,
		WithDataOnly: f.withData,
	}, nil
}

func newCountiesCmd(a *app) *cobra.Command {
	var (
		flags  countyFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "counties",
		Short: "List stored counties",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := flags.filter()
			if err != nil {
				return err
			}
			counties, err := a.listCounties(cmd, filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(counties)
			}
			if len(counties) == 0 {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "No counties found.")
				return nil
			}
			formatCounties(out, counties)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored data as CSV",
	}

	var (
		flags   countyFlags
		outPath string
	)
	counties := &cobra.Command{
		Use:   "counties",
		Short: "Write counties as CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := flags.filter()
			if err != nil {
				return err
			}
			rows, err := a.listCounties(cmd, filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outPath != "" && outPath != "-" {
				f, err := os.Create(outPath)
				if err != nil {
					return eris.Wrap(err, "export counties: create file")
				}
				defer f.Close() //nolint:errcheck
				out = f
			}
			return writeCountiesCSV(out, rows)
		},
	}
	flags.register(counties)
	counties.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")

	cmd.AddCommand(counties)
	return cmd
}

func (a *app) listCounties(cmd *cobra.Command, filter store.CountyFilter) ([]model.County, error) {
	ctx := cmd.Context()
	st, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer st.Close() //nolint:errcheck

	counties, err := st.ListCounties(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "list counties")
	}
	return counties, nil
}

// writeCountiesCSV writes a header row followed by one row per county.
func writeCountiesCSV(w io.Writer, counties []model.County) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if len(counties) == 0 {
		if err := enc.EncodeHeader(model.County{}); err != nil {
			return eris.Wrap(err, "export counties: header")
		}
	} else if err := enc.Encode(counties); err != nil {
		return eris.Wrap(err, "export counties: encode")
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export counties: flush")
}

// formatCounties writes a tabular list of counties to out.
func formatCounties(out io.Writer, counties []model.County) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FIPS\tNAME\tAVG\tBLOCK_GROUPS\tPOPULATION\tHOUSING")
	_, _ = fmt.Fprintln(w, "----\t----\t---\t------------\t----------\t-------")
	for _, c := range counties {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.2f\t%d\t%d\t%d\n",
			c.FIPS(),
			c.Name,
			c.AvgWalkability,
			c.BlockGroupCount,
			c.Population,
			c.HousingUnits,
		)
	}
	_ = w.Flush()
}
