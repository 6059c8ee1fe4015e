package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/walkability/pkg/datagov"
)

func newSearchCmd(a *app) *cobra.Command {
	var rows int

	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Search catalog.data.gov for importable walkability datasets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := datagov.NewClient(a.cfg.DataGov.APIKey,
				datagov.WithBaseURL(a.cfg.DataGov.BaseURL),
			)
			res, err := client.Search(cmd.Context(), strings.Join(args, " "), rows)
			if err != nil {
				return eris.Wrap(err, "search")
			}
			formatSearch(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().IntVar(&rows, "rows", 10, "max packages to return")
	return cmd
}

// formatSearch lists each package with its importable resources.
func formatSearch(w io.Writer, res *datagov.SearchResult) {
	_, _ = fmt.Fprintf(w, "%d matching packages\n", res.Count)
	for _, p := range res.Packages {
		_, _ = fmt.Fprintf(w, "\n%s (%s)\n", p.Title, p.Name)
		if p.Organization.Title != "" {
			_, _ = fmt.Fprintf(w, "  publisher: %s\n", p.Organization.Title)
		}
		resources := p.CSVResources()
		if len(resources) == 0 {
			_, _ = fmt.Fprintln(w, "  no importable resources")
			continue
		}
		for _, r := range resources {
			_, _ = fmt.Fprintf(w, "  [%s] %s\n", strings.ToUpper(r.Format), r.URL)
		}
	}
}
