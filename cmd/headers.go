package main

import (
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/walkability/internal/ingest"
)

func newHeadersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "headers <url>",
		Short: "Print the header row of a remote CSV and how it resolves",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			aliases, err := aliasesFromConfig(a.cfg.Import.Aliases)
			if err != nil {
				return err
			}
			imp := ingest.New(nil, a.newFetcher(), ingest.Options{Aliases: aliases})

			headers, err := imp.PeekHeaders(ctx, args[0])
			if err != nil {
				return eris.Wrap(err, "headers")
			}

			out := cmd.OutOrStdout()
			for i, h := range headers {
				_, _ = fmt.Fprintf(out, "%3d  %s\n", i, h)
			}

			cols, err := ingest.Resolve(headers, aliases)
			if err != nil {
				_, _ = fmt.Fprintf(out, "\nnot importable: %v\n", err)
				return nil
			}
			_, _ = fmt.Fprintln(out)
			printColumn(out, ingest.Identifier, cols.Identifier, headers)
			printColumn(out, ingest.WalkabilityScore, cols.Score, headers)
			printColumn(out, ingest.Population, cols.Population, headers)
			printColumn(out, ingest.HousingUnits, cols.HousingUnits, headers)
			return nil
		},
	}
}

func printColumn(w io.Writer, c ingest.Column, idx int, headers []string) {
	if idx < 0 {
		_, _ = fmt.Fprintf(w, "%-18s (absent, defaults to 0)\n", c)
		return
	}
	_, _ = fmt.Fprintf(w, "%-18s %s (column %d)\n", c, headers[idx], idx)
}
