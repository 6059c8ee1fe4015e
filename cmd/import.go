package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/walkability/internal/ingest"
	"github.com/sells-group/walkability/internal/model"
)

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import walkability extracts",
		Long: `Runs one ingestion pass per source. Every block group is upserted and each
county touched by the pass is rewritten with the aggregate of that pass.`,
	}
	cmd.AddCommand(newImportFileCmd(a), newImportURLCmd(a), newImportTextCmd(a))
	return cmd
}

// withImporter opens the store and fetcher and hands a ready importer to fn.
func (a *app) withImporter(ctx context.Context, fn func(*ingest.Importer) error) error {
	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	imp, err := a.newImporter(ctx, st, a.newFetcher())
	if err != nil {
		return err
	}
	return fn(imp)
}

func newImportFileCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "file <path>",
		Short: "Import a local CSV, ZIP or XLSX file (\"-\" streams stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withImporter(ctx, func(imp *ingest.Importer) error {
				var (
					res model.ImportResult
					err error
				)
				if args[0] == "-" {
					res, err = imp.ImportStream(ctx, cmd.InOrStdin())
				} else {
					res, err = imp.ImportFile(ctx, args[0])
				}
				if err != nil {
					return eris.Wrap(err, "import file")
				}
				printResult(cmd.OutOrStdout(), args[0], res)
				return nil
			})
		},
	}
}

func newImportURLCmd(a *app) *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "url <url>...",
		Short: "Download and import one or more extracts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withImporter(ctx, func(imp *ingest.Importer) error {
				return importURLs(ctx, imp, cmd.OutOrStdout(), args, concurrency)
			})
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 1, "number of sources imported at once")
	return cmd
}

// importURLs runs one pass per URL, at most concurrency at a time. A failed
// source does not stop the others; the first error is returned.
func importURLs(ctx context.Context, imp *ingest.Importer, out io.Writer, urls []string, concurrency int) error {
	if concurrency < 1 {
		concurrency = 1
	}

	var g errgroup.Group
	g.SetLimit(concurrency)

	var mu sync.Mutex
	var failed int

	for _, u := range urls {
		g.Go(func() error {
			res, err := imp.ImportURL(ctx, u)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				zap.L().Error("import failed", zap.String("url", u), zap.Error(err))
				return eris.Wrapf(err, "import url %s", u)
			}
			printResult(out, u, res)
			return nil
		})
	}

	err := g.Wait()
	if failed > 0 {
		zap.L().Warn("import finished with failures",
			zap.Int("sources", len(urls)),
			zap.Int("failed", failed),
		)
	}
	return err
}

func newImportTextCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "text",
		Short: "Import CSV text read in full from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return eris.Wrap(err, "import text: read stdin")
			}
			return a.withImporter(ctx, func(imp *ingest.Importer) error {
				res, err := imp.ImportText(ctx, string(data))
				if err != nil {
					return eris.Wrap(err, "import text")
				}
				printResult(cmd.OutOrStdout(), "stdin", res)
				return nil
			})
		},
	}
}

func printResult(w io.Writer, source string, res model.ImportResult) {
	_, _ = fmt.Fprintf(w, "%s: %d block groups, %d counties, %d skipped\n",
		source, res.BlockGroups, res.Counties, res.Skipped)
}
