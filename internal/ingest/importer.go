package ingest

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/walkability/internal/fetcher"
	"github.com/sells-group/walkability/internal/model"
	"github.com/sells-group/walkability/internal/reference"
	"github.com/sells-group/walkability/internal/store"
)

// Options configures an Importer. Zero values fall back to the defaults.
type Options struct {
	Aliases AliasSet
	Names   reference.Names
	// SpoolDir, when set, makes ImportURL download to a temp file there and
	// stream it instead of buffering the body as text.
	SpoolDir string
	// Recorder, when set, receives one import_runs entry per pass.
	Recorder store.RunRecorder
	XLSX     fetcher.XLSXOptions
}

// Importer runs ingestion passes: header, column resolution, per-row upsert
// and county aggregation, then one upsert per county touched.
type Importer struct {
	w        store.Writer
	fetch    fetcher.Fetcher
	aliases  AliasSet
	names    reference.Names
	spoolDir string
	recorder store.RunRecorder
	xlsx     fetcher.XLSXOptions
}

// New creates an Importer writing to w. f may be nil when only local
// sources are imported.
func New(w store.Writer, f fetcher.Fetcher, opts Options) *Importer {
	aliases := opts.Aliases
	if len(aliases) == 0 {
		aliases = DefaultAliases()
	}
	names := opts.Names
	if names.Len() == 0 {
		names = reference.MustDefaultNames()
	}
	return &Importer{
		w:        w,
		fetch:    f,
		aliases:  aliases,
		names:    names,
		spoolDir: opts.SpoolDir,
		recorder: opts.Recorder,
		xlsx:     opts.XLSX,
	}
}

// ImportStream ingests CSV read from r one line at a time.
func (i *Importer) ImportStream(ctx context.Context, r io.Reader) (model.ImportResult, error) {
	return i.record(ctx, "stream", func(log *zap.Logger) (model.ImportResult, error) {
		return i.run(ctx, log, lineRows{lines: NewLineReader(r)})
	})
}

// ImportText ingests CSV content already held in memory.
func (i *Importer) ImportText(ctx context.Context, text string) (model.ImportResult, error) {
	return i.record(ctx, "text", func(log *zap.Logger) (model.ImportResult, error) {
		return i.run(ctx, log, lineRows{lines: NewLineReader(strings.NewReader(text))})
	})
}

// ImportFile ingests a local .csv/.txt file, the first CSV entry of a .zip
// archive, or the configured sheet of an .xlsx workbook.
func (i *Importer) ImportFile(ctx context.Context, filePath string) (model.ImportResult, error) {
	return i.record(ctx, filePath, func(log *zap.Logger) (model.ImportResult, error) {
		return i.importPath(ctx, log, filePath)
	})
}

// ImportURL fetches a remote extract and ingests it. Archives and workbooks
// are always spooled to disk first.
func (i *Importer) ImportURL(ctx context.Context, rawURL string) (model.ImportResult, error) {
	return i.record(ctx, rawURL, func(log *zap.Logger) (model.ImportResult, error) {
		if i.fetch == nil {
			return model.ImportResult{}, eris.New("ingest: no fetcher configured")
		}

		ext := urlExt(rawURL)
		if i.spoolDir == "" && ext != ".zip" && ext != ".xlsx" {
			text, err := i.fetch.FetchText(ctx, rawURL)
			if err != nil {
				return model.ImportResult{}, eris.Wrapf(err, "ingest: fetch %s", rawURL)
			}
			log.Debug("fetched extract", zap.Int("bytes", len(text)))
			return i.run(ctx, log, lineRows{lines: NewLineReader(strings.NewReader(text))})
		}

		tmp, err := os.CreateTemp(i.spoolDir, "walkability-*"+ext)
		if err != nil {
			return model.ImportResult{}, eris.Wrap(err, "ingest: create spool file")
		}
		tmpPath := tmp.Name()
		tmp.Close() //nolint:errcheck
		defer os.Remove(tmpPath) //nolint:errcheck

		n, err := i.fetch.DownloadToFile(ctx, rawURL, tmpPath)
		if err != nil {
			return model.ImportResult{}, eris.Wrapf(err, "ingest: download %s", rawURL)
		}
		log.Debug("spooled extract", zap.String("path", tmpPath), zap.Int64("bytes", n))
		return i.importPath(ctx, log, tmpPath)
	})
}

// PeekHeaders returns the trimmed header cells of a remote CSV without
// reading past the first line.
func (i *Importer) PeekHeaders(ctx context.Context, rawURL string) ([]string, error) {
	if i.fetch == nil {
		return nil, eris.New("ingest: no fetcher configured")
	}
	body, err := i.fetch.Download(ctx, rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: fetch %s", rawURL)
	}
	defer body.Close() //nolint:errcheck

	lines := NewLineReader(body)
	line, ok := lines.Next()
	if err := lines.Err(); err != nil {
		return nil, err
	}
	if !ok || strings.TrimSpace(line) == "" {
		return nil, eris.Wrapf(ErrMissingHeader, "ingest: peek %s", rawURL)
	}

	cells := SplitLine(strings.TrimPrefix(line, "\ufeff"))
	for j, c := range cells {
		cells[j] = strings.Trim(c, headerCutset)
	}
	return cells, nil
}

// OverlayStoredNames layers county names already held in the store over
// base, so names written by an earlier seed survive without the source that
// produced them. Empty and placeholder names are ignored.
func OverlayStoredNames(ctx context.Context, r store.Reader, base reference.Names) (reference.Names, error) {
	counties, err := r.ListCounties(ctx, store.CountyFilter{})
	if err != nil {
		return reference.Names{}, eris.Wrap(err, "ingest: read stored county names")
	}
	entries := make([]reference.Entry, 0, len(counties))
	for _, c := range counties {
		if c.Name == reference.PlaceholderName(c.StateFIPS, c.CountyFIPS) {
			continue
		}
		entries = append(entries, reference.Entry{StateFIPS: c.StateFIPS, CountyFIPS: c.CountyFIPS, Name: c.Name})
	}
	return base.Merge(entries), nil
}

// SeedCounties writes every known county name with zero statistics.
func (i *Importer) SeedCounties(ctx context.Context, s store.Seeder) (int, error) {
	n, err := s.SeedCounties(ctx, i.names.Entries())
	if err != nil {
		return 0, eris.Wrap(err, "ingest: seed counties")
	}
	zap.L().Info("seeded counties", zap.String("component", "ingest"), zap.Int("counties", n))
	return n, nil
}

func (i *Importer) importPath(ctx context.Context, log *zap.Logger, filePath string) (model.ImportResult, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".zip":
		rc, entry, err := fetcher.OpenZIPEntry(filePath, ".csv", ".txt")
		if err != nil {
			return model.ImportResult{}, eris.Wrapf(err, "ingest: open archive %s", filePath)
		}
		defer rc.Close() //nolint:errcheck
		log.Debug("reading archive entry", zap.String("entry", entry))
		return i.run(ctx, log, lineRows{lines: NewLineReader(rc)})

	case ".xlsx":
		rows, err := fetcher.ReadXLSX(filePath, i.xlsx)
		if err != nil {
			return model.ImportResult{}, eris.Wrapf(err, "ingest: read workbook %s", filePath)
		}
		return i.run(ctx, log, &sliceRows{rows: rows})

	default:
		f, err := os.Open(filePath)
		if err != nil {
			return model.ImportResult{}, eris.Wrapf(err, "ingest: open %s", filePath)
		}
		defer f.Close() //nolint:errcheck
		return i.run(ctx, log, lineRows{lines: NewLineReader(f)})
	}
}

// run is the single ingestion body every entry point converges on. On any
// error the zero result is returned; rows already upserted stay committed.
func (i *Importer) run(ctx context.Context, log *zap.Logger, rows rowSource) (model.ImportResult, error) {
	header, ok := rows.Next()
	if err := rows.Err(); err != nil {
		return model.ImportResult{}, eris.Wrap(err, "ingest: read header")
	}
	if !ok || isBlankRow(header) {
		return model.ImportResult{}, eris.Wrap(ErrMissingHeader, "ingest: read header")
	}

	cols, err := Resolve(header, i.aliases)
	if err != nil {
		return model.ImportResult{}, err
	}
	log.Debug("resolved columns",
		zap.Int("identifier", cols.Identifier),
		zap.Int("score", cols.Score),
		zap.Int("population", cols.Population),
		zap.Int("housing_units", cols.HousingUnits),
	)

	var (
		res  model.ImportResult
		agg  = NewAggregator()
		line = 1
	)
	for {
		if err := ctx.Err(); err != nil {
			return model.ImportResult{}, eris.Wrapf(err, "ingest: canceled after %d block groups", res.BlockGroups)
		}
		fields, ok := rows.Next()
		if !ok {
			break
		}
		line++
		if isBlankRow(fields) {
			continue
		}

		bg, ok := cols.Decode(fields)
		if !ok {
			res.Skipped++
			continue
		}
		if err := i.w.UpsertBlockGroup(ctx, bg); err != nil {
			return model.ImportResult{}, eris.Wrapf(err, "ingest: line %d", line)
		}
		agg.Fold(bg)
		res.BlockGroups++
	}
	if err := rows.Err(); err != nil {
		return model.ImportResult{}, eris.Wrapf(err, "ingest: read line %d", line+1)
	}
	if res.Skipped > 0 {
		log.Info("skipped undecodable rows", zap.Int("skipped", res.Skipped))
	}
	log.Debug("flushing county aggregates", zap.Int("counties", agg.Len()))

	for _, c := range agg.Finalize(i.names) {
		if err := i.w.UpsertCounty(ctx, c); err != nil {
			return model.ImportResult{}, eris.Wrapf(err, "ingest: flush county %s", c.FIPS())
		}
		res.Counties++
	}
	return res, nil
}

// record logs one pass and mirrors it into the run recorder. Recorder
// failures are logged and never fail the import.
func (i *Importer) record(ctx context.Context, source string, fn func(*zap.Logger) (model.ImportResult, error)) (model.ImportResult, error) {
	log := zap.L().With(zap.String("component", "ingest"), zap.String("source", source))
	start := time.Now()

	var runID string
	if i.recorder != nil {
		id, err := i.recorder.StartRun(ctx, source)
		if err != nil {
			log.Warn("ingest: record run start", zap.Error(err))
		} else {
			runID = id
		}
	}

	res, err := fn(log)
	if err != nil {
		log.Error("import failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		if runID != "" {
			if rerr := i.recorder.FailRun(context.WithoutCancel(ctx), runID, err); rerr != nil {
				log.Warn("ingest: record run failure", zap.Error(rerr))
			}
		}
		return model.ImportResult{}, err
	}

	log.Info("import complete",
		zap.Int("block_groups", res.BlockGroups),
		zap.Int("counties", res.Counties),
		zap.Int("skipped", res.Skipped),
		zap.Duration("elapsed", time.Since(start)),
	)
	if runID != "" {
		if rerr := i.recorder.CompleteRun(ctx, runID, res); rerr != nil {
			log.Warn("ingest: record run completion", zap.Error(rerr))
		}
	}
	return res, nil
}

func isBlankRow(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func urlExt(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(path.Ext(u.Path))
}
