package main

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/walkability/internal/db"
	"github.com/sells-group/walkability/internal/fetcher"
	"github.com/sells-group/walkability/internal/ingest"
	"github.com/sells-group/walkability/internal/reference"
	"github.com/sells-group/walkability/internal/store"
	"github.com/sells-group/walkability/internal/tiger"
)

// openStore connects to the configured database and brings its schema up
// to date.
func (a *app) openStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, store.Config{
		Driver:      a.cfg.Store.Driver,
		DatabaseURL: a.cfg.Store.DatabaseURL,
		Pool: &db.PoolConfig{
			MaxConns: a.cfg.Store.MaxConns,
			MinConns: a.cfg.Store.MinConns,
		},
	})
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// newFetcher builds the HTTP(S)+FTP fetcher from the import settings.
func (a *app) newFetcher() fetcher.Fetcher {
	imp := a.cfg.Import
	retry := imp.RetryConfig()
	h := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    imp.UserAgent,
		Timeout:      imp.Timeout(),
		Retry:        retry,
		RateLimiters: fetcher.DefaultRateLimiters(),
	})
	f := fetcher.NewFTPFetcher(fetcher.FTPOptions{Retry: retry})
	return fetcher.NewMultiFetcher(h, f)
}

// newImporter wires an importer that writes to st and records each pass.
func (a *app) newImporter(ctx context.Context, st store.Store, f fetcher.Fetcher) (*ingest.Importer, error) {
	aliases, err := aliasesFromConfig(a.cfg.Import.Aliases)
	if err != nil {
		return nil, err
	}
	names, err := a.loadNames(ctx, f, st, a.cfg.Reference.CountyShapefile)
	if err != nil {
		return nil, err
	}
	return ingest.New(st, f, ingest.Options{
		Aliases:  aliases,
		Names:    names,
		SpoolDir: a.cfg.Import.SpoolDir,
		Recorder: st,
	}), nil
}

// loadNames returns the embedded county names overlaid with names already
// stored, then with a TIGER county shapefile when source is set.
func (a *app) loadNames(ctx context.Context, f fetcher.Fetcher, r store.Reader, source string) (reference.Names, error) {
	names, err := reference.DefaultNames()
	if err != nil {
		return reference.Names{}, err
	}
	names, err = ingest.OverlayStoredNames(ctx, r, names)
	if err != nil {
		return reference.Names{}, err
	}
	if source == "" {
		return names, nil
	}
	entries, err := tiger.LoadCountyNames(ctx, f, source, a.cfg.Reference.TempDir)
	if err != nil {
		return reference.Names{}, eris.Wrap(err, "load county names")
	}
	return names.Merge(entries), nil
}

// aliasesFromConfig layers the configured header aliases over the defaults.
func aliasesFromConfig(m map[string][]string) (ingest.AliasSet, error) {
	if len(m) == 0 {
		return ingest.DefaultAliases(), nil
	}
	extra := make(map[ingest.Column][]string, len(m))
	for key, list := range m {
		col, ok := ingest.ParseColumn(key)
		if !ok {
			return nil, eris.Errorf("config: unknown alias column %q", key)
		}
		extra[col] = list
	}
	zap.L().Debug("header aliases from config", zap.Int("columns", len(extra)))
	return ingest.DefaultAliases().With(extra), nil
}

// resolveState accepts a USPS abbreviation or a 2-digit FIPS code.
func resolveState(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if st, ok := reference.StateByAbbr(strings.ToUpper(s)); ok {
		return st.FIPS, nil
	}
	if st, ok := reference.StateByFIPS(s); ok {
		return st.FIPS, nil
	}
	return "", eris.Errorf("unknown state %q", s)
}
