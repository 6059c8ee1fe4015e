package tiger

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/walkability/internal/fetcher"
	"github.com/sells-group/walkability/internal/reference"
)

// LoadCountyNames resolves source to a county shapefile and reads its names.
// source may be a remote .zip URL, a local .zip, or a local .shp path. Remote
// archives are cached in tempDir and not downloaded again.
func LoadCountyNames(ctx context.Context, f fetcher.Fetcher, source, tempDir string) ([]reference.Entry, error) {
	shpPath, err := resolveShapefile(ctx, f, source, tempDir)
	if err != nil {
		return nil, err
	}
	entries, err := ReadCountyNames(shpPath)
	if err != nil {
		return nil, err
	}
	zap.L().Info("tiger: loaded county names", zap.String("source", source), zap.Int("counties", len(entries)))
	return entries, nil
}

func resolveShapefile(ctx context.Context, f fetcher.Fetcher, source, tempDir string) (string, error) {
	lower := strings.ToLower(source)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"), strings.HasPrefix(lower, "ftp://"):
		zipPath, err := Download(ctx, f, source, tempDir)
		if err != nil {
			return "", err
		}
		return extract(zipPath)
	case strings.HasSuffix(lower, ".zip"):
		return extract(source)
	case strings.HasSuffix(lower, ".shp"):
		return source, nil
	}
	return "", eris.Errorf("tiger: unsupported county shapefile source %q", source)
}

// Download fetches a TIGER/Line archive into destDir and returns its path.
// An archive already present with content is reused.
func Download(ctx context.Context, f fetcher.Fetcher, url, destDir string) (string, error) {
	log := zap.L().With(zap.String("component", "tiger.download"), zap.String("url", url))

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrap(err, "tiger: create dest dir")
	}

	zipPath := filepath.Join(destDir, filepath.Base(url))
	if info, err := os.Stat(zipPath); err == nil && info.Size() > 0 {
		log.Debug("zip already exists, skipping download", zap.String("path", zipPath))
		return zipPath, nil
	}

	log.Info("downloading TIGER shapefile")
	if _, err := f.DownloadToFile(ctx, url, zipPath); err != nil {
		_ = os.Remove(zipPath)
		return "", eris.Wrap(err, "tiger: download shapefile")
	}
	return zipPath, nil
}

// extract unpacks an archive next to itself and returns the .shp inside.
func extract(zipPath string) (string, error) {
	extractDir := strings.TrimSuffix(zipPath, filepath.Ext(zipPath))
	if _, err := fetcher.ExtractZIP(zipPath, extractDir); err != nil {
		return "", eris.Wrap(err, "tiger: extract ZIP")
	}
	shpPath, err := findFileByExt(extractDir, ".shp")
	if err != nil {
		return "", eris.Wrap(err, "tiger: find .shp file")
	}
	return shpPath, nil
}

// findFileByExt finds the first file with the given extension under dir.
func findFileByExt(dir, ext string) (string, error) {
	var found string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || found != "" {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ext) {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", eris.Wrap(err, "read directory")
	}
	if found == "" {
		return "", eris.Errorf("no %s file found in %s", ext, dir)
	}
	return found, nil
}
