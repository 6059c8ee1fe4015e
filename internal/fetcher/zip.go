package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractZIP extracts all files from a ZIP archive to the destination directory.
// Returns the list of extracted file paths.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var extracted []string
	for _, f := range r.File {
		path, err := extractZIPEntry(f, destDir)
		if err != nil {
			return extracted, err
		}
		if path != "" {
			extracted = append(extracted, path)
		}
	}
	return extracted, nil
}

// zipEntryReader closes the entry and its archive together.
type zipEntryReader struct {
	io.ReadCloser
	archive *zip.ReadCloser
}

func (z *zipEntryReader) Close() error {
	entryErr := z.ReadCloser.Close()
	archiveErr := z.archive.Close()
	if entryErr != nil {
		return eris.Wrap(entryErr, "zip: close entry")
	}
	return eris.Wrap(archiveErr, "zip: close archive")
}

// OpenZIPEntry opens the first file in the archive whose extension is one of
// exts (case-insensitive, e.g. ".csv") for streaming, without extracting it to
// disk. It returns the entry name alongside the reader.
func OpenZIPEntry(zipPath string, exts ...string) (io.ReadCloser, string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, "", eris.Wrap(err, "zip: open archive")
	}

	for _, f := range r.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(filepath.Base(f.Name), ".") {
			continue
		}
		if !slices.Contains(exts, strings.ToLower(filepath.Ext(f.Name))) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			_ = r.Close()
			return nil, "", eris.Wrapf(err, "zip: open entry %s", f.Name)
		}
		return &zipEntryReader{ReadCloser: rc, archive: r}, f.Name, nil
	}

	_ = r.Close()
	return nil, "", eris.Errorf("zip: no %s entry in %s", strings.Join(exts, "/"), filepath.Base(zipPath))
}

// extractZIPEntry extracts a single zip.File to the destination directory.
// Returns the extracted file path, or empty string for directories.
func extractZIPEntry(f *zip.File, destDir string) (string, error) {
	destPath := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: illegal path %q (zip slip attempt)", f.Name)
	}

	if f.FileInfo().IsDir() {
		return "", eris.Wrap(os.MkdirAll(destPath, 0o755), "zip: create directory")
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", eris.Wrap(err, "zip: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	if _, err := writeFile(destPath, rc); err != nil {
		return "", eris.Wrapf(err, "zip: extract %s", f.Name)
	}
	return destPath, nil
}
