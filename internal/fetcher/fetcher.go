// Package fetcher acquires remote extracts over HTTP(S) and FTP with bounded
// retry, and opens the archive and workbook containers they ship in.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body for streaming.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)

	// FetchText fetches the whole body as text.
	FetchText(ctx context.Context, url string) (string, error)
}

// MultiFetcher dispatches to a Fetcher by URL scheme.
type MultiFetcher struct {
	byScheme map[string]Fetcher
}

// NewMultiFetcher routes http and https to h and ftp to f. Either may be nil.
func NewMultiFetcher(h *HTTPFetcher, f *FTPFetcher) *MultiFetcher {
	m := &MultiFetcher{byScheme: map[string]Fetcher{}}
	if h != nil {
		m.byScheme["http"] = h
		m.byScheme["https"] = h
	}
	if f != nil {
		m.byScheme["ftp"] = f
	}
	return m
}

func (m *MultiFetcher) route(rawURL string) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse url %q", rawURL)
	}
	f, ok := m.byScheme[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
	return f, nil
}

// Download implements Fetcher.
func (m *MultiFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	f, err := m.route(rawURL)
	if err != nil {
		return nil, err
	}
	return f.Download(ctx, rawURL)
}

// DownloadToFile implements Fetcher.
func (m *MultiFetcher) DownloadToFile(ctx context.Context, rawURL, path string) (int64, error) {
	f, err := m.route(rawURL)
	if err != nil {
		return 0, err
	}
	return f.DownloadToFile(ctx, rawURL, path)
}

// FetchText implements Fetcher.
func (m *MultiFetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	f, err := m.route(rawURL)
	if err != nil {
		return "", err
	}
	return f.FetchText(ctx, rawURL)
}

// writeFile copies body into path, truncating whatever an earlier attempt left.
func writeFile(path string, body io.Reader) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create file")
	}
	n, err := io.Copy(file, body)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, eris.Wrap(err, "fetcher: write file")
	}
	return n, nil
}
