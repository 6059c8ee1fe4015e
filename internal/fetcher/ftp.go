package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/walkability/internal/resilience"
)

// FTPOptions configures the FTP fetcher.
type FTPOptions struct {
	Timeout time.Duration
	Retry   resilience.RetryConfig
}

// FTPFetcher downloads files over anonymous FTP.
type FTPFetcher struct {
	opts FTPOptions
}

// NewFTPFetcher creates a new FTPFetcher with the given options.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DownloadRetryConfig()
	}
	return &FTPFetcher{opts: opts}
}

// parseFTPURL extracts host (with port), path and optional credentials.
func parseFTPURL(rawURL string) (host, path string, user *url.Userinfo, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", nil, eris.Wrap(err, "fetcher: parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", nil, eris.Errorf("fetcher: expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}
	if u.Path == "" || u.Path == "/" {
		return "", "", nil, eris.New("fetcher: empty path in ftp url")
	}
	return host, u.Path, u.User, nil
}

// ftpConnReader closes the transfer and the control connection together.
type ftpConnReader struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpConnReader) Read(p []byte) (int, error) {
	return r.resp.Read(p)
}

func (r *ftpConnReader) Close() error {
	respErr := r.resp.Close()
	quitErr := r.conn.Quit()
	if respErr != nil {
		return eris.Wrap(respErr, "fetcher: close ftp response")
	}
	return eris.Wrap(quitErr, "fetcher: quit ftp connection")
}

func (f *FTPFetcher) open(ctx context.Context, ftpURL string) (io.ReadCloser, error) {
	host, path, user, err := parseFTPURL(ftpURL)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("ftp: connecting", zap.String("host", host), zap.String("path", path))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(f.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "fetcher: ftp dial"), 0)
	}

	name, pass := "anonymous", "anonymous@"
	if user != nil {
		name = user.Username()
		if p, ok := user.Password(); ok {
			pass = p
		}
	}
	if err := conn.Login(name, pass); err != nil {
		_ = conn.Quit()
		return nil, eris.Wrap(err, "fetcher: ftp login")
	}

	resp, err := conn.Retr(path)
	if err != nil {
		_ = conn.Quit()
		return nil, eris.Wrap(err, "fetcher: ftp retrieve")
	}
	return &ftpConnReader{resp: resp, conn: conn}, nil
}

func (f *FTPFetcher) retryConfig(ftpURL string) resilience.RetryConfig {
	cfg := f.opts.Retry
	cfg.OnRetry = func(attempt int, err error) {
		zap.L().Warn("ftp fetch failed, retrying",
			zap.String("component", "fetcher"),
			zap.String("url", ftpURL),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return cfg
}

// Download connects, starts the transfer and returns a reader. The caller
// must close it to release the FTP connection.
func (f *FTPFetcher) Download(ctx context.Context, ftpURL string) (io.ReadCloser, error) {
	return resilience.DoVal(ctx, f.retryConfig(ftpURL), func(ctx context.Context) (io.ReadCloser, error) {
		return f.open(ctx, ftpURL)
	})
}

// DownloadToFile downloads the FTP URL to a local file. Returns bytes written.
func (f *FTPFetcher) DownloadToFile(ctx context.Context, ftpURL string, path string) (int64, error) {
	return resilience.DoVal(ctx, f.retryConfig(ftpURL), func(ctx context.Context) (int64, error) {
		rc, err := f.open(ctx, ftpURL)
		if err != nil {
			return 0, err
		}
		defer rc.Close() //nolint:errcheck
		return writeFile(path, rc)
	})
}

// FetchText downloads the whole file as text.
func (f *FTPFetcher) FetchText(ctx context.Context, ftpURL string) (string, error) {
	return resilience.DoVal(ctx, f.retryConfig(ftpURL), func(ctx context.Context) (string, error) {
		rc, err := f.open(ctx, ftpURL)
		if err != nil {
			return "", err
		}
		defer rc.Close() //nolint:errcheck

		var sb strings.Builder
		if _, err := io.Copy(&sb, rc); err != nil {
			return "", err
		}
		return sb.String(), nil
	})
}
