// Package fetch downloads and extracts package source archives.
package fetch

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nvim-neorocks/lux/internal/core/domain"
	"github.com/nvim-neorocks/lux/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	defaultTimeout = 5 * time.Minute
	maxRetries     = 3
	// maxArchiveBytes bounds decompressed entry size against archive bombs.
	maxArchiveBytes = 1 << 30
)

// Fetcher implements ports.SourceFetcher for https, http and file URLs.
//
// Fetched handles are cached per source location, so a concurrent prefetch
// phase warms the cache and later fetches of the same source are free.
// Duplicate concurrent fetches race harmlessly; the first stored handle wins.
type Fetcher struct {
	client  *http.Client
	logger  ports.Logger
	handles sync.Map // source key -> ports.SourceHandle
}

// NewFetcher creates a Fetcher with a default HTTP client.
func NewFetcher(logger ports.Logger) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: defaultTimeout},
		logger: logger,
	}
}

// Fetch downloads the archive at the source location, extracts it into a
// fresh directory and returns the tree together with the archive's sha256.
// Transient network failures are retried with exponential backoff; HTTP 4xx
// responses are permanent. Nothing is checked against declared digests here.
func (f *Fetcher) Fetch(ctx context.Context, source domain.SourceLocation) (ports.SourceHandle, error) {
	cacheKey := source.URL + "#" + source.Ref
	if cached, ok := f.handles.Load(cacheKey); ok {
		return cached.(ports.SourceHandle), nil
	}

	parsed, err := url.Parse(source.URL)
	if err != nil {
		return ports.SourceHandle{}, zerr.With(zerr.With(domain.ErrFetchFailed, "url", source.URL), "reason", "malformed url")
	}

	var archive string
	switch parsed.Scheme {
	case "http", "https":
		archive, err = f.download(ctx, source.URL)
	case "file":
		archive = parsed.Path
	default:
		return ports.SourceHandle{}, zerr.With(
			zerr.With(domain.ErrFetchFailed, "url", source.URL),
			"reason", "unsupported scheme "+parsed.Scheme,
		)
	}
	if err != nil {
		return ports.SourceHandle{}, err
	}
	if parsed.Scheme != "file" {
		defer os.Remove(archive)
	}

	digest, err := digestFile(archive)
	if err != nil {
		return ports.SourceHandle{}, zerr.Wrap(err, "failed to hash archive")
	}

	dir, err := extractArchive(archive)
	if err != nil {
		return ports.SourceHandle{}, err
	}

	f.logger.Debug("fetched source", "url", source.URL, "digest", digest)
	handle, _ := f.handles.LoadOrStore(cacheKey, ports.SourceHandle{Dir: dir, Digest: digest})
	return handle.(ports.SourceHandle), nil
}

// download retrieves the URL into a temp file, retrying transient failures.
func (f *Fetcher) download(ctx context.Context, rawURL string) (string, error) {
	var path string

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(zerr.With(domain.ErrFetchFailed, "url", rawURL))
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return zerr.Wrap(err, "request failed")
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode >= 500:
			// Server-side failures are worth another attempt.
			return zerr.With(zerr.With(domain.ErrFetchFailed, "url", rawURL), "status", resp.StatusCode)
		default:
			return backoff.Permanent(zerr.With(zerr.With(domain.ErrFetchFailed, "url", rawURL), "status", resp.StatusCode))
		}

		tmp, err := os.CreateTemp("", "lux-archive-*.tar.gz")
		if err != nil {
			return backoff.Permanent(zerr.Wrap(err, "failed to create temp file"))
		}

		if _, err := io.Copy(tmp, resp.Body); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
			return zerr.Wrap(err, "failed to read response body")
		}
		if err := tmp.Close(); err != nil {
			_ = os.Remove(tmp.Name())
			return backoff.Permanent(zerr.Wrap(err, "failed to close temp file"))
		}

		path = tmp.Name()
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		f.logger.Warn("retrying download", "url", rawURL, "wait", wait.String(), "error", err.Error())
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", zerr.With(domain.ErrFetchTimeout, "url", rawURL)
		}
		if errors.Is(err, domain.ErrFetchFailed) {
			return "", err
		}
		return "", zerr.With(zerr.Wrap(err, domain.ErrFetchFailed.Error()), "url", rawURL)
	}
	return path, nil
}

func digestFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", err
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}

// extractArchive unpacks a gzipped tarball into a fresh directory. When the
// archive holds a single top-level directory, that directory becomes the
// tree root so declared source paths stay short.
func extractArchive(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", zerr.Wrap(err, "failed to open archive")
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return "", zerr.With(zerr.With(domain.ErrFetchFailed, "archive", filepath.Base(path)), "reason", "not a gzip archive")
	}
	defer gz.Close()

	dest, err := os.MkdirTemp("", "lux-source-*")
	if err != nil {
		return "", zerr.Wrap(err, "failed to create source dir")
	}

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", zerr.With(zerr.With(domain.ErrFetchFailed, "archive", filepath.Base(path)), "reason", "corrupt tar stream")
		}

		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return "", err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, domain.DirPerm); err != nil {
				return "", zerr.Wrap(err, "failed to create directory")
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return "", err
			}
		default:
			// Symlinks and special files are not part of source archives.
			continue
		}
	}

	return unwrapSingleRoot(dest), nil
}

func writeEntry(target string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), domain.DirPerm); err != nil {
		return zerr.Wrap(err, "failed to create directory")
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return zerr.Wrap(err, "failed to create file")
	}
	defer out.Close()

	if _, err := io.Copy(out, io.LimitReader(r, maxArchiveBytes)); err != nil {
		return zerr.Wrap(err, "failed to extract file")
	}
	return out.Close()
}

// safeJoin rejects entries that would escape the destination.
func safeJoin(dest, name string) (string, error) {
	cleaned := filepath.Clean(name)
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", zerr.With(
			zerr.With(domain.ErrFetchFailed, "entry", name),
			"reason", "archive entry escapes destination",
		)
	}
	return filepath.Join(dest, cleaned), nil
}

// unwrapSingleRoot returns the sole top-level directory when the archive is
// laid out as name-version/..., otherwise dest itself.
func unwrapSingleRoot(dest string) string {
	entries, err := os.ReadDir(dest)
	if err != nil || len(entries) != 1 || !entries[0].IsDir() {
		return dest
	}
	return filepath.Join(dest, entries[0].Name())
}

var _ ports.SourceFetcher = (*Fetcher)(nil)
