package fetch

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/nvim-neorocks/lux/internal/core/domain"
	"github.com/nvim-neorocks/lux/internal/core/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newFetcher(t *testing.T) *Fetcher {
	t.Helper()
	ctrl := gomock.NewController(t)
	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()
	logger.EXPECT().Warn(gomock.Any(), gomock.Any()).AnyTimes()
	return NewFetcher(logger)
}

// makeArchive builds a gzipped tarball from path -> content pairs.
func makeArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestFetcher_DownloadsAndExtracts(t *testing.T) {
	archive := makeArchive(t, map[string]string{
		"pkg-1.0/lua/init.lua": "return {}\n",
		"pkg-1.0/README.md":    "docs\n",
	})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer server.Close()

	f := newFetcher(t)
	handle, err := f.Fetch(context.Background(), domain.SourceLocation{URL: server.URL + "/pkg-1.0.tar.gz"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(handle.Dir) })

	sum := sha256.Sum256(archive)
	assert.Equal(t, "sha256:"+hex.EncodeToString(sum[:]), handle.Digest)

	// The single pkg-1.0 root is unwrapped.
	content, err := os.ReadFile(filepath.Join(handle.Dir, "lua", "init.lua"))
	require.NoError(t, err)
	assert.Equal(t, "return {}\n", string(content))
}

func TestFetcher_RepeatFetchServedFromCache(t *testing.T) {
	archive := makeArchive(t, map[string]string{"mod.lua": "return 1\n"})

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		_, _ = w.Write(archive)
	}))
	defer server.Close()

	f := newFetcher(t)
	source := domain.SourceLocation{URL: server.URL + "/pkg.tar.gz"}

	first, err := f.Fetch(context.Background(), source)
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(first.Dir) })

	second, err := f.Fetch(context.Background(), source)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), requests.Load())
}

func TestFetcher_NotFoundIsNotRetried(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := newFetcher(t)
	_, err := f.Fetch(context.Background(), domain.SourceLocation{URL: server.URL + "/missing.tar.gz"})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetchFailed)
	assert.Equal(t, int32(1), requests.Load())
}

func TestFetcher_ServerErrorIsRetried(t *testing.T) {
	archive := makeArchive(t, map[string]string{"pkg/init.lua": "return {}\n"})

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(archive)
	}))
	defer server.Close()

	f := newFetcher(t)
	handle, err := f.Fetch(context.Background(), domain.SourceLocation{URL: server.URL + "/pkg.tar.gz"})

	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(handle.Dir) })
	assert.Equal(t, int32(2), requests.Load())
}

func TestFetcher_FileScheme(t *testing.T) {
	archive := makeArchive(t, map[string]string{"mod.lua": "return 1\n"})
	path := filepath.Join(t.TempDir(), "local.tar.gz")
	require.NoError(t, os.WriteFile(path, archive, 0o644))

	f := newFetcher(t)
	handle, err := f.Fetch(context.Background(), domain.SourceLocation{URL: "file://" + path})

	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(handle.Dir) })

	_, err = os.Stat(filepath.Join(handle.Dir, "mod.lua"))
	assert.NoError(t, err)

	// The local archive must survive the fetch.
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestFetcher_RejectsEscapingEntries(t *testing.T) {
	archive := makeArchive(t, map[string]string{"../evil.lua": "os.exit()\n"})
	path := filepath.Join(t.TempDir(), "evil.tar.gz")
	require.NoError(t, os.WriteFile(path, archive, 0o644))

	f := newFetcher(t)
	_, err := f.Fetch(context.Background(), domain.SourceLocation{URL: "file://" + path})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetchFailed)
}

func TestFetcher_UnsupportedScheme(t *testing.T) {
	f := newFetcher(t)
	_, err := f.Fetch(context.Background(), domain.SourceLocation{URL: "ftp://example.org/pkg.tar.gz"})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetchFailed)
}

func TestFetcher_CorruptArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.tar.gz")
	require.NoError(t, os.WriteFile(path, []byte("not a tarball"), 0o644))

	f := newFetcher(t)
	_, err := f.Fetch(context.Background(), domain.SourceLocation{URL: "file://" + path})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetchFailed)
}
