package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Zixiao-System/leizi-formula/internal/formula"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCloner struct {
	hash string
	err  error
	got  []string
}

func (c *fakeCloner) Clone(ctx context.Context, url, branch, dir string) (string, error) {
	c.got = []string{url, branch, dir}
	if c.err != nil {
		return "", c.err
	}
	return c.hash, os.WriteFile(filepath.Join(dir, "CMakeLists.txt"), nil, 0o644)
}

func releaseServer(t *testing.T, files map[string][]byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func testFormula(url, sum string) *formula.Formula {
	f := formula.Default()
	f.URL = url
	f.SHA256 = sum
	return f
}

func newTestFetcher(t *testing.T, cloner Cloner) *Fetcher {
	d := NewDownloader(t.TempDir(), 10*time.Second)
	d.backoff = time.Millisecond
	return NewFetcher(d, cloner, nil)
}

func TestFetcher_Tarball(t *testing.T) {
	tarball := leiziTarball(t)
	sum := sha256.Sum256(tarball)
	server := releaseServer(t, map[string][]byte{"/v1.4.0.tar.gz": tarball})

	f := testFormula(server.URL+"/v1.4.0.tar.gz", hex.EncodeToString(sum[:]))
	staging := filepath.Join(t.TempDir(), "staging")

	src, err := newTestFetcher(t, nil).Fetch(context.Background(), f, staging, Options{})
	require.NoError(t, err)

	assert.Equal(t, MethodTarball, src.Method)
	assert.Equal(t, "1.4.0", src.Version)
	assert.Equal(t, f.SHA256, src.SHA256)
	assert.FileExists(t, filepath.Join(staging, "CMakeLists.txt"))
}

func TestFetcher_RejectsUnverifiedByDefault(t *testing.T) {
	tarball := leiziTarball(t)
	server := releaseServer(t, map[string][]byte{"/v1.4.0.tar.gz": tarball})
	f := testFormula(server.URL+"/v1.4.0.tar.gz", "")

	_, err := newTestFetcher(t, nil).Fetch(context.Background(), f, filepath.Join(t.TempDir(), "s"), Options{})
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, StageVerify, fetchErr.Stage)
	assert.ErrorIs(t, err, ErrUnverified)

	src, err := newTestFetcher(t, nil).Fetch(context.Background(), f, filepath.Join(t.TempDir(), "s"), Options{AllowUnverified: true})
	require.NoError(t, err)
	assert.Len(t, src.SHA256, 64)
}

func TestFetcher_ChecksumMismatchDropsCache(t *testing.T) {
	server := releaseServer(t, map[string][]byte{"/v1.4.0.tar.gz": leiziTarball(t)})
	f := testFormula(server.URL+"/v1.4.0.tar.gz", strings.Repeat("0", 64))
	fetcher := newTestFetcher(t, nil)

	_, err := fetcher.Fetch(context.Background(), f, filepath.Join(t.TempDir(), "s"), Options{})
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, StageVerify, fetchErr.Stage)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
	assert.NoFileExists(t, fetcher.downloader.CachePath(f.Name, f.Version, f.URL))
}

func TestFetcher_Signature(t *testing.T) {
	key := newTestKey(t)
	tarball := leiziTarball(t)
	sum := sha256.Sum256(tarball)
	server := releaseServer(t, map[string][]byte{
		"/v1.4.0.tar.gz":     tarball,
		"/v1.4.0.tar.gz.asc": key.sign(t, tarball),
		"/forged.asc":        key.sign(t, []byte("forged")),
	})

	f := testFormula(server.URL+"/v1.4.0.tar.gz", hex.EncodeToString(sum[:]))
	f.SigningKey = key.public

	f.SignatureURL = server.URL + "/v1.4.0.tar.gz.asc"
	_, err := newTestFetcher(t, nil).Fetch(context.Background(), f, filepath.Join(t.TempDir(), "s"), Options{})
	require.NoError(t, err)

	f.SignatureURL = server.URL + "/forged.asc"
	_, err = newTestFetcher(t, nil).Fetch(context.Background(), f, filepath.Join(t.TempDir(), "s"), Options{})
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, StageVerify, fetchErr.Stage)
}

func TestFetcher_DownloadFailure(t *testing.T) {
	server := releaseServer(t, nil)
	f := testFormula(server.URL+"/missing.tar.gz", strings.Repeat("a", 64))

	_, err := newTestFetcher(t, nil).Fetch(context.Background(), f, filepath.Join(t.TempDir(), "s"), Options{})
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, StageDownload, fetchErr.Stage)
	assert.Equal(t, f.URL, fetchErr.URL)
}

func TestFetcher_Head(t *testing.T) {
	cloner := &fakeCloner{hash: "0123456789abcdef0123456789abcdef01234567"}
	staging := filepath.Join(t.TempDir(), "head")

	src, err := newTestFetcher(t, cloner).Fetch(context.Background(), formula.Default(), staging, Options{Head: true})
	require.NoError(t, err)

	assert.Equal(t, MethodHead, src.Method)
	assert.Equal(t, "HEAD-0123456", src.Version)
	assert.Equal(t, []string{"https://github.com/Zixiao-System/leizi-shell.git", "main", staging}, cloner.got)
}

func TestFetcher_HeadErrors(t *testing.T) {
	f := formula.Default()
	f.Head = formula.Head{}
	_, err := newTestFetcher(t, &fakeCloner{}).Fetch(context.Background(), f, filepath.Join(t.TempDir(), "s"), Options{Head: true})
	assert.ErrorIs(t, err, ErrNoHead)

	cloneErr := errors.New("network down")
	_, err = newTestFetcher(t, &fakeCloner{err: cloneErr}).Fetch(context.Background(), formula.Default(), filepath.Join(t.TempDir(), "s"), Options{Head: true})
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, StageClone, fetchErr.Stage)
	assert.ErrorIs(t, err, cloneErr)
}

func TestFetcher_RefusesNonEmptyStaging(t *testing.T) {
	staging := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(staging, "stale"), nil, 0o644))

	_, err := newTestFetcher(t, &fakeCloner{}).Fetch(context.Background(), formula.Default(), staging, Options{Head: true})
	assert.ErrorContains(t, err, "not empty")
}
