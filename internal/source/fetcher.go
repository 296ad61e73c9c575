package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Zixiao-System/leizi-formula/internal/config"
	"github.com/Zixiao-System/leizi-formula/internal/formula"
)

// Fetch methods.
const (
	MethodTarball = "tarball"
	MethodHead    = "head"
)

// Source is a fetched, ready-to-configure source tree.
type Source struct {
	Dir     string
	Version string
	Method  string
	// Archive is the cached tarball (tarball method only).
	Archive string
	// SHA256 is the archive's digest, or the head commit for head installs.
	SHA256 string
}

// Options selects how a formula's source is fetched.
type Options struct {
	// Head clones head.url instead of downloading the release.
	Head bool
	// AllowUnverified permits a release without a sha256.
	AllowUnverified bool
}

// Fetcher resolves formula sources.
type Fetcher struct {
	downloader *Downloader
	cloner     Cloner
	logger     config.Logger
}

// NewFetcher creates a fetcher. A nil cloner uses go-git.
func NewFetcher(downloader *Downloader, cloner Cloner, logger config.Logger) *Fetcher {
	if cloner == nil {
		cloner = NewGitCloner()
	}
	return &Fetcher{
		downloader: downloader,
		cloner:     cloner,
		logger:     config.OrNop(logger),
	}
}

// Fetch places f's source in stagingDir, which must not exist or be empty.
func (s *Fetcher) Fetch(ctx context.Context, f *formula.Formula, stagingDir string, opts Options) (*Source, error) {
	if err := ensureEmptyDir(stagingDir); err != nil {
		return nil, &FetchError{Stage: StageExtract, Cause: err}
	}
	if opts.Head {
		return s.fetchHead(ctx, f, stagingDir)
	}
	return s.fetchTarball(ctx, f, stagingDir, opts)
}

func (s *Fetcher) fetchHead(ctx context.Context, f *formula.Formula, dir string) (*Source, error) {
	if f.Head.URL == "" {
		return nil, &FetchError{Stage: StageClone, Cause: ErrNoHead}
	}

	s.logger.Info("cloning head", "url", f.Head.URL, "branch", f.Head.Branch)
	hash, err := s.cloner.Clone(ctx, f.Head.URL, f.Head.Branch, dir)
	if err != nil {
		return nil, &FetchError{Stage: StageClone, URL: f.Head.URL, Cause: err}
	}

	short := hash
	if len(short) > 7 {
		short = short[:7]
	}
	return &Source{
		Dir:     dir,
		Version: "HEAD-" + short,
		Method:  MethodHead,
		SHA256:  hash,
	}, nil
}

func (s *Fetcher) fetchTarball(ctx context.Context, f *formula.Formula, dir string, opts Options) (*Source, error) {
	if f.URL == "" {
		return nil, &FetchError{Stage: StageDownload, Cause: fmt.Errorf("formula %s has no release url", f.Name)}
	}
	if !f.Verified() && !opts.AllowUnverified {
		return nil, &FetchError{Stage: StageVerify, URL: f.URL, Cause: ErrUnverified}
	}

	s.logger.Info("downloading source", "url", f.URL)
	archive, err := s.downloader.Fetch(ctx, f.Name, f.Version, f.URL)
	if err != nil {
		return nil, &FetchError{Stage: StageDownload, URL: f.URL, Cause: err}
	}

	digest, err := FileSHA256(archive)
	if err != nil {
		return nil, &FetchError{Stage: StageVerify, URL: f.URL, Cause: err}
	}
	if f.Verified() {
		if err := VerifySHA256(archive, f.SHA256); err != nil {
			// Drop the bad copy so the next attempt downloads again.
			os.Remove(archive)
			return nil, &FetchError{Stage: StageVerify, URL: f.URL, Cause: err}
		}
	} else {
		s.logger.Warn("installing unverified source", "url", f.URL, "sha256", digest)
	}

	if f.SignatureURL != "" {
		sig, err := s.downloader.Fetch(ctx, f.Name, f.Version, f.SignatureURL)
		if err != nil {
			return nil, &FetchError{Stage: StageDownload, URL: f.SignatureURL, Cause: err}
		}
		if err := VerifySignature(archive, sig, f.SigningKey); err != nil {
			return nil, &FetchError{Stage: StageVerify, URL: f.SignatureURL, Cause: err}
		}
		s.logger.Debug("signature verified", "url", f.SignatureURL)
	}

	if err := ExtractTarGz(archive, dir, 1); err != nil {
		return nil, &FetchError{Stage: StageExtract, Cause: err}
	}

	return &Source{
		Dir:     dir,
		Version: f.Version,
		Method:  MethodTarball,
		Archive: archive,
		SHA256:  digest,
	}, nil
}

func ensureEmptyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return os.MkdirAll(filepath.Clean(dir), 0o755)
	}
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return fmt.Errorf("staging directory %s is not empty", dir)
	}
	return nil
}
