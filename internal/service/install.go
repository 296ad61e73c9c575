// Package service composes the fetch, build and install components into
// the install pipeline.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Zixiao-System/leizi-formula/internal/build"
	"github.com/Zixiao-System/leizi-formula/internal/config"
	"github.com/Zixiao-System/leizi-formula/internal/formula"
	"github.com/Zixiao-System/leizi-formula/internal/install"
	"github.com/Zixiao-System/leizi-formula/internal/receipt"
	"github.com/Zixiao-System/leizi-formula/internal/source"
)

// WorkDirPermissions is the mode of per-run staging directories.
const WorkDirPermissions = 0o700

// SourceFetcher places a formula's source tree in a staging directory.
type SourceFetcher interface {
	Fetch(ctx context.Context, f *formula.Formula, stagingDir string, opts source.Options) (*source.Source, error)
}

// Builder configures, builds and installs a source tree.
type Builder interface {
	Build(ctx context.Context, p *build.Profile) (*build.Artifact, error)
}

// ScriptInstaller writes the post-install script for a built artifact.
type ScriptInstaller interface {
	Install(artifact *build.Artifact, prefix string) (*install.Script, error)
}

// LoginShell reports whether a binary is already the user's login shell.
type LoginShell interface {
	IsCurrent(ctx context.Context, binary string) bool
}

// InstallService runs the install pipeline.
type InstallService struct {
	fetcher   SourceFetcher
	builder   Builder
	installer ScriptInstaller
	shell     LoginShell
	clock     Clock
	workDir   string
	logger    config.Logger
}

// NewInstallService creates an install service. Per-run staging and build
// trees are created under workDir. shell may be nil.
func NewInstallService(
	fetcher SourceFetcher,
	builder Builder,
	installer ScriptInstaller,
	shell LoginShell,
	clock Clock,
	workDir string,
	logger config.Logger,
) *InstallService {
	return &InstallService{
		fetcher:   fetcher,
		builder:   builder,
		installer: installer,
		shell:     shell,
		clock:     clock,
		workDir:   workDir,
		logger:    config.OrNop(logger),
	}
}

// InstallRequest contains the parameters for one install.
type InstallRequest struct {
	Formula *formula.Formula
	Prefix  string
	// BuildType overrides the formula's build type when set.
	BuildType string
	// ExtraFlags are appended after the formula's own flags.
	ExtraFlags      []string
	Head            bool
	AllowUnverified bool
	// KeepWork leaves the staging and build trees in place after success.
	KeepWork bool
}

// InstallResult describes a completed install.
type InstallResult struct {
	Source   *source.Source
	Artifact *build.Artifact
	Script   *install.Script
	Receipt  *receipt.Receipt
	Caveats  install.Caveats
	// WorkDir is the run's staging tree; removed unless KeepWork was set.
	WorkDir string
}

// Execute fetches, builds and installs req.Formula into req.Prefix, then
// writes the post-install script. Registration is left to the user.
// Stages run strictly in order and the first failure stops the pipeline;
// the receipt in the prefix records how far it got.
func (s *InstallService) Execute(ctx context.Context, req InstallRequest) (*InstallResult, error) {
	if req.Formula == nil {
		return nil, errors.New("no formula given")
	}
	if !filepath.IsAbs(req.Prefix) {
		return nil, fmt.Errorf("prefix must be absolute, got %q", req.Prefix)
	}
	if err := req.Formula.Validate(); err != nil {
		return nil, fmt.Errorf("validate formula: %w", err)
	}
	f := req.Formula

	if info, err := os.Stat(req.Prefix); err != nil {
		return nil, &install.InstallError{Path: req.Prefix, Op: "stat prefix", Cause: err}
	} else if !info.IsDir() {
		return nil, &install.InstallError{Path: req.Prefix, Op: "stat prefix", Cause: errors.New("not a directory")}
	}

	// 1. Acquire install lock
	lock, err := receipt.AcquireLock(req.Prefix)
	if err != nil {
		return nil, fmt.Errorf("acquire install lock: %w", err)
	}
	defer func() { _ = lock.Release() }()

	buildType := req.BuildType
	if buildType == "" {
		buildType = f.BuildType()
	}
	flags := append(append([]string{}, f.Build.Flags...), req.ExtraFlags...)

	rec := receipt.New(f.Name, f.Version, buildType, req.Prefix, s.clock.Now())
	rec.ExtraFlags = flags
	if err := rec.Save(req.Prefix); err != nil {
		return nil, fmt.Errorf("save receipt: %w", err)
	}

	runDir := filepath.Join(s.workDir, f.Name+"-"+rec.ID)
	if err := os.MkdirAll(runDir, WorkDirPermissions); err != nil {
		return nil, fmt.Errorf("create work directory: %w", err)
	}
	result := &InstallResult{Receipt: rec, WorkDir: runDir}

	// 2. Fetch source
	s.begin(rec, receipt.StageFetch)
	src, err := s.fetcher.Fetch(ctx, f, filepath.Join(runDir, "src"), source.Options{
		Head:            req.Head,
		AllowUnverified: req.AllowUnverified,
	})
	if err != nil {
		return nil, s.fail(rec, receipt.StageFetch, fmt.Errorf("fetch source: %w", err))
	}
	result.Source = src
	rec.FormulaVersion = src.Version
	rec.Method = src.Method
	rec.SourceDigest = src.SHA256
	s.end(rec, receipt.StageFetch)

	// 3. Configure, build, install
	s.begin(rec, receipt.StageConfigure)
	profile, err := build.NewProfile(build.ProfileSpec{
		SourcePath: src.Dir,
		BuildDir:   filepath.Join(runDir, "build"),
		Prefix:     req.Prefix,
		BuildType:  buildType,
		Binary:     f.Binary,
		ExtraFlags: flags,
	})
	if err != nil {
		return nil, s.fail(rec, receipt.StageConfigure, fmt.Errorf("build profile: %w", err))
	}

	artifact, err := s.builder.Build(ctx, profile)
	if artifact != nil {
		result.Artifact = artifact
		s.recordSteps(rec, artifact.Steps, err)
	}
	if err != nil {
		if artifact == nil {
			s.fail(rec, receipt.StageConfigure, err)
		}
		return nil, fmt.Errorf("build %s: %w", f.Name, err)
	}
	rec.Binary = artifact.BinaryPath

	// 4. Emit post-install script
	s.begin(rec, receipt.StageScript)
	script, err := s.installer.Install(artifact, req.Prefix)
	if err != nil {
		return nil, s.fail(rec, receipt.StageScript, fmt.Errorf("install %s: %w", f.Name, err))
	}
	result.Script = script
	rec.Script = script.Path
	s.end(rec, receipt.StageScript)

	result.Caveats = install.Caveats{
		Name:         f.Name,
		ScriptPath:   script.Path,
		BinaryPath:   artifact.BinaryPath,
		ConfigPath:   f.Caveats.ConfigPath,
		DocsURL:      f.Caveats.DocsURL,
		IsLoginShell: s.shell != nil && s.shell.IsCurrent(ctx, artifact.BinaryPath),
	}

	if !req.KeepWork {
		if err := os.RemoveAll(runDir); err != nil {
			s.logger.Warn("failed to remove work directory", "path", runDir, "error", err)
		}
	}

	s.logger.Info("install complete", "formula", f.Name, "version", rec.FormulaVersion, "prefix", req.Prefix)
	return result, nil
}

func (s *InstallService) begin(rec *receipt.Receipt, stage string) {
	_ = rec.Start(stage, s.clock.Now())
	s.save(rec)
}

func (s *InstallService) end(rec *receipt.Receipt, stage string) {
	_ = rec.Finish(stage, s.clock.Now(), nil)
	s.save(rec)
}

func (s *InstallService) fail(rec *receipt.Receipt, stage string, err error) error {
	_ = rec.Finish(stage, s.clock.Now(), err)
	s.save(rec)
	s.logger.Error("install failed", "stage", stage, "error", err)
	return err
}

// recordSteps copies the build driver's step records into the receipt.
// Only the last recorded step can have failed.
func (s *InstallService) recordSteps(rec *receipt.Receipt, steps []build.StepRecord, buildErr error) {
	now := s.clock.Now()
	for i, step := range steps {
		if rec.StateOf(step.Stage) != receipt.StateInProgress {
			_ = rec.Start(step.Stage, now)
		}
		var stepErr error
		if i == len(steps)-1 {
			stepErr = buildErr
		}
		_ = rec.Finish(step.Stage, now, stepErr)
	}
	if buildErr != nil {
		s.logger.Error("install failed", "stage", "build", "error", buildErr)
	}
	s.save(rec)
}

// save persists the receipt. A failed save is logged and the install
// continues.
func (s *InstallService) save(rec *receipt.Receipt) {
	if err := rec.Save(rec.Prefix); err != nil {
		s.logger.Warn("failed to save receipt", "error", err)
	}
}
