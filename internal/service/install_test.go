//go:build unix

package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zixiao-System/leizi-formula/internal/build"
	"github.com/Zixiao-System/leizi-formula/internal/formula"
	"github.com/Zixiao-System/leizi-formula/internal/install"
	"github.com/Zixiao-System/leizi-formula/internal/receipt"
	"github.com/Zixiao-System/leizi-formula/internal/runner"
	"github.com/Zixiao-System/leizi-formula/internal/source"
	"github.com/Zixiao-System/leizi-formula/internal/testutil"
)

var fixedNow = time.Date(2026, 1, 16, 14, 30, 22, 0, time.UTC)

// stagedFetcher pretends to fetch by writing a CMakeLists.txt.
type stagedFetcher struct {
	err  error
	opts source.Options
}

func (f *stagedFetcher) Fetch(ctx context.Context, fm *formula.Formula, dir string, opts source.Options) (*source.Source, error) {
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, "CMakeLists.txt"), []byte("project(leizi)\n"), 0o644); err != nil {
		return nil, err
	}
	return &source.Source{Dir: dir, Version: fm.Version, Method: source.MethodTarball, SHA256: strings.Repeat("c", 64)}, nil
}

type staticShell bool

func (s staticShell) IsCurrent(context.Context, string) bool { return bool(s) }

type fixture struct {
	env     *testutil.Env
	cmake   *testutil.FakeCMake
	fetcher *stagedFetcher
	svc     *InstallService
	work    string
}

func newFixture(t *testing.T, opts testutil.CMakeOptions) *fixture {
	t.Helper()
	env := testutil.SetupTestEnv(t)
	cmake := testutil.WriteCMake(t, t.TempDir(), opts)
	fetcher := &stagedFetcher{}
	work := filepath.Join(env.Cache, "work")

	driver := build.NewDriver(runner.NewExecRunner(time.Minute, nil), 30*time.Second, nil).WithCMake(cmake.Path)
	svc := NewInstallService(
		fetcher,
		driver,
		install.NewInstaller(env.Registry, nil),
		staticShell(false),
		TestClock{FixedTime: fixedNow},
		work,
		nil,
	)
	return &fixture{env: env, cmake: cmake, fetcher: fetcher, svc: svc, work: work}
}

func (fx *fixture) request() InstallRequest {
	return InstallRequest{Formula: formula.Default(), Prefix: fx.env.Prefix}
}

func TestInstallService_Success(t *testing.T) {
	fx := newFixture(t, testutil.CMakeOptions{})

	res, err := fx.svc.Execute(context.Background(), fx.request())
	require.NoError(t, err)

	binary := filepath.Join(fx.env.Prefix, "bin", "leizi")
	assert.Equal(t, binary, res.Artifact.BinaryPath)
	assert.FileExists(t, binary)

	info, err := os.Stat(filepath.Join(fx.env.Prefix, install.ScriptName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	assert.Equal(t, res.Script.Path, filepath.Join(fx.env.Prefix, install.ScriptName))

	// The pipeline emits the script; it never registers.
	registry, err := os.ReadFile(fx.env.Registry)
	require.NoError(t, err)
	assert.Equal(t, "/bin/sh\n/bin/bash\n", string(registry))

	rec, err := receipt.Load(fx.env.Prefix)
	require.NoError(t, err)
	assert.True(t, rec.Completed(), "stages: %+v", rec.Stages)
	assert.Equal(t, "1.4.0", rec.FormulaVersion)
	assert.Equal(t, source.MethodTarball, rec.Method)
	assert.Equal(t, binary, rec.Binary)
	assert.True(t, rec.CreatedAt.Equal(fixedNow))

	assert.Equal(t, "leizi", res.Caveats.Name)
	assert.Equal(t, "~/.config/leizi/config", res.Caveats.ConfigPath)
	assert.False(t, res.Caveats.IsLoginShell)

	assert.NoDirExists(t, res.WorkDir)
	assert.NoFileExists(t, filepath.Join(fx.env.Prefix, receipt.LockName))
	assert.Len(t, fx.cmake.Calls(t), 3)
}

func TestInstallService_FlagsAndBuildType(t *testing.T) {
	fx := newFixture(t, testutil.CMakeOptions{})
	req := fx.request()
	req.Formula.Build.Flags = []string{"-DLEIZI_ENABLE_GIT=ON"}
	req.BuildType = formula.BuildTypeDebug
	req.ExtraFlags = []string{"-DCMAKE_C_FLAGS=-O2 -g"}
	req.KeepWork = true
	req.AllowUnverified = true

	res, err := fx.svc.Execute(context.Background(), req)
	require.NoError(t, err)

	configure := fx.cmake.Calls(t)[0]
	assert.Contains(t, configure, "-DCMAKE_BUILD_TYPE=Debug")
	assert.True(t, strings.HasSuffix(configure, "-DLEIZI_ENABLE_GIT=ON -DCMAKE_C_FLAGS=-O2 -g"), configure)
	assert.True(t, fx.fetcher.opts.AllowUnverified)
	assert.DirExists(t, res.WorkDir)
	assert.Equal(t, []string{"-DLEIZI_ENABLE_GIT=ON", "-DCMAKE_C_FLAGS=-O2 -g"}, res.Receipt.ExtraFlags)
}

func TestInstallService_BuildFailure(t *testing.T) {
	fx := newFixture(t, testutil.CMakeOptions{FailStage: build.StageBuild})

	_, err := fx.svc.Execute(context.Background(), fx.request())
	require.Error(t, err)

	var buildErr *build.BuildError
	require.True(t, errors.As(err, &buildErr), "error = %v", err)
	assert.Equal(t, build.StageBuild, buildErr.Stage)
	assert.Contains(t, buildErr.StderrTail, "simulated build failure")

	rec, err := receipt.Load(fx.env.Prefix)
	require.NoError(t, err)
	assert.Equal(t, receipt.StateCompleted, rec.StateOf(receipt.StageFetch))
	assert.Equal(t, receipt.StateCompleted, rec.StateOf(receipt.StageConfigure))
	assert.Equal(t, receipt.StateFailed, rec.StateOf(receipt.StageBuild))
	assert.Equal(t, receipt.StatePending, rec.StateOf(receipt.StageInstall))
	assert.Equal(t, receipt.StatePending, rec.StateOf(receipt.StageScript))

	assert.NoFileExists(t, filepath.Join(fx.env.Prefix, install.ScriptName))
	assert.Len(t, fx.cmake.Calls(t), 2, "install step must not run after a build failure")
	assert.NoFileExists(t, filepath.Join(fx.env.Prefix, receipt.LockName))
}

func TestInstallService_FetchFailure(t *testing.T) {
	fx := newFixture(t, testutil.CMakeOptions{})
	fx.fetcher.err = &source.FetchError{Stage: source.StageVerify, Cause: source.ErrChecksumMismatch}

	_, err := fx.svc.Execute(context.Background(), fx.request())
	require.ErrorIs(t, err, source.ErrChecksumMismatch)

	rec, err := receipt.Load(fx.env.Prefix)
	require.NoError(t, err)
	failed := rec.FailedStage()
	require.NotNil(t, failed)
	assert.Equal(t, receipt.StageFetch, failed.Name)
	assert.Empty(t, fx.cmake.Calls(t))
}

func TestInstallService_LockHeld(t *testing.T) {
	fx := newFixture(t, testutil.CMakeOptions{})

	lock, err := receipt.AcquireLock(fx.env.Prefix)
	require.NoError(t, err)
	defer lock.Release()

	_, err = fx.svc.Execute(context.Background(), fx.request())
	assert.ErrorIs(t, err, receipt.ErrLockExists)
	assert.Empty(t, fx.cmake.Calls(t))
}

func TestInstallService_InvalidRequest(t *testing.T) {
	fx := newFixture(t, testutil.CMakeOptions{})

	_, err := fx.svc.Execute(context.Background(), InstallRequest{Prefix: fx.env.Prefix})
	assert.Error(t, err)

	_, err = fx.svc.Execute(context.Background(), InstallRequest{Formula: formula.Default(), Prefix: "relative/prefix"})
	assert.Error(t, err)

	bad := formula.Default()
	bad.Binary = ""
	_, err = fx.svc.Execute(context.Background(), InstallRequest{Formula: bad, Prefix: fx.env.Prefix})
	var verr *formula.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestInstallService_MissingPrefix(t *testing.T) {
	fx := newFixture(t, testutil.CMakeOptions{})
	req := fx.request()
	req.Prefix = filepath.Join(fx.env.Prefix, "missing")

	_, err := fx.svc.Execute(context.Background(), req)
	var ierr *install.InstallError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, req.Prefix, ierr.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NoDirExists(t, req.Prefix)
	assert.Empty(t, fx.cmake.Calls(t))
}
