package build

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zixiao-System/leizi-formula/internal/config"
	"github.com/Zixiao-System/leizi-formula/internal/runner"
)

// Build stages, in execution order.
const (
	StageConfigure = "configure"
	StageBuild     = "build"
	StageInstall   = "install"
)

// stderrTailLines is how much of a failing tool's stderr is kept.
const stderrTailLines = 40

// Step is one build system invocation.
type Step struct {
	Stage string
	Name  string
	Args  []string
}

// StepRecord is the outcome of a step that ran.
type StepRecord struct {
	Stage    string
	Command  string
	ExitCode int
	Duration time.Duration
}

// Artifact describes a successful build and install.
type Artifact struct {
	BinaryPath string
	BuildDir   string
	Prefix     string
	Steps      []StepRecord
}

// BuildError reports a step that exited non-zero.
type BuildError struct {
	Stage      string
	ExitCode   int
	StderrTail string
}

func (e *BuildError) Error() string {
	if e.StderrTail == "" {
		return fmt.Sprintf("%s step failed with exit code %d", e.Stage, e.ExitCode)
	}
	return fmt.Sprintf("%s step failed with exit code %d:\n%s", e.Stage, e.ExitCode, e.StderrTail)
}

// Driver runs CMake steps through a runner.Runner.
type Driver struct {
	runner  runner.Runner
	cmake   string
	timeout time.Duration
	logger  config.Logger
}

// NewDriver creates a driver. stepTimeout bounds each step; zero leaves the
// runner's default in force.
func NewDriver(r runner.Runner, stepTimeout time.Duration, logger config.Logger) *Driver {
	return &Driver{
		runner:  r,
		cmake:   "cmake",
		timeout: stepTimeout,
		logger:  config.OrNop(logger),
	}
}

// WithCMake overrides the cmake executable.
func (d *Driver) WithCMake(path string) *Driver {
	d.cmake = path
	return d
}

// Steps returns the invocations Build would run for p.
func (d *Driver) Steps(p *Profile) []Step {
	configure := []string{
		"-S", p.SourcePath(),
		"-B", p.BuildDir(),
		"-DCMAKE_BUILD_TYPE=" + p.BuildType(),
		"-DCMAKE_INSTALL_PREFIX=" + p.Prefix(),
	}
	configure = append(configure, p.ExtraFlags()...)

	return []Step{
		{Stage: StageConfigure, Name: d.cmake, Args: configure},
		{Stage: StageBuild, Name: d.cmake, Args: []string{"--build", p.BuildDir()}},
		{Stage: StageInstall, Name: d.cmake, Args: []string{"--install", p.BuildDir()}},
	}
}

// Build runs configure, build and install in order. The first step that
// fails aborts the chain: later steps are never started.
func (d *Driver) Build(ctx context.Context, p *Profile) (*Artifact, error) {
	artifact := &Artifact{
		BinaryPath: p.BinaryPath(),
		BuildDir:   p.BuildDir(),
		Prefix:     p.Prefix(),
	}

	for _, step := range d.Steps(p) {
		rec, err := d.runStep(ctx, step)
		if rec != nil {
			artifact.Steps = append(artifact.Steps, *rec)
		}
		if err != nil {
			return artifact, err
		}
	}

	d.logger.Info("build complete", "binary", artifact.BinaryPath)
	return artifact, nil
}

func (d *Driver) runStep(ctx context.Context, step Step) (*StepRecord, error) {
	cmd := runner.Command{Name: step.Name, Args: step.Args, Timeout: d.timeout}
	d.logger.Info("running build step", "stage", step.Stage, "cmd", cmd.String())

	res, err := d.runner.Run(ctx, cmd)
	if err != nil {
		var timeoutErr *runner.TimeoutError
		if errors.As(err, &timeoutErr) {
			return recordOf(step, cmd, res), fmt.Errorf("%s step: %w", step.Stage, err)
		}
		return recordOf(step, cmd, res), fmt.Errorf("run %s step: %w", step.Stage, err)
	}

	rec := recordOf(step, cmd, res)
	if !res.Success() {
		d.logger.Error("build step failed", "stage", step.Stage, "exit_code", res.ExitCode)
		return rec, &BuildError{
			Stage:      step.Stage,
			ExitCode:   res.ExitCode,
			StderrTail: runner.Tail(res.Stderr, stderrTailLines),
		}
	}
	return rec, nil
}

func recordOf(step Step, cmd runner.Command, res *runner.Result) *StepRecord {
	rec := &StepRecord{Stage: step.Stage, Command: cmd.String(), ExitCode: -1}
	if res != nil {
		rec.ExitCode = res.ExitCode
		rec.Duration = res.Duration
	}
	return rec
}
