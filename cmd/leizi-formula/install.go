package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Zixiao-System/leizi-formula/internal/build"
	"github.com/Zixiao-System/leizi-formula/internal/install"
	"github.com/Zixiao-System/leizi-formula/internal/runner"
	"github.com/Zixiao-System/leizi-formula/internal/service"
	"github.com/Zixiao-System/leizi-formula/internal/shell"
	"github.com/Zixiao-System/leizi-formula/internal/source"
)

type installOptions struct {
	head            bool
	extraFlags      []string
	allowUnverified bool
	keepWork        bool
	cmake           string
}

func (c *cli) newInstallCmd() *cobra.Command {
	var opts installOptions

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Fetch, build and install the shell, then write post_install.sh",
		Long: `Fetch the formula's source, build it with CMake and install it under the
prefix. On success prefix/post_install.sh is written (mode 0755) and the
post-install caveats are printed. The shell is not registered in
/etc/shells; run the script or 'leizi-formula register' for that.`,
		Args: args(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runInstall(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.head, "head", false, "build the development branch instead of the release")
	f.StringArrayVar(&opts.extraFlags, "extra-flag", nil, "extra CMake configure flag (repeatable)")
	f.BoolVar(&opts.allowUnverified, "allow-unverified", false, "allow a release without a sha256")
	f.BoolVar(&opts.keepWork, "keep-work", false, "keep the staging and build trees")
	f.StringVar(&opts.cmake, "cmake", "cmake", "cmake executable")
	return cmd
}

func (c *cli) runInstall(cmd *cobra.Command, opts installOptions) error {
	ctx := cmd.Context()
	e, err := c.load(cmd)
	if err != nil {
		return err
	}
	f, err := c.loadFormula(ctx, e)
	if err != nil {
		return err
	}
	s := e.settings

	downloader := source.NewDownloader(s.CacheDir, s.Timeouts.Fetch)
	driver := build.NewDriver(runner.NewExecRunner(s.Timeouts.Build, e.logger), s.Timeouts.Build, e.logger).
		WithCMake(opts.cmake)

	svc := service.NewInstallService(
		source.NewFetcher(downloader, nil, e.logger),
		driver,
		install.NewInstaller(s.RegistryPath, e.logger),
		shell.NewDetector(),
		service.RealClock{},
		filepath.Join(s.CacheDir, "work"),
		e.logger,
	)

	res, err := svc.Execute(ctx, service.InstallRequest{
		Formula:         f,
		Prefix:          s.Prefix,
		BuildType:       s.BuildType,
		ExtraFlags:      append(s.ExtraFlags, opts.extraFlags...),
		Head:            opts.head,
		AllowUnverified: opts.allowUnverified,
		KeepWork:        opts.keepWork,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.stdout, "Installed %s %s to %s\n\n", f.Name, res.Receipt.FormulaVersion, redactHome(res.Artifact.BinaryPath))
	return res.Caveats.Render(c.stdout)
}
