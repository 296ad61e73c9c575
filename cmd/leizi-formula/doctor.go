package main

import (
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Zixiao-System/leizi-formula/internal/doctor"
	"github.com/Zixiao-System/leizi-formula/internal/registry"
	"github.com/Zixiao-System/leizi-formula/internal/shell"
)

func (c *cli) newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the installed shell for problems",
		Long: `Compare what an install should have left behind with the host: the
binary and its execute bit, post_install.sh and its mode, the install
receipt, the shell registry entry, the login shell and the build tools.
Exits 1 when a problem is found. Not being the login shell is only
advisory.`,
		Args: args(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := c.load(cmd)
			if err != nil {
				return err
			}
			f, err := c.loadFormula(ctx, e)
			if err != nil {
				return err
			}

			reg := registry.NewFileRegistry(afero.NewOsFs(), e.settings.RegistryPath)
			findings, err := doctor.New(reg, shell.NewDetector(), e.logger).Run(ctx, doctor.Expected{
				Prefix:    e.settings.Prefix,
				Binary:    f.Binary,
				BuildDeps: f.Depends.Build,
			})
			if err != nil {
				return err
			}

			fmt.Fprint(c.stdout, redactHome(doctor.FormatReport(findings)))
			if !doctor.Healthy(findings) {
				return &ExitError{Code: exitFailure, Err: errors.New("doctor found problems")}
			}
			return nil
		},
	}
}
