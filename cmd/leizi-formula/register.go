package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Zixiao-System/leizi-formula/internal/registry"
)

func (c *cli) newRegisterCmd() *cobra.Command {
	var binary string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Add the installed shell to the shell registry",
		Long: `Append the binary to the shell registry (/etc/shells by default) unless
it is already listed. Running it again is a no-op. Writing /etc/shells
needs root; this command does not escalate privileges. The generated
post_install.sh does the same thing through sudo.`,
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
			bin, err := binaryPath(binary, e, f)
			if err != nil {
				return err
			}

			reg := registry.NewFileRegistry(afero.NewOsFs(), e.settings.RegistryPath)
			out, err := registry.NewRegistrar(reg, e.logger).Register(ctx, bin)
			if err != nil {
				return err
			}

			if out.Appended {
				fmt.Fprintf(c.stdout, "Registered %s in %s\n", bin, e.settings.RegistryPath)
			} else {
				fmt.Fprintf(c.stdout, "%s is already registered in %s\n", bin, e.settings.RegistryPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&binary, "binary", "", "binary to register (default prefix/bin/<binary>)")
	return cmd
}
