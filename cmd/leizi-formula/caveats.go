package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Zixiao-System/leizi-formula/internal/install"
	"github.com/Zixiao-System/leizi-formula/internal/shell"
)

func (c *cli) newCaveatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "caveats",
		Short: "Print the post-install instructions",
		Args:  args(cobra.NoArgs),
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

			bin := filepath.Join(e.settings.Prefix, "bin", f.Binary)
			caveats := install.Caveats{
				Name:         f.Name,
				ScriptPath:   filepath.Join(e.settings.Prefix, install.ScriptName),
				BinaryPath:   bin,
				ConfigPath:   f.Caveats.ConfigPath,
				DocsURL:      f.Caveats.DocsURL,
				IsLoginShell: shell.NewDetector().IsCurrent(ctx, bin),
			}
			return caveats.Render(c.stdout)
		},
	}
}
