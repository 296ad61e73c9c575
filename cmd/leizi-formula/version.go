package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/Zixiao-System/leizi-formula/internal/formula"
)

func (c *cli) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  args(cobra.NoArgs),
		Run: func(cmd *cobra.Command, _ []string) {
			def := formula.Default()
			fmt.Fprintf(c.stdout, "leizi-formula %s (%s, %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			fmt.Fprintf(c.stdout, "built-in formula: %s %s\n", def.Name, def.Version)
		},
	}
}
