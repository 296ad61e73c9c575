package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Zixiao-System/leizi-formula/internal/livecheck"
)

func (c *cli) newLivecheckCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "livecheck",
		Short: "Check upstream for a newer release",
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

			res, err := livecheck.NewChecker(nil, e.logger).Check(ctx, f)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(c.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			if res.Outdated {
				fmt.Fprintf(c.stdout, "%s: %s is outdated, %s is available from %s\n", res.Formula, res.Current, res.Latest, res.Repository)
			} else {
				fmt.Fprintf(c.stdout, "%s: %s is the latest release\n", res.Formula, res.Current)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}
