package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Zixiao-System/leizi-formula/internal/formula"
)

func (c *cli) newFormulaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formula",
		Short: "Create or inspect formula files",
	}
	cmd.AddCommand(c.newFormulaInitCmd(), c.newFormulaShowCmd())
	return cmd
}

func (c *cli) newFormulaInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the built-in formula to a file (default formula.lua)",
		Args:  args(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, a []string) error {
			path := "formula.lua"
			if len(a) == 1 {
				path = a[0]
			}

			content, err := formula.NewGenerator().Generate(formula.Default())
			if err != nil {
				return fmt.Errorf("generate formula: %w", err)
			}

			flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
			if force {
				flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
			}
			file, err := os.OpenFile(path, flags, 0o644)
			if errors.Is(err, os.ErrExist) {
				return usage(fmt.Errorf("%s already exists (use --force to overwrite)", path))
			}
			if err != nil {
				return fmt.Errorf("create formula file: %w", err)
			}
			if _, err := file.WriteString(content); err != nil {
				file.Close()
				return fmt.Errorf("write formula file: %w", err)
			}
			if err := file.Close(); err != nil {
				return fmt.Errorf("close formula file: %w", err)
			}

			fmt.Fprintf(c.stdout, "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func (c *cli) newFormulaShowCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved formula",
		Long: `Evaluate the configured formula for this platform and print the result.
Platform conditionals are already applied.`,
		Args: args(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := c.load(cmd)
			if err != nil {
				return err
			}
			f, err := c.loadFormula(cmd.Context(), e)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(c.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(f)
			}
			content, err := formula.NewGenerator().Generate(f)
			if err != nil {
				return fmt.Errorf("generate formula: %w", err)
			}
			fmt.Fprint(c.stdout, content)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the formula as JSON")
	return cmd
}
