package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Zixiao-System/leizi-formula/internal/runner"
	"github.com/Zixiao-System/leizi-formula/internal/verify"
)

type testOptions struct {
	binary string
	json   bool
}

func (c *cli) newTestCmd() *cobra.Command {
	var opts testOptions

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run black-box checks against the installed shell",
		Long: `Run the formula's checks against the installed binary: the version
banner, basic command execution and the array builtin. Every check runs
even when an earlier one fails. Exits 1 if any check fails.`,
		Args: args(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runTest(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.binary, "binary", "", "binary to test (default prefix/bin/<binary>)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the report as JSON")
	return cmd
}

func (c *cli) runTest(cmd *cobra.Command, opts testOptions) error {
	ctx := cmd.Context()
	e, err := c.load(cmd)
	if err != nil {
		return err
	}
	f, err := c.loadFormula(ctx, e)
	if err != nil {
		return err
	}
	bin, err := binaryPath(opts.binary, e, f)
	if err != nil {
		return err
	}

	cases, err := verify.FormulaTestCases(f.Tests)
	if err != nil {
		return usage(fmt.Errorf("formula tests: %w", err))
	}

	harness := verify.NewHarness(runner.NewExecRunner(e.settings.Timeouts.Test, e.logger), cases, e.settings.Timeouts.Test, e.logger)
	report := harness.Run(ctx, bin)

	if opts.json {
		err = report.WriteJSON(c.stdout)
	} else {
		err = report.WriteText(c.stdout)
	}
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if !report.Passed() {
		return &ExitError{
			Code: exitFailure,
			Err:  fmt.Errorf("%d of %d checks failed", len(report.Failures()), len(report.Results)),
		}
	}
	return nil
}
