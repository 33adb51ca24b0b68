package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/daimatz/positivity/pkg/positivity"
	"github.com/daimatz/positivity/pkg/vm"
)

func newCheckCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [VALUE...]",
		Short: "Compare the reference check with the bytecode check",
		Long: `Evaluate each VALUE with the plain comparison and with PositivityTester.test.
"null" or "nil" stands for an absent value. Without arguments a fixed sample
set is checked. Put -- before negative values. Exits non-zero if the two
answers ever differ.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseValues(args)
			if err != nil {
				return err
			}

			test := positivity.IsPositiveBytecode
			if !v.GetBool("fresh") {
				tester, err := positivity.NewTester(vm.NewMemoryClassLoader(nil))
				if err != nil {
					return err
				}
				test = tester.Test
			}

			out := cmd.OutOrStdout()
			ok := color.New(color.FgGreen).SprintFunc()
			bad := color.New(color.FgRed, color.Bold).SprintFunc()

			mismatches := 0
			for _, x := range values {
				ref := positivity.IsPositive(x)
				got, err := test(x)
				if err != nil {
					return fmt.Errorf("bytecode check of %s: %w", formatValue(x), err)
				}
				status := ok("ok")
				if got != ref {
					status = bad("MISMATCH")
					mismatches++
				}
				fmt.Fprintf(out, "%-12s reference=%-5t bytecode=%-5t %s\n", formatValue(x), ref, got, status)
			}

			if mismatches > 0 {
				return fmt.Errorf("%d of %d values disagree", mismatches, len(values))
			}
			return nil
		},
	}
	cmd.Flags().Bool("fresh", false, "define a new class in a new loader for every value")
	return cmd
}
