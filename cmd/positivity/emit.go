package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/daimatz/positivity/pkg/positivity"
)

func newEmitCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emit",
		Short: "Write PositivityTester.class",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := positivity.WriteClassFile(v.GetString("out"))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().String("out", ".", "output directory")
	return cmd
}
