package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/daimatz/positivity/pkg/positivity"
	"github.com/daimatz/positivity/pkg/vm"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run CLASSFILE [VALUE...]",
		Short: "Load a class file from disk and invoke its test method",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := args[0]
			dir := filepath.Dir(filename)
			className := strings.TrimSuffix(filepath.Base(filename), ".class")

			values, err := parseValues(args[1:])
			if err != nil {
				return err
			}

			class, err := vm.NewUserClassLoader(dir, nil).LoadClass(className)
			if err != nil {
				return err
			}
			method, err := class.Method(v.GetString("method"), positivity.MethodDescriptor)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, x := range values {
				ret, err := method.Invoke(vm.IntegerValue(x))
				if err != nil {
					return fmt.Errorf("%s.%s(%s): %w", class.Name, method.Info.Name, formatValue(x), err)
				}
				fmt.Fprintf(out, "%s(%s) = %t\n", method.Info.Name, formatValue(x), ret.Bool())
			}
			return nil
		},
	}
	cmd.Flags().String("method", positivity.MethodName, "static method taking java/lang/Integer and returning boolean")
	return cmd
}
