package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/daimatz/positivity/pkg/positivity"
	"github.com/daimatz/positivity/pkg/vm"
)

const envPrefix = "POSITIVITY"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}

// newRootCmd wires the command tree to a fresh viper instance.
func newRootCmd() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "positivity",
		Short: "Check integer positivity natively and through a generated JVM class",
		Long: `positivity answers "is this optional integer positive?" twice: with a
plain comparison and by encoding a PositivityTester class file, defining it in
an in-memory class loader and invoking its static test method.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(v, cmd); err != nil {
				return err
			}
			if v.GetBool("no-color") {
				color.NoColor = true
			}
			logger, err := newLogger(v.GetString("log-level"))
			if err != nil {
				return err
			}
			vm.SetLogger(logger.Named("vm"))
			positivity.SetLogger(logger.Named("positivity"))
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config file (default ./positivity.yaml if present)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")

	rootCmd.AddCommand(newCheckCmd(v))
	rootCmd.AddCommand(newEmitCmd(v))
	rootCmd.AddCommand(newRunCmd(v))
	rootCmd.AddCommand(newInspectCmd(v))
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

// loadConfig layers flags over POSITIVITY_* environment variables over an
// optional YAML config file.
func loadConfig(v *viper.Viper, cmd *cobra.Command) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("positivity")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	return cfg.Build()
}
