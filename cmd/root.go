// -- cmd/root.go --
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/jirapull/internal/config"
	"github.com/xkilldash9x/jirapull/internal/observability"
)

var cfgFile string

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "jirapull",
	Short: "Pulls a CSV export of a stored JQL query through the SSO'd Jira UI.",
	// Version is dynamically set at build time. See cmd/version.go.
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Runs before any command, setting up config sources and logging.
		if err := initializeConfig(); err != nil {
			return err
		}

		var loggerCfg config.LoggerConfig
		if err := viper.UnmarshalKey("logger", &loggerCfg); err != nil {
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "jirapull"})
			return fmt.Errorf("failed to unmarshal logger config: %w", err)
		}
		observability.InitializeLogger(loggerCfg)

		observability.GetLogger().Info("Starting jirapull", zap.String("version", Version))
		return nil
	},
}

// Execute runs the root command against the signal-aware context and maps
// any failure to exit code 1.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		observability.Sync()
		os.Exit(1)
	}
	observability.Sync()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().Bool("headless", true, "run the browser headless")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// initializeConfig wires the config file, defaults, and environment into
// viper.
func initializeConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	config.SetDefaults(viper.GetViper())

	viper.SetEnvPrefix("JIRAPULL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars carry the run.
	}
	return nil
}

// loadConfig produces the validated, immutable configuration value the
// workflow receives. Called from the commands that actually run a browser.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
		return config.Config{}, err
	}
	return config.NewFromViper(viper.GetViper())
}
