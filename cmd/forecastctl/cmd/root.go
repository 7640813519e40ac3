package cmd

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/config"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/infrastructure"
)

// Viper keys
const (
	keyEndpoint       = "endpoint"
	keyPollInterval   = "poll-interval"
	keyRequestTimeout = "request-timeout"
	keyStartAction    = "start-action"
	keyLogLevel       = "log-level"
)

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree with its own viper instance
func NewRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:   "forecastctl",
		Short: "forecastctl runs forecast jobs against the pipeline endpoint",
		Long: `forecastctl submits a series to the forecast pipeline, waits for the job to
finish and writes the extended chart.

Common workflows:

  Forecast a built-in sample set and save the chart:
    forecastctl run --sample sine --png chart.png

  Forecast a pasted series and export it:
    forecastctl run --text "0.1, 0.2, ..." --xlsx forecast.xlsx

  List the sample sets:
    forecastctl samples

Configuration:
  Flags may also be set through the environment or a config file:
    FORECAST_ENDPOINT         pipeline URL
    FORECAST_POLL_INTERVAL    re-poll delay while a stage is ACTIVE (default 5m)`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cfgFile)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.forecastctl.yaml)")
	flags.String(keyEndpoint, config.DefaultPipelineEndpoint, "pipeline endpoint URL")
	flags.Duration(keyPollInterval, config.DefaultPollInterval, "re-poll delay while a stage is still running")
	flags.Duration(keyRequestTimeout, config.DefaultRequestTimeout, "timeout for a single pipeline request")
	flags.String(keyStartAction, config.DefaultStartAction, "action name that submits a series")
	flags.String(keyLogLevel, "warn", "log level (debug, info, warn, error)")
	_ = v.BindPFlags(flags)

	root.AddCommand(newRunCmd(v))
	root.AddCommand(newSamplesCmd())

	return root
}

func initConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return err
		}
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.SetConfigName(".forecastctl")
		v.SetConfigType("yaml")
		_ = v.ReadInConfig()
	}

	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return nil
}

// cliLogger writes JSON logs to stderr at the configured level
func cliLogger(cmd *cobra.Command, v *viper.Viper) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString(keyLogLevel))); err != nil {
		level = slog.LevelWarn
	}
	return infrastructure.NewLoggerWithWriter(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
}

func durationOr(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	if d := v.GetDuration(key); d > 0 {
		return d
	}
	return fallback
}
