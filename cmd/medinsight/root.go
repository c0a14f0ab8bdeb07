package medinsight

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/soundprediction/medinsight/pkg/config"
	"github.com/soundprediction/medinsight/pkg/logger"
	"github.com/soundprediction/medinsight/pkg/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "medinsight",
		Short: "MedInsight: clinical knowledge assistant",
		Long: `MedInsight stores hospital-scoped expert insights and answers clinical
questions from them. It also runs multi-modal research over audio, images
and documents, streaming a synthesized report.`,
		SilenceUsage: true,
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.medinsight.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".medinsight")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the application logger. When telemetry is enabled error
// records are also written to Parquet; the returned flush persists them.
func newLogger(cfg *config.Config) (*slog.Logger, func()) {
	base := logger.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if !cfg.Telemetry.Enabled || cfg.Telemetry.ParquetPath == "" {
		return base, func() {}
	}

	ph, err := telemetry.NewParquetHandler(base.Handler(), cfg.Telemetry.ParquetPath, cfg.Telemetry.BatchSize)
	if err != nil {
		base.Warn("Failed to initialize error tracking", "error", err)
		return base, func() {}
	}
	l := slog.New(ph)
	l.Info("Error tracking enabled", "path", cfg.Telemetry.ParquetPath)
	return l, func() {
		if err := ph.Flush(); err != nil {
			base.Warn("Failed to flush telemetry", "error", err)
		}
	}
}
