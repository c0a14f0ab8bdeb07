package medinsight

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soundprediction/medinsight"
	"github.com/soundprediction/medinsight/pkg/config"
	"github.com/soundprediction/medinsight/pkg/server"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the MedInsight HTTP server",
	Long: `Start the MedInsight HTTP server.

The server provides endpoints for:
- Storing and searching expert checks
- Streaming expert answers grounded in stored insights
- Streaming multi-modal deep research reports
- Health checks

Configuration can be provided through config files, environment variables, or command-line flags.`,
	RunE: runServer,
}

var (
	serverHost string
	serverPort int
	serverMode string
)

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVar(&serverHost, "host", "localhost", "Server host")
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Server port")
	serverCmd.Flags().StringVar(&serverMode, "mode", "debug", "Server mode (debug, release, test)")

	addStoreFlags(serverCmd)

	serverCmd.Flags().String("inference-base-url", "", "Base URL of the speech, acoustic and vision services")
	serverCmd.Flags().String("telemetry-parquet-path", "", "Path to directory for error telemetry")
}

// addStoreFlags registers the flags shared by every command that opens the
// insight store.
func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("store-driver", "memory", "Insight store driver (memory, badger, postgres, qdrant)")
	cmd.Flags().String("store-uri", "", "Insight store URI or path")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serverHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = serverPort
	}
	if cmd.Flags().Changed("mode") {
		cfg.Server.Mode = serverMode
	}
	if cmd.Flags().Changed("inference-base-url") {
		cfg.Modality.BaseURL, _ = cmd.Flags().GetString("inference-base-url")
	}
	if cmd.Flags().Changed("telemetry-parquet-path") {
		cfg.Telemetry.ParquetPath, _ = cmd.Flags().GetString("telemetry-parquet-path")
		cfg.Telemetry.Enabled = true
	}

	if err := validateServerConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, flush := newLogger(cfg)
	defer flush()

	logger.Info("Initializing MedInsight", "store", cfg.Store.Driver)
	client, err := medinsight.NewClientFromConfig(cmd.Context(), cfg, nil, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize MedInsight: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("Error closing client", "error", err)
		}
	}()

	srv := server.New(cfg, client, logger)
	srv.Setup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.Info("Received signal", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		logger.Info("Server stopped gracefully")
		return nil
	}
}

// loadConfig loads the configuration and applies the store flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("store-driver") {
		cfg.Store.Driver, _ = cmd.Flags().GetString("store-driver")
	}
	if cmd.Flags().Changed("store-uri") {
		cfg.Store.URI, _ = cmd.Flags().GetString("store-uri")
	}
	return cfg, nil
}

func validateServerConfig(cfg *config.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}
	if cfg.Store.Driver != "memory" && cfg.Store.URI == "" {
		return fmt.Errorf("store URI is required for driver %q", cfg.Store.Driver)
	}
	return nil
}
