package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/workflow-engine/internal/config"
	"github.com/garyjia/workflow-engine/internal/container"
	httpserver "github.com/garyjia/workflow-engine/internal/interfaces/http"
	"github.com/garyjia/workflow-engine/pkg/utils"
)

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:           "workflow-server",
	Short:         "Serve the workflow engine HTTP API",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return run(ctx)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to the YAML config file (empty for defaults)")
	rootCmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "workflow-server: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
		Service:    cfg.Logger.Service,
		Version:    httpserver.Version,
		Sampling: utils.SamplingConfig{
			Initial:    cfg.Logger.Sampling.Initial,
			Thereafter: cfg.Logger.Sampling.Thereafter,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("Starting workflow engine",
		zap.Int("port", cfg.Server.Port),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("lock", cfg.Lock.Driver))

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		c.Close()
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Container shutdown failed", zap.Error(err))
		}
	}()

	serverCfg := httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		MetricsPath:  cfg.Metrics.Path,
	}
	opts := []httpserver.ServerOption{httpserver.WithHealthReporter(c)}
	if h := c.MetricsHandler(); h != nil {
		opts = append(opts, httpserver.WithMetricsHandler(h))
	}

	server := httpserver.NewServer(serverCfg, c.WorkflowService(), container.NewLoggerAdapter(logger), opts...)

	// Blocks until SIGINT/SIGTERM, then shuts down gracefully
	if err := server.Start(ctx); err != nil {
		return err
	}

	logger.Info("Server exited successfully")
	return nil
}
