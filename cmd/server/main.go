package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/config"
	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/infrastructure/server"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewDefault().Fatal("Failed to load config", zap.Error(err))
	}

	// Flags override the environment
	flag.StringVar(&cfg.Server.Port, "port", cfg.Server.Port, "Server port")
	flag.StringVar(&cfg.Server.Host, "host", cfg.Server.Host, "Server host")
	flag.BoolVar(&cfg.Logging.Development, "dev", cfg.Logging.Development, "Development mode (console logs, debug level)")
	flag.Parse()

	logger, err := logging.New(loggerConfig(cfg))
	if err != nil {
		logging.NewDefault().Fatal("Failed to create logger", zap.Error(err))
	}

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down gracefully")
	case err := <-errChan:
		if err != nil {
			logger.Fatal("Server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
}

// loggerConfig layers the loaded settings over the logging defaults.
// Development mode always logs at debug.
func loggerConfig(cfg *config.Config) logging.Config {
	logCfg := logging.DefaultConfig()
	if cfg.Logging.Level != "" {
		logCfg.Level = cfg.Logging.Level
	}
	logCfg.Development = cfg.Logging.Development
	if logCfg.Development {
		logCfg.Level = "debug"
	}
	return logCfg
}
