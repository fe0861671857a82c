package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/yumyai/panscope/logger"
	"go.uber.org/zap"
)

const VERSION = "0.1.0"

func main() {

	// Try load env before the logger so PANSCOPE_LOG_LEVEL applies.
	dotenvErr := godotenv.Load()

	if err := logger.InitLogger(logger.LevelFromEnv()); err != nil {
		panic(err)
	}
	defer logger.Sync() // Make sure that the buffered is flushed.

	if dotenvErr != nil {
		logger.Warn("No .env found, using local environment")
	}

	logger.Info("Start:", zap.String("Version", VERSION))

	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		logger.Error("run failed", zap.String("error message", err.Error()))
		logger.Sync()
		os.Exit(1)
	}
}
