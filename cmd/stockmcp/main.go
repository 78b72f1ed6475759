package main

import (
	"fmt"
	"os"

	"github.com/newthinker/stock-mcp/internal/config"
	"github.com/newthinker/stock-mcp/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "stockmcp",
	Short: "stock-mcp - A-share market data for MCP clients",
	Long: `stock-mcp serves Chinese A-share index quotes, market breadth and
northbound capital flow to LLM clients over the Model Context Protocol.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads --config, or defaults plus environment when unset.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// buildLogger builds the stderr (and optional file) logger for cfg.
func buildLogger(cfg *config.Config) (*zap.Logger, zap.AtomicLevel, error) {
	opts := logger.Options{
		Development: cfg.Log.Development || debug,
		Level:       cfg.Log.Level,
		File:        cfg.Log.File,
		MaxSizeMB:   cfg.Log.MaxSizeMB,
		MaxBackups:  cfg.Log.MaxBackups,
		MaxAgeDays:  cfg.Log.MaxAgeDays,
	}
	if debug {
		opts.Level = "debug"
	}
	return logger.Build(opts)
}
