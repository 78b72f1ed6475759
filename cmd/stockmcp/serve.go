package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/newthinker/stock-mcp/internal/app"
	"github.com/newthinker/stock-mcp/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve MCP over stdio",
	Long: `Serve the get_market_data tool and market:// resources over stdio.
Logs go to stderr. When metrics are enabled an HTTP listener also serves
/metrics, /healthz and /api/market.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, level, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfgFile == "" {
		log.Warn("no config file specified, using defaults")
	} else if err := config.Watch(cfgFile, log, func(c *config.Config) {
		if debug {
			return
		}
		if err := level.UnmarshalText([]byte(c.Log.Level)); err == nil {
			log.Info("log level changed", zap.Stringer("level", level.Level()))
		}
	}); err != nil {
		log.Warn("config watch disabled", zap.Error(err))
	}

	a, err := app.New(cfg, log, app.WithVersion(Version))
	if err != nil {
		return fmt.Errorf("creating app: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return a.Run(ctx, os.Stdin, os.Stdout)
}
