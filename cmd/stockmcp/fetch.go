package main

import (
	"encoding/json"
	"fmt"

	"github.com/newthinker/stock-mcp/internal/app"
	"github.com/newthinker/stock-mcp/internal/calendar"
	"github.com/newthinker/stock-mcp/internal/core"
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:       "fetch [realtime|breadth|capital_flow|all]",
	Short:     "Fetch market data once and print it as JSON",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"realtime", "breadth", "capital_flow", "all"},
	RunE:      runFetch,
}

var (
	fetchIndexCode string
	fetchDate      string
)

func init() {
	fetchCmd.Flags().StringVar(&fetchIndexCode, "index-code", core.DefaultIndexCode, "index code for realtime quotes")
	fetchCmd.Flags().StringVar(&fetchDate, "date", "", "trading date (YYYY-MM-DD), defaults to the latest")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	var arg string
	if len(args) > 0 {
		arg = args[0]
	}
	dataType, err := core.ParseDataType(arg)
	if err != nil {
		return err
	}
	if fetchDate != "" {
		if _, err := calendar.ParseDate(fetchDate); err != nil {
			return err
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, _, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	a, err := app.New(cfg, log, app.WithVersion(Version))
	if err != nil {
		return fmt.Errorf("creating app: %w", err)
	}

	v, ok := a.Query(cmd.Context(), dataType, fetchIndexCode, fetchDate)
	if !ok {
		return core.WrapError(core.ErrNoData, fmt.Errorf("%s unavailable", dataType))
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
