package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/betterclaw/betterclaw/internal/config"
	"github.com/betterclaw/betterclaw/internal/devicectx"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current device context from the data directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		store := devicectx.NewStore(cfg.DataDir)
		store.Load()
		ctx := store.Get()

		fmt.Println(devicectx.Summarize(ctx, time.Now()))

		patterns, err := store.ReadPatterns()
		if err == nil && patterns.ComputedAt > 0 {
			computed := time.Unix(int64(patterns.ComputedAt), 0)
			fmt.Printf("Patterns computed: %s\n", computed.Format(time.RFC3339))
		}
		return nil
	},
}
