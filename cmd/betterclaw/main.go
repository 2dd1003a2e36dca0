package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/betterclaw/betterclaw/internal/api"
	"github.com/betterclaw/betterclaw/internal/config"
	"github.com/betterclaw/betterclaw/internal/delivery"
	"github.com/betterclaw/betterclaw/internal/devicectx"
	"github.com/betterclaw/betterclaw/internal/eventlog"
	"github.com/betterclaw/betterclaw/internal/judgment"
	"github.com/betterclaw/betterclaw/internal/logging"
	"github.com/betterclaw/betterclaw/internal/patterns"
	"github.com/betterclaw/betterclaw/internal/pipeline"
	"github.com/betterclaw/betterclaw/internal/proactive"
	"github.com/betterclaw/betterclaw/internal/rules"
	"github.com/betterclaw/betterclaw/internal/websocket"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "betterclaw",
	Short:   "BetterClaw - device-event triage and enrichment pipeline",
	Long:    "BetterClaw sits between the companion app's device telemetry and the agent session, filtering, triaging, and enriching events before they reach the agent.",
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("BetterClaw %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Printf("Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", GitCommit)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer() {
	// Baseline logger for early startup output.
	logging.Init(logging.Config{
		Format:    "auto",
		Level:     "info",
		Component: "betterclaw",
	})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Re-initialize with configuration-driven settings.
	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: "betterclaw",
		FilePath:  cfg.LogFile,
	})
	defer logging.Shutdown()

	log.Info().
		Str("version", Version).
		Str("dataDir", cfg.DataDir).
		Msg("Starting BetterClaw")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	journal := eventlog.New(cfg.EventLogFile())
	store := devicectx.NewStore(cfg.DataDir)
	engine := rules.NewEngine(cfg.PushBudgetPerDay)
	judge := judgment.New(cfg.LLMModel, cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.PushBudgetPerDay)
	judge.SetTimeout(cfg.JudgmentTimeout)
	deliverer := delivery.NewAgentRunner(cfg.AgentCommand, cfg.SessionID, cfg.DeliveryChannel, cfg.DeliveryTimeout)

	hub := websocket.NewHub()
	go hub.Run(ctx)

	pipe := pipeline.New(journal, store, engine, judge, deliverer, hub)
	pipe.Start(ctx)

	patternEngine := patterns.NewEngine(journal, store, cfg.PatternWindowDays)
	patternEngine.Start(ctx)

	proactiveEngine := proactive.NewEngine(store, deliverer, hub)
	if cfg.ProactiveEnabled {
		proactiveEngine.Start(ctx)
	} else {
		log.Info().Msg("Proactive insights disabled by configuration")
	}

	router := api.NewRouter(pipe, store, hub, Version)
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ListenHost, cfg.ListenPort),
		Handler:           router.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Watch the .env file so log level and the proactive toggle apply live.
	watcher, err := config.NewWatcher(cfg.DataDir)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create config watcher, .env changes require restart")
	} else {
		watcher.SetReloadCallback(func() {
			reloaded, err := config.Load()
			if err != nil {
				log.Error().Err(err).Msg("Config reload failed, keeping previous settings")
				return
			}
			logging.SetLevel(reloaded.LogLevel)
			switch {
			case reloaded.ProactiveEnabled && !proactiveEngine.Running():
				log.Info().Msg("Proactive insights enabled, starting scanner")
				proactiveEngine.Start(ctx)
			case !reloaded.ProactiveEnabled && proactiveEngine.Running():
				log.Info().Msg("Proactive insights disabled, stopping scanner")
				proactiveEngine.Stop()
			}
			cfg.ProactiveEnabled = reloaded.ProactiveEnabled
			cfg.LogLevel = reloaded.LogLevel
		})
		if err := watcher.Start(); err != nil {
			log.Warn().Err(err).Msg("Failed to start config watcher")
		}
		defer watcher.Stop()
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown failed")
	}
}
