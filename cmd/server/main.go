// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	httpapi "github.com/beatline/beatline/internal/api/http"
	"github.com/beatline/beatline/internal/core/coordinator"
	"github.com/beatline/beatline/internal/domain/event"
	"github.com/beatline/beatline/internal/infra/config"
	"github.com/beatline/beatline/internal/infra/logger"
	"github.com/beatline/beatline/internal/infra/spotifyprovider"
	"github.com/beatline/beatline/internal/infra/sqlrepo"
)

var (
	app     = kingpin.New("beatline-server", "beatline venue voting server")
	verbose = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// list-voting-defaults command
	listVotingDefaultsCmd = app.Command("list-voting-defaults", "Print the process-wide voting defaults and exit")
)

func init() {
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{Output: "stdout", Level: "info"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Msgf("failed to load config: %v", err)
	}

	if command == listVotingDefaultsCmd.FullCommand() {
		printVotingDefaults(cfg.VotingDefaults)
		return
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("server error: %v", err)
		os.Exit(1)
	}
}

func printVotingDefaults(r event.VotingRules) {
	fmt.Println("Voting defaults applied to events created without explicit rules:")
	fmt.Printf("  votesPerHour:             %d\n", r.VotesPerHour)
	fmt.Printf("  cooldownSeconds:          %d\n", r.CooldownSeconds)
	fmt.Printf("  sameTrackCooldownSeconds: %d\n", r.SameTrackCooldownSeconds)
	fmt.Printf("  ipHourlyMultiplier:       %d\n", r.IPHourlyMultiplier)
	fmt.Printf("  ipHourlyCap:              %d\n", r.IPHourlyCap())
	fmt.Printf("  maxQueueSize:             %d\n", r.MaxQueueSize)
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	store, err := sqlrepo.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			zlog.Error().Msgf("failed to close database: %v", err)
		}
	}()

	prov, err := spotifyprovider.New(ctx, spotifyprovider.Config{
		ClientID:     cfg.ProviderClientID,
		ClientSecret: cfg.ProviderClientSecret,
		RedirectURI:  cfg.ProviderRedirectURI,
		RefreshToken: cfg.ProviderRefreshToken,
	})
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	coord := coordinator.New(store, prov)
	httpServer := httpapi.NewServer(coord, httpapi.WithCORSOrigin(cfg.CORSOrigin))

	srv := &http.Server{
		Addr:    cfg.HTTPBind,
		Handler: httpServer,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("starting server: addr=%s", cfg.HTTPBind)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("received shutdown signal...")
	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("failed to shutdown server: %v", err)
	}
	if err := coord.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("failed to drain active events: %v", err)
	}

	zlog.Info().Msg("server stopped")
	return nil
}
