package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"artico/internal/config"
	"artico/internal/handlers"
	"artico/internal/logging"
	"artico/internal/router"
	"artico/internal/upstream"
	"artico/internal/websocket"
)

func main() {
	// ──── Load Environment Variables ────
	cfg := config.Load()
	logging.Setup(os.Stderr, cfg.LogLevel)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("relay stopped")
	}
	log.Info().Msg("shutdown complete")
}

func run(cfg *config.Config) error {
	// ──── Upstream Providers ────
	hc := upstream.NewHTTPClient(cfg.UpstreamTimeout)
	articleProvider, chatProvider, err := upstream.NewProviders(cfg, hc)
	if err != nil {
		return errors.Wrap(err, "configuring upstream")
	}
	log.Info().
		Str("provider", articleProvider.Name()).
		Dur("upstream_timeout", cfg.UpstreamTimeout).
		Msg("upstream configured")

	// ──── Handlers & Router ────
	r := router.New(
		handlers.NewGenerateHandler(articleProvider),
		handlers.NewChatHandler(chatProvider),
		websocket.NewChatRelay(chatProvider, cfg.FrontendURL),
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.StreamWriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		log.Info().Str("addr", server.Addr).Str("env", cfg.Env).Msg("relay listening")
		log.Info().Msgf("  API: http://localhost:%s/api", cfg.Port)
		log.Info().Msgf("  WS:  ws://localhost:%s/api/chat/ws", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "listening")
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutting down server")
		}
		return nil
	})

	return eg.Wait()
}
