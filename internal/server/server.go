// Package server assembles and runs the dashboard HTTP server.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/victoryforphil/cursed-next-odm/internal/config"
	"github.com/victoryforphil/cursed-next-odm/internal/core/archive"
	"github.com/victoryforphil/cursed-next-odm/internal/core/nodeodm"
	"github.com/victoryforphil/cursed-next-odm/internal/server/api"
	"github.com/victoryforphil/cursed-next-odm/internal/server/extract"
)

func Run(ctx context.Context, cfg *config.Config) error {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}
	log.Debug().Str("level", cfg.Logging.Level).Msg("log level configured")

	client := nodeodm.New(cfg.NodeODM.URL, cfg.NodeODMTimeout())
	fetcher := archive.NewFetcher(client)

	e := echo.New()
	e.HideBanner = true

	api.SetupRouter(e, api.RouterConfig{Client: client})
	extract.NewHandler(fetcher, cfg).RegisterRoutes(e)

	log.Info().
		Str("nodeodm", client.BaseURL()).
		Str("cache_dir", cfg.Cache.Dir).
		Msg("dashboard configured")

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	return nil
}
