package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"ranking-server/internal/config"
	"ranking-server/internal/constants"
	fxmodules "ranking-server/internal/fx"
	"ranking-server/internal/metrics"
	"ranking-server/internal/middleware"
	"ranking-server/internal/server"
	"time"

	"github.com/go-chi/httprate"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runServer),
	).Run()
}

func runServer(
	lc fx.Lifecycle,
	rankingHandler *server.RankingHandler,
	rankingServer *server.RankingServer,
	cfg *config.Config,
	m *metrics.Metrics,
	db *sql.DB,
	logger zerolog.Logger,
) {
	mux := http.NewServeMux()

	rankingHandler.Routes(mux)
	mux.Handle(server.NewRankingServiceHandler(rankingServer))
	mux.Handle("GET /metrics", m.Handler())

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Connect-Protocol-Version", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
	})

	var handler http.Handler = mux
	if cfg.RateLimit > 0 {
		handler = httprate.LimitByIP(cfg.RateLimit, time.Minute)(handler)
	}
	handler = c.Handler(handler)
	handler = middleware.RequestID(logger, m)(handler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      constants.RequestTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("server starting")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}

			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}

			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}
