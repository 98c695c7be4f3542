package fx

import (
	"database/sql"
	"ranking-server/internal/config"
	"ranking-server/internal/database"
	"ranking-server/internal/kv"
	"ranking-server/internal/logger"
	"ranking-server/internal/metrics"
	"ranking-server/internal/repository"
	"ranking-server/internal/server"
	"ranking-server/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideStore(sqlDB *sql.DB, logger zerolog.Logger) kv.Store {
	return kv.NewSQLiteStore(sqlDB, logger)
}

var Module = fx.Options(
	logger.Module,
	config.Module,
	metrics.Module,
	fx.Provide(database.New),
	fx.Provide(ProvideStore),
	// repos
	fx.Provide(repository.NewRankingRepository),
	// svc
	fx.Provide(service.NewRankingService),
	// server
	fx.Provide(server.NewRankingHandler),
	fx.Provide(server.NewRankingServer),
)
