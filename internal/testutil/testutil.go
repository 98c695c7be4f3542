// Package testutil builds throwaway stores for package tests.
package testutil

import (
	"database/sql"
	"path/filepath"
	"ranking-server/internal/config"
	"ranking-server/internal/constants"
	"ranking-server/internal/database"
	"ranking-server/internal/kv"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// Config returns a valid configuration pointing at a fresh database file.
func Config(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DBPath:             filepath.Join(t.TempDir(), "ranking.db"),
		ServerPort:         "0",
		LogLevel:           "debug",
		DefaultTopRankSize: constants.DefaultTopRankSize,
		RankStrategy:       constants.RankStrategySkipList,
	}
}

// DB opens a migrated database for cfg and closes it when the test ends.
func DB(t *testing.T, cfg *config.Config) *sql.DB {
	t.Helper()
	db, err := database.New(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func Store(t *testing.T) kv.Store {
	t.Helper()
	return kv.NewSQLiteStore(DB(t, Config(t)), zerolog.Nop())
}
