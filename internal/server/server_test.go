package server

import (
	"ranking-server/internal/kv"
	"ranking-server/internal/metrics"
	"ranking-server/internal/repository"
	"ranking-server/internal/service"
	"ranking-server/internal/testutil"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *service.RankingService {
	t.Helper()
	cfg := testutil.Config(t)
	store := kv.NewSQLiteStore(testutil.DB(t, cfg), zerolog.Nop())
	repo := repository.NewRankingRepository(store, zerolog.Nop())
	svc, err := service.NewRankingService(repo, cfg, metrics.New(), zerolog.Nop())
	require.NoError(t, err)
	return svc
}
