package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"ranking-server/internal/client"
	"ranking-server/internal/kv"
	"ranking-server/internal/metrics"
	"ranking-server/internal/repository"
	"ranking-server/internal/server"
	"ranking-server/internal/service"
	"ranking-server/internal/testutil"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *client.Client {
	t.Helper()

	cfg := testutil.Config(t)
	store := kv.NewSQLiteStore(testutil.DB(t, cfg), zerolog.Nop())
	repo := repository.NewRankingRepository(store, zerolog.Nop())
	svc, err := service.NewRankingService(repo, cfg, metrics.New(), zerolog.Nop())
	require.NoError(t, err)

	mux := http.NewServeMux()
	server.NewRankingHandler(svc, cfg).Routes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return client.New(srv.URL + "/")
}

func TestClientRegistrationFlow(t *testing.T) {
	ctx := context.Background()
	c := newTestServer(t)

	check, err := c.CheckNickname(ctx, "alice")
	require.NoError(t, err)
	require.False(t, check.Duplicated)
	require.NotNil(t, check.Member)

	require.NoError(t, c.Register(ctx, check.Member.MemberNo, "alice", 50))
	require.NoError(t, c.Register(ctx, 100000002, "bob", 80))

	again, err := c.CheckNickname(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, again.Duplicated)
	assert.Nil(t, again.Member)

	res, err := c.Rankings(ctx, &check.Member.MemberNo, 0)
	require.NoError(t, err)
	assert.Equal(t, []client.RankEntry{{Nickname: "bob", Score: 80}, {Nickname: "alice", Score: 50}}, res.TopRank)
	require.NotNil(t, res.MyRank)
	assert.Equal(t, client.MyRank{Rank: 2, Nickname: "alice", Score: 50}, *res.MyRank)

	top, err := c.Rankings(ctx, nil, 1)
	require.NoError(t, err)
	assert.Len(t, top.TopRank, 1)
	assert.Nil(t, top.MyRank)
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	ctx := context.Background()
	c := newTestServer(t)

	require.NoError(t, c.Register(ctx, 1, "alice", 50))

	err := c.Register(ctx, 2, "alice", 60)
	require.Error(t, err)
	assert.True(t, client.IsConflict(err))

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "nickname already registered", apiErr.Message)

	err = c.Register(ctx, 3, "carol", -1)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.False(t, client.IsConflict(err))
}

func TestClientDeadline(t *testing.T) {
	c := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()

	_, err := c.Rankings(ctx, nil, 0)
	assert.Error(t, err)
}
