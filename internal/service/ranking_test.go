package service

import (
	"context"
	"fmt"
	"ranking-server/internal/config"
	"ranking-server/internal/constants"
	"ranking-server/internal/domain"
	"ranking-server/internal/kv"
	"ranking-server/internal/metrics"
	"ranking-server/internal/repository"
	"ranking-server/internal/testutil"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc   *RankingService
	repo  *repository.RankingRepository
	store kv.Store
	cfg   *config.Config
	clock atomic.Int64
}

func newFixture(t *testing.T, strategy string) *fixture {
	t.Helper()

	cfg := testutil.Config(t)
	cfg.RankStrategy = strategy
	store := kv.NewSQLiteStore(testutil.DB(t, cfg), zerolog.Nop())
	repo := repository.NewRankingRepository(store, zerolog.Nop())

	svc, err := NewRankingService(repo, cfg, metrics.New(), zerolog.Nop())
	require.NoError(t, err)

	f := &fixture{svc: svc, repo: repo, store: store, cfg: cfg}
	f.clock.Store(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli())
	// every call moves the clock one millisecond forward
	svc.now = func() time.Time { return time.UnixMilli(f.clock.Add(1)) }
	return f
}

func strategies() []string {
	return []string{constants.RankStrategyScan, constants.RankStrategySkipList}
}

func ptr[T any](v T) *T { return &v }

func TestRegisterThenQueryTop(t *testing.T) {
	for _, strategy := range strategies() {
		t.Run(strategy, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, strategy)

			_, err := f.svc.Register(ctx, 100000001, "alice", 50)
			require.NoError(t, err)
			_, err = f.svc.Register(ctx, 100000002, "bob", 80)
			require.NoError(t, err)

			res, err := f.svc.Query(ctx, nil, 2)
			require.NoError(t, err)
			assert.Equal(t, []domain.RankEntry{
				{Nickname: "bob", Score: 80},
				{Nickname: "alice", Score: 50},
			}, res.TopRank)
			assert.Nil(t, res.MyRank)
		})
	}
}

func TestRegisterDuplicateNickname(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, constants.RankStrategySkipList)

	_, err := f.svc.Register(ctx, 100000001, "alice", 50)
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, 100000002, "alice", 90)
	assert.ErrorIs(t, err, ErrDuplicateNickname)

	res, err := f.svc.Query(ctx, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []domain.RankEntry{{Nickname: "alice", Score: 50}}, res.TopRank)

	_, err = f.repo.GetByMember(ctx, 100000002)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRegisterDuplicateMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, constants.RankStrategySkipList)

	_, err := f.svc.Register(ctx, 100000001, "alice", 50)
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, 100000001, "bob", 90)
	assert.ErrorIs(t, err, ErrDuplicateMember)
}

func TestQueryTieBreakByRegistrationTime(t *testing.T) {
	for _, strategy := range strategies() {
		t.Run(strategy, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, strategy)

			_, err := f.svc.Register(ctx, 1, "carol", 80)
			require.NoError(t, err)
			_, err = f.svc.Register(ctx, 2, "dave", 80)
			require.NoError(t, err)
			_, err = f.svc.Register(ctx, 3, "erin", 50)
			require.NoError(t, err)

			want := map[int64]domain.MyRank{
				1: {Rank: 1, Nickname: "carol", Score: 80},
				2: {Rank: 2, Nickname: "dave", Score: 80},
				3: {Rank: 3, Nickname: "erin", Score: 50},
			}
			for memberNo, expected := range want {
				res, err := f.svc.Query(ctx, ptr(memberNo), 0)
				require.NoError(t, err)
				require.NotNil(t, res.MyRank)
				assert.Equal(t, expected, *res.MyRank)
			}
		})
	}
}

func TestQueryUnknownMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, constants.RankStrategySkipList)

	_, err := f.svc.Register(ctx, 1, "alice", 50)
	require.NoError(t, err)

	res, err := f.svc.Query(ctx, ptr(int64(999)), 5)
	require.NoError(t, err)
	assert.Nil(t, res.MyRank)
	assert.Len(t, res.TopRank, 1)
}

func TestQueryEmptyStore(t *testing.T) {
	f := newFixture(t, constants.RankStrategySkipList)

	res, err := f.svc.Query(context.Background(), ptr(int64(1)), 0)
	require.NoError(t, err)
	assert.Empty(t, res.TopRank)
	assert.Nil(t, res.MyRank)
}

func TestQueryTopSize(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, constants.RankStrategySkipList)

	for i := range 10 {
		_, err := f.svc.Register(ctx, int64(i+1), fmt.Sprintf("p%d", i), int64(i))
		require.NoError(t, err)
	}

	res, err := f.svc.Query(ctx, nil, 0)
	require.NoError(t, err)
	assert.Len(t, res.TopRank, f.cfg.DefaultTopRankSize)

	res, err = f.svc.Query(ctx, nil, 100)
	require.NoError(t, err)
	assert.Len(t, res.TopRank, 10)

	for _, n := range []int{-1, constants.MaxTopRankSize + 1} {
		_, err = f.svc.Query(ctx, nil, n)
		assert.ErrorIs(t, err, ErrInvalidInput, "top_n %d", n)
	}
}

func TestQueryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, constants.RankStrategySkipList)

	for i := range 5 {
		_, err := f.svc.Register(ctx, int64(i+1), fmt.Sprintf("p%d", i), int64(i%2))
		require.NoError(t, err)
	}

	first, err := f.svc.Query(ctx, ptr(int64(3)), 5)
	require.NoError(t, err)
	second, err := f.svc.Query(ctx, ptr(int64(3)), 5)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, constants.RankStrategySkipList)

	cases := []struct {
		name     string
		memberNo int64
		nickname string
		score    int64
	}{
		{"empty nickname", 1, "", 10},
		{"blank nickname", 1, "   ", 10},
		{"negative score", 1, "alice", -1},
		{"zero member", 0, "alice", 10},
		{"negative member", -5, "alice", 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Register(ctx, tc.memberNo, tc.nickname, tc.score)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	res, err := f.svc.Query(ctx, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, res.TopRank)
}

func TestRegisterAcceptsZeroScore(t *testing.T) {
	f := newFixture(t, constants.RankStrategySkipList)

	player, err := f.svc.Register(context.Background(), 1, " alice ", 0)
	require.NoError(t, err)
	assert.Equal(t, "alice", player.Nickname)
	assert.Zero(t, player.Score)
}

func TestConcurrentRegisterSameNickname(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, constants.RankStrategySkipList)

	const workers = 8
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		dupes     atomic.Int32
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Register(ctx, int64(100+i), "alice", int64(i))
			switch {
			case err == nil:
				succeeded.Add(1)
			case assert.ErrorIs(t, err, ErrDuplicateNickname):
				dupes.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, succeeded.Load())
	assert.EqualValues(t, workers-1, dupes.Load())

	res, err := f.svc.Query(ctx, nil, 100)
	require.NoError(t, err)
	assert.Len(t, res.TopRank, 1)
	assert.Equal(t, 1, f.svc.index.Len())
}

func TestStrategiesAgree(t *testing.T) {
	ctx := context.Background()
	cfg := testutil.Config(t)
	store := kv.NewSQLiteStore(testutil.DB(t, cfg), zerolog.Nop())
	repo := repository.NewRankingRepository(store, zerolog.Nop())

	scanCfg := *cfg
	scanCfg.RankStrategy = constants.RankStrategyScan
	scan, err := NewRankingService(repo, &scanCfg, metrics.New(), zerolog.Nop())
	require.NoError(t, err)

	var clock atomic.Int64
	scan.now = func() time.Time { return time.UnixMilli(clock.Add(1) / 3) }

	for i := range 60 {
		_, err := scan.Register(ctx, int64(i+1), fmt.Sprintf("p%02d", i), int64(i%7))
		require.NoError(t, err)
	}

	// a skiplist service started afterwards loads the same players from the store
	indexed, err := NewRankingService(repo, cfg, metrics.New(), zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, 60, indexed.index.Len())

	for memberNo := int64(1); memberNo <= 60; memberNo++ {
		want, err := scan.Query(ctx, &memberNo, 10)
		require.NoError(t, err)
		got, err := indexed.Query(ctx, &memberNo, 10)
		require.NoError(t, err)
		assert.Equal(t, want, got, "member %d", memberNo)
	}
}

func TestIndexFallsBackToScanForUnindexedMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, constants.RankStrategySkipList)

	_, err := f.svc.Register(ctx, 1, "alice", 50)
	require.NoError(t, err)

	// another writer adds a player behind the index
	require.NoError(t, f.repo.Create(ctx, domain.Player{MemberNo: 2, Nickname: "bob", Score: 90, Timestamp: 1}))

	res, err := f.svc.Query(ctx, ptr(int64(2)), 5)
	require.NoError(t, err)
	require.NotNil(t, res.MyRank)
	assert.Equal(t, 1, res.MyRank.Rank)
}

func TestCheckNickname(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, constants.RankStrategySkipList)

	check, err := f.svc.CheckNickname(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, check.Duplicated)
	assert.GreaterOrEqual(t, check.MemberNo, int64(constants.MemberNoMin))
	assert.LessOrEqual(t, check.MemberNo, int64(constants.MemberNoMax))

	_, err = f.svc.Register(ctx, check.MemberNo, "alice", 10)
	require.NoError(t, err)

	check, err = f.svc.CheckNickname(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, check.Duplicated)
	assert.Zero(t, check.MemberNo)

	_, err = f.svc.CheckNickname(ctx, " ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRandomMemberNoHasNineDigits(t *testing.T) {
	for range 200 {
		n, err := randomMemberNo()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(constants.MemberNoMin))
		assert.LessOrEqual(t, n, int64(constants.MemberNoMax))
	}
}

func TestQueryRespectsCancelledContext(t *testing.T) {
	f := newFixture(t, constants.RankStrategyScan)
	_, err := f.svc.Register(context.Background(), 1, "alice", 50)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = f.svc.Query(ctx, ptr(int64(1)), 5)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
