package rankindex

import (
	"math/rand/v2"
	"ranking-server/internal/domain"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func player(memberNo, score, ts int64) domain.Player {
	return domain.Player{MemberNo: memberNo, Nickname: "p", Score: score, Timestamp: ts}
}

func TestIndexRankTieBreaks(t *testing.T) {
	ix := New()
	carol := player(1, 80, 1000)
	dave := player(2, 80, 2000)
	erin := player(3, 50, 3000)

	// insertion order should not matter
	ix.Insert(erin)
	ix.Insert(dave)
	ix.Insert(carol)

	for want, p := range []domain.Player{carol, dave, erin} {
		rank, ok := ix.Rank(p.MemberNo)
		require.True(t, ok)
		assert.Equal(t, want+1, rank, "member %d", p.MemberNo)
	}

	_, ok := ix.Rank(99)
	assert.False(t, ok)
}

func TestIndexSameTimestampFallsBackToMemberNo(t *testing.T) {
	ix := New()
	ix.Insert(player(20, 10, 5))
	ix.Insert(player(10, 10, 5))

	rank, ok := ix.Rank(10)
	require.True(t, ok)
	assert.Equal(t, 1, rank)
	rank, _ = ix.Rank(20)
	assert.Equal(t, 2, rank)
}

func TestIndexIgnoresDuplicateMember(t *testing.T) {
	ix := New()
	assert.True(t, ix.Insert(player(1, 10, 1)))
	assert.False(t, ix.Insert(player(1, 99, 2)))
	assert.Equal(t, 1, ix.Len())

	top := ix.Top(5)
	require.Len(t, top, 1)
	assert.Equal(t, int64(10), top[0].Score)
}

func TestIndexMatchesSortedOrder(t *testing.T) {
	ix := New()
	var players []domain.Player
	for i := 0; i < 2000; i++ {
		p := player(int64(100000000+i), rand.Int64N(50), rand.Int64N(1000))
		players = append(players, p)
		ix.Insert(p)
	}

	slices.SortFunc(players, func(a, b domain.Player) int {
		switch {
		case a.RanksBefore(b):
			return -1
		case b.RanksBefore(a):
			return 1
		}
		return 0
	})

	for i, p := range players {
		rank, ok := ix.Rank(p.MemberNo)
		require.True(t, ok)
		require.Equal(t, i+1, rank, "member %d", p.MemberNo)
	}

	assert.Equal(t, players[:10], ix.Top(10))
	assert.Equal(t, players, ix.Top(len(players)+5))
	assert.Empty(t, ix.Top(0))
}

func TestIndexConcurrentInsertAndRank(t *testing.T) {
	ix := New()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				memberNo := int64(w*1000 + i)
				ix.Insert(player(memberNo, int64(i%17), int64(i)))
				_, ok := ix.Rank(memberNo)
				assert.True(t, ok)
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, 1000, ix.Len())
}
