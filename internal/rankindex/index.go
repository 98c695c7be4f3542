// Package rankindex is an in-memory order-statistics index over the
// leaderboard. Rank lookups take O(log n) instead of a scan of the store.
//
// The index mirrors the by-rank-order store index and is only authoritative
// while this process is the single writer of that store.
package rankindex

import (
	"ranking-server/internal/domain"
	"sync"
)

type Index struct {
	mu      sync.RWMutex
	list    *skipList
	members map[int64]domain.Player
}

func New() *Index {
	return &Index{
		list:    newSkipList(),
		members: make(map[int64]domain.Player),
	}
}

// Insert adds p. Players are never moved once inserted, so a second insert
// for the same member number is ignored and reports false.
func (ix *Index) Insert(p domain.Player) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, ok := ix.members[p.MemberNo]; ok {
		return false
	}
	ix.list.insert(p)
	ix.members[p.MemberNo] = p
	return true
}

// Rank returns the 1-based leaderboard position of memberNo.
func (ix *Index) Rank(memberNo int64) (int, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	p, ok := ix.members[memberNo]
	if !ok {
		return 0, false
	}
	return ix.list.rank(p)
}

// Top returns at most n players from the head of the leaderboard.
func (ix *Index) Top(n int) []domain.Player {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.list.rangeByRank(1, n)
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.list.length
}
