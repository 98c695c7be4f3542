package rankindex

import (
	"math/rand/v2"
	"ranking-server/internal/domain"
)

const (
	maxLevel = 32
	levelP   = 0.25
)

type node struct {
	player domain.Player
	level  []nodeLevel
}

type nodeLevel struct {
	forward *node
	// number of level-0 steps skipped by following forward
	span int
}

// skipList keeps players in leaderboard order. Spans on each level let rank
// lookups add up positions instead of walking level 0. Not safe for
// concurrent use; Index holds the lock.
type skipList struct {
	header *node
	length int
	level  int
}

func newSkipList() *skipList {
	return &skipList{
		level:  1,
		header: &node{level: make([]nodeLevel, maxLevel)},
	}
}

func randomLevel() int {
	level := 1
	for rand.Float64() < levelP && level < maxLevel {
		level++
	}
	return level
}

func (sl *skipList) insert(p domain.Player) {
	var update [maxLevel]*node
	var rank [maxLevel]int
	x := sl.header

	for i := sl.level - 1; i >= 0; i-- {
		if i != sl.level-1 {
			rank[i] = rank[i+1]
		}
		for x.level[i].forward != nil && x.level[i].forward.player.RanksBefore(p) {
			rank[i] += x.level[i].span
			x = x.level[i].forward
		}
		update[i] = x
	}

	level := randomLevel()
	if level > sl.level {
		for i := sl.level; i < level; i++ {
			rank[i] = 0
			update[i] = sl.header
			update[i].level[i].span = sl.length
		}
		sl.level = level
	}

	x = &node{player: p, level: make([]nodeLevel, level)}
	for i := 0; i < level; i++ {
		x.level[i].forward = update[i].level[i].forward
		update[i].level[i].forward = x

		x.level[i].span = update[i].level[i].span - (rank[0] - rank[i])
		update[i].level[i].span = (rank[0] - rank[i]) + 1
	}

	// levels above the new node now skip one more element
	for i := level; i < sl.level; i++ {
		update[i].level[i].span++
	}

	sl.length++
}

// rank returns the 1-based position of p, descending with the same ordering
// insert uses, and false if p is not in the list.
func (sl *skipList) rank(p domain.Player) (int, bool) {
	rank := 0
	x := sl.header
	for i := sl.level - 1; i >= 0; i-- {
		for x.level[i].forward != nil && x.level[i].forward.player.RanksBefore(p) {
			rank += x.level[i].span
			x = x.level[i].forward
		}
	}

	x = x.level[0].forward
	if x != nil && x.player.MemberNo == p.MemberNo {
		return rank + 1, true
	}
	return 0, false
}

// rangeByRank returns players ranked start..end inclusive.
func (sl *skipList) rangeByRank(start, end int) []domain.Player {
	if start < 1 {
		start = 1
	}
	if end > sl.length {
		end = sl.length
	}
	if start > end {
		return nil
	}

	traversed := 0
	x := sl.header
	for i := sl.level - 1; i >= 0; i-- {
		for x.level[i].forward != nil && traversed+x.level[i].span < start {
			traversed += x.level[i].span
			x = x.level[i].forward
		}
	}

	out := make([]domain.Player, 0, end-start+1)
	x = x.level[0].forward
	for r := start; x != nil && r <= end; r++ {
		out = append(out, x.player)
		x = x.level[0].forward
	}
	return out
}
