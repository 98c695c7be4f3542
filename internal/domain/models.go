package domain

// Player is stored as JSON under all three ranking indexes.
type Player struct {
	MemberNo  int64  `json:"member_no"`
	Nickname  string `json:"nickname"`
	Score     int64  `json:"score"`
	Timestamp int64  `json:"timestamp"` // unix ms
}

// RanksBefore reports whether p sorts strictly ahead of o on the leaderboard:
// higher score first, then earlier registration, then lower member number.
func (p Player) RanksBefore(o Player) bool {
	if p.Score != o.Score {
		return p.Score > o.Score
	}
	if p.Timestamp != o.Timestamp {
		return p.Timestamp < o.Timestamp
	}
	return p.MemberNo < o.MemberNo
}

type RankEntry struct {
	Nickname string
	Score    int64
}

type MyRank struct {
	Rank     int
	Nickname string
	Score    int64
}

type Rankings struct {
	TopRank []RankEntry
	MyRank  *MyRank // nil when no member was asked for or it is unknown
}

type NicknameCheck struct {
	Duplicated bool
	MemberNo   int64 // allocated only when Duplicated is false
}
