package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"ranking-server/internal/domain"
	"ranking-server/internal/kv"

	"github.com/rs/zerolog"
)

// Index prefixes. Every player is written under all three.
const (
	prefixPlayers  = "players"  // (nickname)
	prefixMembers  = "members"  // (member_no)
	prefixRankings = "rankings" // (-score, timestamp, member_no)
)

var (
	ErrNotFound      = errors.New("player not found")
	ErrNicknameTaken = errors.New("nickname already registered")
	ErrMemberTaken   = errors.New("member already registered")
)

type RankingRepository struct {
	store  kv.Store
	logger zerolog.Logger
}

func NewRankingRepository(store kv.Store, logger zerolog.Logger) *RankingRepository {
	return &RankingRepository{
		store:  store,
		logger: logger,
	}
}

func nicknameKey(nickname string) kv.Key {
	return kv.Key{prefixPlayers, nickname}
}

func memberKey(memberNo int64) kv.Key {
	return kv.Key{prefixMembers, memberNo}
}

// Negating the score makes ascending key order the leaderboard order.
func rankKey(p domain.Player) kv.Key {
	return kv.Key{prefixRankings, -p.Score, p.Timestamp, p.MemberNo}
}

// Create writes all three index entries in one commit, provided neither the
// nickname nor the member number is registered yet.
func (r *RankingRepository) Create(ctx context.Context, player domain.Player) error {
	value, err := json.Marshal(player)
	if err != nil {
		return fmt.Errorf("failed to encode player: %w", err)
	}

	op := kv.NewAtomic().
		CheckAbsent(nicknameKey(player.Nickname), memberKey(player.MemberNo)).
		Set(nicknameKey(player.Nickname), value).
		Set(memberKey(player.MemberNo), value).
		Set(rankKey(player), value)

	err = r.store.Commit(ctx, op)
	var checkErr *kv.CheckError
	if errors.As(err, &checkErr) {
		if len(checkErr.Key) > 0 && checkErr.Key[0] == prefixMembers {
			return ErrMemberTaken
		}
		return ErrNicknameTaken
	}
	if err != nil {
		r.logger.Error().Err(err).Int64("member_no", player.MemberNo).Msg("failed to create player")
		return err
	}

	r.logger.Debug().
		Int64("member_no", player.MemberNo).
		Str("nickname", player.Nickname).
		Int64("score", player.Score).
		Msg("player indexes written")
	return nil
}

func (r *RankingRepository) GetByNickname(ctx context.Context, nickname string) (*domain.Player, error) {
	return r.get(ctx, nicknameKey(nickname))
}

func (r *RankingRepository) GetByMember(ctx context.Context, memberNo int64) (*domain.Player, error) {
	return r.get(ctx, memberKey(memberNo))
}

func (r *RankingRepository) get(ctx context.Context, key kv.Key) (*domain.Player, error) {
	value, err := r.store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodePlayer(value)
}

// Top returns the first n players of the leaderboard.
func (r *RankingRepository) Top(ctx context.Context, n int) ([]domain.Player, error) {
	if n <= 0 {
		return []domain.Player{}, nil
	}
	players := make([]domain.Player, 0, n)
	for entry, err := range r.store.Scan(ctx, kv.Key{prefixRankings}, n) {
		if err != nil {
			return nil, err
		}
		player, err := decodePlayer(entry.Value)
		if err != nil {
			return nil, err
		}
		players = append(players, *player)
	}
	return players, nil
}

// RankOf walks the leaderboard from the top, counting players that sort ahead
// of target until target itself is reached. Cost is linear in the number of
// players.
func (r *RankingRepository) RankOf(ctx context.Context, target domain.Player) (int, error) {
	rank := 1
	for entry, err := range r.store.Scan(ctx, kv.Key{prefixRankings}, 0) {
		if err != nil {
			return 0, err
		}
		other, err := decodePlayer(entry.Value)
		if err != nil {
			return 0, err
		}
		if other.MemberNo == target.MemberNo {
			break
		}
		if other.RanksBefore(target) {
			rank++
		}
	}
	return rank, nil
}

// ForEach visits every player in leaderboard order.
func (r *RankingRepository) ForEach(ctx context.Context, fn func(domain.Player) error) error {
	for entry, err := range r.store.Scan(ctx, kv.Key{prefixRankings}, 0) {
		if err != nil {
			return err
		}
		player, err := decodePlayer(entry.Value)
		if err != nil {
			return err
		}
		if err := fn(*player); err != nil {
			return err
		}
	}
	return nil
}

func decodePlayer(value []byte) (*domain.Player, error) {
	var p domain.Player
	if err := json.Unmarshal(value, &p); err != nil {
		return nil, fmt.Errorf("failed to decode player: %w", err)
	}
	return &p, nil
}
