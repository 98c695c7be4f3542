package service

import (
	"context"
	"errors"
	"fmt"
	"ranking-server/internal/config"
	"ranking-server/internal/constants"
	"ranking-server/internal/domain"
	"ranking-server/internal/metrics"
	"ranking-server/internal/rankindex"
	"ranking-server/internal/repository"
	"strconv"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrDuplicateNickname = errors.New("nickname already registered")
	ErrDuplicateMember   = errors.New("member number already registered")
	ErrStoreUnavailable  = errors.New("store unavailable")
)

type RankingService struct {
	repo    *repository.RankingRepository
	index   *rankindex.Index // nil with the scan strategy
	cfg     *config.Config
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

// NewRankingService builds the engine. With the skiplist strategy the rank
// index is loaded from the store before the service is handed out.
func NewRankingService(repo *repository.RankingRepository, cfg *config.Config, m *metrics.Metrics, logger zerolog.Logger) (*RankingService, error) {
	s := &RankingService{
		repo:    repo,
		cfg:     cfg,
		metrics: m,
		logger:  logger.With().Str("component", "ranking").Logger(),
		now:     time.Now,
	}

	if cfg.RankStrategy == constants.RankStrategySkipList {
		if err := s.loadIndex(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *RankingService) loadIndex() error {
	ctx, cancel := context.WithTimeout(context.Background(), constants.RequestTimeout)
	defer cancel()

	start := time.Now()
	index := rankindex.New()
	err := s.repo.ForEach(ctx, func(p domain.Player) error {
		index.Insert(p)
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load rank index")
		return fmt.Errorf("failed to load rank index: %w", err)
	}

	s.index = index
	s.metrics.IndexedPlayers.Set(float64(index.Len()))
	s.logger.Info().
		Int("players", index.Len()).
		Dur("took", time.Since(start)).
		Msg("rank index loaded")
	return nil
}

// Register stores a new player under a unique nickname and member number.
// The duplicate checks and all index writes happen in one store commit.
func (s *RankingService) Register(ctx context.Context, memberNo int64, nickname string, score int64) (*domain.Player, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	nickname = strings.TrimSpace(nickname)
	if err := validateRegistration(memberNo, nickname, score); err != nil {
		s.metrics.Registrations.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return nil, err
	}

	player := domain.Player{
		MemberNo:  memberNo,
		Nickname:  nickname,
		Score:     score,
		Timestamp: s.now().UnixMilli(),
	}

	err := s.repo.Create(ctx, player)
	switch {
	case errors.Is(err, repository.ErrNicknameTaken):
		s.metrics.Registrations.WithLabelValues(metrics.OutcomeDuplicate).Inc()
		s.logger.Info().Str("nickname", nickname).Msg("nickname already registered")
		return nil, fmt.Errorf("%w: %q", ErrDuplicateNickname, nickname)
	case errors.Is(err, repository.ErrMemberTaken):
		s.metrics.Registrations.WithLabelValues(metrics.OutcomeDuplicate).Inc()
		s.logger.Info().Int64("member_no", memberNo).Msg("member number already registered")
		return nil, fmt.Errorf("%w: %d", ErrDuplicateMember, memberNo)
	case err != nil:
		s.metrics.Registrations.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if s.index != nil && s.index.Insert(player) {
		s.metrics.IndexedPlayers.Inc()
	}
	s.metrics.Registrations.WithLabelValues(metrics.OutcomeOK).Inc()

	s.logger.Info().
		Int64("member_no", player.MemberNo).
		Str("nickname", player.Nickname).
		Int64("score", player.Score).
		Msg("player registered")
	return &player, nil
}

func validateRegistration(memberNo int64, nickname string, score int64) error {
	if memberNo <= 0 {
		return fmt.Errorf("%w: member_no must be a positive integer", ErrInvalidInput)
	}
	if nickname == "" {
		return fmt.Errorf("%w: nickname is required", ErrInvalidInput)
	}
	if score < 0 {
		return fmt.Errorf("%w: score must be zero or greater", ErrInvalidInput)
	}
	return nil
}

// Query returns the top topN players and, when memberNo is given and known,
// that member's rank. A topN of zero selects the configured default.
func (s *RankingService) Query(ctx context.Context, memberNo *int64, topN int) (*domain.Rankings, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if topN == 0 {
		topN = s.cfg.DefaultTopRankSize
	}
	if topN < 1 || topN > constants.MaxTopRankSize {
		return nil, fmt.Errorf("%w: top rank size must be between 1 and %d", ErrInvalidInput, constants.MaxTopRankSize)
	}

	result := &domain.Rankings{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		players, err := s.repo.Top(gctx, topN)
		if err != nil {
			return err
		}
		result.TopRank = make([]domain.RankEntry, len(players))
		for i, p := range players {
			result.TopRank[i] = domain.RankEntry{Nickname: p.Nickname, Score: p.Score}
		}
		return nil
	})

	if memberNo != nil {
		g.Go(func() error {
			myRank, err := s.myRank(gctx, *memberNo)
			if err != nil {
				return err
			}
			result.MyRank = myRank
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Error().Err(err).Int("top_n", topN).Msg("failed to query rankings")
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	s.logger.Debug().
		Int("top_n", topN).
		Int("result_count", len(result.TopRank)).
		Bool("has_my_rank", result.MyRank != nil).
		Msg("rankings queried")
	return result, nil
}

func (s *RankingService) myRank(ctx context.Context, memberNo int64) (*domain.MyRank, error) {
	player, err := s.repo.GetByMember(ctx, memberNo)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if s.index != nil {
		if rank, ok := s.index.Rank(memberNo); ok {
			s.metrics.RankQueries.WithLabelValues(constants.RankStrategySkipList).Inc()
			return &domain.MyRank{Rank: rank, Nickname: player.Nickname, Score: player.Score}, nil
		}
		// written by another process after the index was loaded
		s.logger.Warn().Int64("member_no", memberNo).Msg("member missing from rank index, scanning store")
	}

	rank, err := s.repo.RankOf(ctx, *player)
	if err != nil {
		return nil, err
	}
	s.metrics.RankQueries.WithLabelValues(constants.RankStrategyScan).Inc()
	return &domain.MyRank{Rank: rank, Nickname: player.Nickname, Score: player.Score}, nil
}

// CheckNickname reports whether nickname is taken and, if it is free, hands
// out an unused member number for the following registration.
func (s *RankingService) CheckNickname(ctx context.Context, nickname string) (*domain.NicknameCheck, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return nil, fmt.Errorf("%w: nickname is required", ErrInvalidInput)
	}

	_, err := s.repo.GetByNickname(ctx, nickname)
	if err == nil {
		return &domain.NicknameCheck{Duplicated: true}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	memberNo, err := s.allocateMemberNo(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Str("nickname", nickname).Int64("member_no", memberNo).Msg("member number allocated")
	return &domain.NicknameCheck{MemberNo: memberNo}, nil
}

const (
	leadingDigits = "123456789"
	digits        = "0123456789"
)

func (s *RankingService) allocateMemberNo(ctx context.Context) (int64, error) {
	for attempt := 0; attempt < constants.MemberNoAttempts; attempt++ {
		memberNo, err := randomMemberNo()
		if err != nil {
			return 0, err
		}

		_, err = s.repo.GetByMember(ctx, memberNo)
		if errors.Is(err, repository.ErrNotFound) {
			return memberNo, nil
		}
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		s.logger.Debug().Int64("member_no", memberNo).Int("attempt", attempt).Msg("member number collision")
	}
	return 0, fmt.Errorf("%w: no free member number after %d attempts", ErrStoreUnavailable, constants.MemberNoAttempts)
}

func randomMemberNo() (int64, error) {
	head, err := gonanoid.Generate(leadingDigits, 1)
	if err != nil {
		return 0, fmt.Errorf("failed to generate member number: %w", err)
	}
	tail, err := gonanoid.Generate(digits, len(strconv.Itoa(constants.MemberNoMax))-1)
	if err != nil {
		return 0, fmt.Errorf("failed to generate member number: %w", err)
	}
	return strconv.ParseInt(head+tail, 10, 64)
}
