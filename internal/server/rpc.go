package server

import (
	"context"
	"errors"
	"net/http"
	"ranking-server/internal/service"

	"connectrpc.com/connect"
)

const RankingServiceName = "ranking.v1.RankingService"

const (
	CheckNicknameProcedure = "/" + RankingServiceName + "/CheckNickname"
	RegisterProcedure      = "/" + RankingServiceName + "/Register"
	GetRankingsProcedure   = "/" + RankingServiceName + "/GetRankings"
)

type CheckNicknameRequest struct {
	Nickname string `json:"nickname"`
}

type CheckNicknameResponse struct {
	Duplicated bool  `json:"duplicated"`
	MemberNo   int64 `json:"member_no,omitempty"`
}

type RegisterRequest struct {
	MemberNo int64  `json:"member_no"`
	Nickname string `json:"nickname"`
	Score    int64  `json:"score"`
}

type RegisterResponse struct {
	MemberNo  int64  `json:"member_no"`
	Nickname  string `json:"nickname"`
	Score     int64  `json:"score"`
	Timestamp int64  `json:"timestamp"`
}

type GetRankingsRequest struct {
	MemberNo    *int64 `json:"member_no,omitempty"`
	TopRankSize int    `json:"top_rank_size,omitempty"`
}

type GetRankingsResponse struct {
	TopRank []rankEntryBody `json:"top_rank"`
	MyRank  *myRankBody     `json:"my_rank"`
}

// RankingServer exposes the ranking engine over connect.
type RankingServer struct {
	svc *service.RankingService
}

func NewRankingServer(svc *service.RankingService) *RankingServer {
	return &RankingServer{svc: svc}
}

func (s *RankingServer) CheckNickname(ctx context.Context, req *connect.Request[CheckNicknameRequest]) (*connect.Response[CheckNicknameResponse], error) {
	check, err := s.svc.CheckNickname(ctx, req.Msg.Nickname)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&CheckNicknameResponse{
		Duplicated: check.Duplicated,
		MemberNo:   check.MemberNo,
	}), nil
}

func (s *RankingServer) Register(ctx context.Context, req *connect.Request[RegisterRequest]) (*connect.Response[RegisterResponse], error) {
	player, err := s.svc.Register(ctx, req.Msg.MemberNo, req.Msg.Nickname, req.Msg.Score)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&RegisterResponse{
		MemberNo:  player.MemberNo,
		Nickname:  player.Nickname,
		Score:     player.Score,
		Timestamp: player.Timestamp,
	}), nil
}

func (s *RankingServer) GetRankings(ctx context.Context, req *connect.Request[GetRankingsRequest]) (*connect.Response[GetRankingsResponse], error) {
	rankings, err := s.svc.Query(ctx, req.Msg.MemberNo, req.Msg.TopRankSize)
	if err != nil {
		return nil, toConnectError(err)
	}
	body := toRankingsBody(rankings)
	return connect.NewResponse(&GetRankingsResponse{
		TopRank: body.TopRank,
		MyRank:  body.MyRank,
	}), nil
}

func toConnectError(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, service.ErrDuplicateNickname), errors.Is(err, service.ErrDuplicateMember):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, errors.New("internal server error"))
	}
}

// NewRankingServiceHandler returns the path prefix and handler serving every
// RankingService procedure.
func NewRankingServiceHandler(srv *RankingServer, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(CheckNicknameProcedure, connect.NewUnaryHandler(CheckNicknameProcedure, srv.CheckNickname, opts...))
	mux.Handle(RegisterProcedure, connect.NewUnaryHandler(RegisterProcedure, srv.Register, opts...))
	mux.Handle(GetRankingsProcedure, connect.NewUnaryHandler(GetRankingsProcedure, srv.GetRankings, opts...))
	return "/" + RankingServiceName + "/", mux
}
