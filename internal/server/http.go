package server

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"ranking-server/internal/config"
	"ranking-server/internal/constants"
	"ranking-server/internal/domain"
	"ranking-server/internal/service"
	"strconv"

	"github.com/rs/zerolog"
)

// RankingHandler serves the JSON API used by the game client.
type RankingHandler struct {
	svc *service.RankingService
	cfg *config.Config
}

func NewRankingHandler(svc *service.RankingService, cfg *config.Config) *RankingHandler {
	return &RankingHandler{svc: svc, cfg: cfg}
}

func (h *RankingHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /member", h.CheckNickname)
	mux.HandleFunc("POST /rank", h.RegisterRanking)
	mux.HandleFunc("GET /rank", h.FetchRankings)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
}

type valueResponse struct {
	Value any `json:"value"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type checkNicknameRequest struct {
	Nickname string `json:"nickname"`
}

type memberBody struct {
	MemberNo int64 `json:"member_no"`
}

type checkNicknameBody struct {
	Duplicated bool        `json:"duplicated"`
	Member     *memberBody `json:"member"`
}

// pointers tell a missing field apart from a zero value
type registerRankingRequest struct {
	MemberNo *int64   `json:"member_no"`
	Nickname *string  `json:"nickname"`
	Score    *float64 `json:"score"`
}

type rankEntryBody struct {
	Nickname string `json:"nickname"`
	Score    int64  `json:"score"`
}

type myRankBody struct {
	Rank     int    `json:"rank"`
	Nickname string `json:"nickname"`
	Score    int64  `json:"score"`
}

type rankingsBody struct {
	TopRank []rankEntryBody `json:"top_rank"`
	MyRank  *myRankBody     `json:"my_rank"`
}

func (h *RankingHandler) CheckNickname(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	var req checkNicknameRequest
	if err := decodeBody(w, r, &req); err != nil {
		logger.Warn().Err(err).Msg("invalid nickname check body")
		writeError(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}

	check, err := h.svc.CheckNickname(r.Context(), req.Nickname)
	if err != nil {
		writeServiceError(w, r, "nickname check failed", err)
		return
	}

	body := checkNicknameBody{Duplicated: check.Duplicated}
	if !check.Duplicated {
		body.Member = &memberBody{MemberNo: check.MemberNo}
	}
	writeJSON(w, http.StatusOK, valueResponse{Value: body})
}

func (h *RankingHandler) RegisterRanking(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	var req registerRankingRequest
	if err := decodeBody(w, r, &req); err != nil {
		logger.Warn().Err(err).Msg("invalid ranking registration body")
		writeError(w, http.StatusBadRequest, "member_no must be an integer, nickname a string and score a number")
		return
	}

	if req.MemberNo == nil || *req.MemberNo == 0 || req.Nickname == nil || *req.Nickname == "" || req.Score == nil {
		logger.Warn().Msg("invalid ranking registration parameters")
		writeError(w, http.StatusBadRequest, "missing required parameters (member_no, nickname, score)")
		return
	}
	if *req.Score < 0 || *req.Score != math.Trunc(*req.Score) || *req.Score >= math.MaxInt64 {
		logger.Warn().Float64("score", *req.Score).Msg("invalid score value")
		writeError(w, http.StatusBadRequest, "score must be a whole number of zero or more")
		return
	}

	logger.Info().
		Int64("member_no", *req.MemberNo).
		Str("nickname", *req.Nickname).
		Float64("score", *req.Score).
		Msg("registering player ranking")

	if _, err := h.svc.Register(r.Context(), *req.MemberNo, *req.Nickname, int64(*req.Score)); err != nil {
		writeServiceError(w, r, "ranking registration failed", err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true, Message: "ranking registered"})
}

func (h *RankingHandler) FetchRankings(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())
	query := r.URL.Query()

	var memberNo *int64
	if raw := query.Get("member_no"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			logger.Warn().Str("member_no", raw).Msg("invalid member_no parameter")
			writeError(w, http.StatusBadRequest, "member_no must be an integer")
			return
		}
		memberNo = &n
	}

	topN := h.cfg.DefaultTopRankSize
	if raw := query.Get("top_rank_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > constants.MaxTopRankSize {
			logger.Warn().Str("top_rank_size", raw).Msg("invalid top_rank_size parameter")
			writeError(w, http.StatusBadRequest, "top_rank_size must be a number between 1 and 100")
			return
		}
		topN = n
	}

	rankings, err := h.svc.Query(r.Context(), memberNo, topN)
	if err != nil {
		writeServiceError(w, r, "fetching rankings failed", err)
		return
	}

	logger.Info().
		Int("top_rank_size", topN).
		Int("result_count", len(rankings.TopRank)).
		Bool("has_user_rank", rankings.MyRank != nil).
		Msg("rankings fetched")

	writeJSON(w, http.StatusOK, valueResponse{Value: toRankingsBody(rankings)})
}

func (h *RankingHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func toRankingsBody(r *domain.Rankings) rankingsBody {
	body := rankingsBody{TopRank: make([]rankEntryBody, len(r.TopRank))}
	for i, e := range r.TopRank {
		body.TopRank[i] = rankEntryBody{Nickname: e.Nickname, Score: e.Score}
	}
	if r.MyRank != nil {
		body.MyRank = &myRankBody{Rank: r.MyRank.Rank, Nickname: r.MyRank.Nickname, Score: r.MyRank.Score}
	}
	return body
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxRequestBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// writeServiceError maps engine errors onto status codes. Store failures are
// hidden behind a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	logger := zerolog.Ctx(r.Context())

	switch {
	case errors.Is(err, service.ErrInvalidInput):
		logger.Warn().Err(err).Msg(msg)
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrDuplicateNickname):
		logger.Warn().Err(err).Str("error_type", "duplicate_nickname").Msg(msg)
		writeError(w, http.StatusConflict, "nickname already registered")
	case errors.Is(err, service.ErrDuplicateMember):
		logger.Warn().Err(err).Str("error_type", "duplicate_member").Msg(msg)
		writeError(w, http.StatusConflict, "member number already registered")
	default:
		logger.Error().Err(err).Msg(msg)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
