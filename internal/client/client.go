// Package client talks to a running ranking server over its JSON API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"ranking-server/internal/constants"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

type Client struct {
	baseURL string
	client  *fasthttp.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         constants.ClientTimeout,
			WriteTimeout:        constants.ClientTimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
}

// APIError is a non-200 answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
}

// IsConflict reports whether err is the server rejecting a duplicate.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == fasthttp.StatusConflict
}

type NicknameCheck struct {
	Duplicated bool `json:"duplicated"`
	Member     *struct {
		MemberNo int64 `json:"member_no"`
	} `json:"member"`
}

type RankEntry struct {
	Nickname string `json:"nickname"`
	Score    int64  `json:"score"`
}

type MyRank struct {
	Rank     int    `json:"rank"`
	Nickname string `json:"nickname"`
	Score    int64  `json:"score"`
}

type Rankings struct {
	TopRank []RankEntry `json:"top_rank"`
	MyRank  *MyRank     `json:"my_rank"`
}

type valueEnvelope[T any] struct {
	Value T `json:"value"`
}

type registerResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (c *Client) CheckNickname(ctx context.Context, nickname string) (*NicknameCheck, error) {
	body, err := json.Marshal(map[string]string{"nickname": nickname})
	if err != nil {
		return nil, err
	}
	resp, err := doRequest[valueEnvelope[NicknameCheck]](ctx, c, fasthttp.MethodPost, c.baseURL+"/member", body)
	if err != nil {
		return nil, err
	}
	return &resp.Value, nil
}

func (c *Client) Register(ctx context.Context, memberNo int64, nickname string, score int64) error {
	body, err := json.Marshal(map[string]any{
		"member_no": memberNo,
		"nickname":  nickname,
		"score":     score,
	})
	if err != nil {
		return err
	}
	_, err = doRequest[registerResult](ctx, c, fasthttp.MethodPost, c.baseURL+"/rank", body)
	return err
}

// Rankings fetches the leaderboard. memberNo may be nil; a topN of zero
// leaves the size to the server default.
func (c *Client) Rankings(ctx context.Context, memberNo *int64, topN int) (*Rankings, error) {
	q := url.Values{}
	if memberNo != nil {
		q.Set("member_no", strconv.FormatInt(*memberNo, 10))
	}
	if topN > 0 {
		q.Set("top_rank_size", strconv.Itoa(topN))
	}

	target := c.baseURL + "/rank"
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	resp, err := doRequest[valueEnvelope[Rankings]](ctx, c, fasthttp.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	return &resp.Value, nil
}

func doRequest[T any](ctx context.Context, client *Client, method, url string, body []byte) (*T, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(method)
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if ok {
		if err := client.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, err
		}
	} else {
		if err := client.client.Do(req, resp); err != nil {
			return nil, err
		}
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(resp.Body(), &apiErr); err != nil || apiErr.Error == "" {
			apiErr.Error = string(resp.Body())
		}
		return nil, &APIError{StatusCode: resp.StatusCode(), Message: apiErr.Error}
	}

	var result T
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}
