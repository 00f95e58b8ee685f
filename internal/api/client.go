// Package api is the HTTP client for the codive backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/DoyleJ11/codive/pkg/types"
)

const GuestCookie = "guest_id"

type Client struct {
	base        *url.URL
	http        *http.Client
	log         *zap.Logger
	executePath string
}

type Option func(*Client)

// WithHTTPClient replaces the underlying client. Its Jar is kept if set.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTransport wraps the current transport, e.g. for metrics.
func WithTransport(wrap func(http.RoundTripper) http.RoundTripper) Option {
	return func(c *Client) {
		rt := c.http.Transport
		if rt == nil {
			rt = http.DefaultTransport
		}
		c.http.Transport = wrap(rt)
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

func WithExecutePath(p string) Option {
	return func(c *Client) {
		if p != "" {
			c.executePath = p
		}
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend url must be http(s), got %q", baseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		base:        u,
		http:        &http.Client{Jar: jar},
		log:         zap.NewNop(),
		executePath: "/execute-TimeAndResult",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		c.http.Jar = jar
	}
	return c, nil
}

func (c *Client) url(path string) string {
	return c.base.String() + path
}

// RoomSocketURL is the waiting-room push connection for code.
func (c *Client) RoomSocketURL(code string) string {
	u := *c.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/" + url.PathEscape(code)
	return u.String()
}

// Jar is the cookie jar shared by every request, for other transports such as
// the room socket.
func (c *Client) Jar() http.CookieJar { return c.http.Jar }

// GuestIDCookie returns the guest_id the backend last set, if any.
func (c *Client) GuestIDCookie() string {
	for _, ck := range c.http.Jar.Cookies(c.base) {
		if ck.Name == GuestCookie {
			return ck.Value
		}
	}
	return ""
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any, statuses statusMap) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("backend request failed", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%s: %w: %w", op, ErrServer, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		serr := &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(msg)), kind: statuses.kind(resp.StatusCode)}
		c.log.Debug("backend rejected request", zap.String("op", op), zap.Int("status", resp.StatusCode))
		return serr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("%s: decode: %w: %w", op, ErrServer, err)
	}
	return nil
}

func (c *Client) CreateRoom(ctx context.Context, req types.RoomCreateRequest) error {
	return c.do(ctx, "create room", http.MethodPost, "/api/room_create", req, nil, createStatuses)
}

// EnterRoom joins a room. The guest id comes from the guest_id cookie, falling
// back to the response body.
func (c *Client) EnterRoom(ctx context.Context, req types.RoomEnterRequest) (types.RoomEnterResponse, error) {
	var resp types.RoomEnterResponse
	if err := c.do(ctx, "enter room", http.MethodPost, "/api/room/enter", req, &resp, enterStatuses); err != nil {
		return types.RoomEnterResponse{}, err
	}
	if id := c.GuestIDCookie(); id != "" {
		resp.GuestID = id
	}
	return resp, nil
}

func (c *Client) UserStats(ctx context.Context, code string) (types.UserStats, error) {
	var stats types.UserStats
	err := c.do(ctx, "user stats", http.MethodGet, "/api/room/"+url.PathEscape(code)+"/user_stats", nil, &stats, nil)
	return stats, err
}

func (c *Client) Guests(ctx context.Context, code string) ([]types.Guest, error) {
	var guests []types.Guest
	err := c.do(ctx, "list guests", http.MethodGet, "/api/room/"+url.PathEscape(code)+"/guests", nil, &guests, nil)
	return guests, err
}

func (c *Client) GuestCount(ctx context.Context, code string) (int, error) {
	var n types.GuestCount
	err := c.do(ctx, "guest count", http.MethodGet, "/api/room/"+url.PathEscape(code)+"/guestcount", nil, &n, nil)
	return n.Count, err
}

func (c *Client) SubmitAnswer(ctx context.Context, a types.Answer) error {
	return c.do(ctx, "submit answer", http.MethodPost, "/api/answers", a, nil, nil)
}

// Answers returns every stored submission; callers filter by user.
func (c *Client) Answers(ctx context.Context) ([]types.Answer, error) {
	var answers []types.Answer
	err := c.do(ctx, "list answers", http.MethodGet, "/api/answers/", nil, &answers, nil)
	return answers, err
}

func (c *Client) FinishUser(ctx context.Context, userID string) error {
	return c.do(ctx, "finish user", http.MethodPatch, "/api/user/finish/"+url.PathEscape(userID), nil, nil, nil)
}

func (c *Client) GenerateHint(ctx context.Context, req types.HintRequest) (string, error) {
	var resp types.HintResponse
	if err := c.do(ctx, "generate hint", http.MethodPost, "/generate-hint/", req, &resp, nil); err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (c *Client) GenerateAnalysis(ctx context.Context, req types.AnalysisRequest) (Analysis, error) {
	var resp types.AnalysisResponse
	if err := c.do(ctx, "generate analysis", http.MethodPost, "/generate-text/", req, &resp, nil); err != nil {
		return Analysis{}, err
	}
	return DecodeAnalysis(resp.GeneratedText)
}

func (c *Client) ExecuteCode(ctx context.Context, req types.ExecuteRequest) (types.ExecuteResponse, error) {
	var resp types.ExecuteResponse
	err := c.do(ctx, "execute code", http.MethodPost, c.executePath, req, &resp, nil)
	return resp, err
}
