// Package sdk is a typed Go client for the tourneykit HTTP and WebSocket API.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"tourneykit/core"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the tourneykit HTTP + WebSocket API.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithAuthToken adds an Authorization: Bearer token header to all requests (HTTP + WS).
func WithAuthToken(token string) Option {
	return func(c *Client) {
		if strings.TrimSpace(token) != "" {
			c.headers.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithAPIKey adds an X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if strings.TrimSpace(key) != "" {
			c.headers.Set("X-API-Key", key)
		}
	}
}

// WithActorToken identifies the caller on identity and role routes.
func WithActorToken(token string) Option {
	return func(c *Client) {
		if strings.TrimSpace(token) != "" {
			c.headers.Set("X-Actor-Token", token)
		}
	}
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

var statPaths = map[core.Stat]string{
	core.StatTournamentsJoined:  "joined",
	core.StatTournamentsWon:     "won",
	core.StatTournamentsCreated: "created",
}

// GetProfile fetches a user's stored profile and derived badges.
func (c *Client) GetProfile(ctx context.Context, userID string) (Profile, error) {
	var p Profile
	path, err := userPath(userID, "")
	if err != nil {
		return p, err
	}
	err = c.do(ctx, http.MethodGet, path, nil, nil, &p)
	return p, err
}

// Badges lists the server's badge catalog.
func (c *Client) Badges(ctx context.Context) ([]core.BadgeInfo, error) {
	var body struct {
		Badges []core.BadgeInfo `json:"badges"`
	}
	err := c.do(ctx, http.MethodGet, "/badges", nil, nil, &body)
	return body.Badges, err
}

// RegisterEmail records the identity email of a user. The actor must be
// that user or an admin.
func (c *Client) RegisterEmail(ctx context.Context, userID, email string) error {
	path, err := userPath(userID, "/identity")
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, nil, map[string]string{"email": email}, nil)
}

// RecordStat increments a tournament counter and returns the new total plus
// any badges it unlocked.
func (c *Client) RecordStat(ctx context.Context, userID string, stat core.Stat, delta int64) (Update, error) {
	var up Update
	kind, ok := statPaths[stat]
	if !ok {
		return up, fmt.Errorf("unknown stat: %s", stat)
	}
	path, err := userPath(userID, "/tournaments/"+kind)
	if err != nil {
		return up, err
	}
	q := url.Values{"delta": {strconv.FormatInt(delta, 10)}}
	err = c.do(ctx, http.MethodPost, path, q, nil, &up)
	return up, err
}

// RecordEarnings adds amount to the user's total earnings.
func (c *Client) RecordEarnings(ctx context.Context, userID string, amount float64) (Update, error) {
	var up Update
	path, err := userPath(userID, "/earnings")
	if err != nil {
		return up, err
	}
	q := url.Values{"amount": {strconv.FormatFloat(amount, 'f', -1, 64)}}
	err = c.do(ctx, http.MethodPost, path, q, nil, &up)
	return up, err
}

// GrantBadge grants a badge outside of stat derivation.
func (c *Client) GrantBadge(ctx context.Context, userID, badge string) error {
	path, err := userPath(userID, "/badges/"+url.PathEscape(badge))
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, nil, nil, nil)
}

// Derive evaluates a stat record on the server without storing anything.
func (c *Client) Derive(ctx context.Context, stats core.StatRecord) (Evaluation, error) {
	var ev Evaluation
	err := c.do(ctx, http.MethodPost, "/badges/derive", nil, stats, &ev)
	return ev, err
}

// CanAssignRole asks whether the actor token's user may give role to
// userID. The answer is advisory.
func (c *Client) CanAssignRole(ctx context.Context, userID string, role core.Role) (Decision, error) {
	var d Decision
	path, err := userPath(userID, "/role/assignable")
	if err != nil {
		return d, err
	}
	err = c.do(ctx, http.MethodGet, path, url.Values{"role": {string(role)}}, nil, &d)
	return d, err
}

// AssignRole changes userID's role. A denial returns an *APIError with
// status 403 alongside the decision.
func (c *Client) AssignRole(ctx context.Context, userID string, role core.Role) (Decision, error) {
	var body struct {
		Decision Decision `json:"decision"`
	}
	path, err := userPath(userID, "/role")
	if err != nil {
		return Decision{}, err
	}
	err = c.do(ctx, http.MethodPut, path, url.Values{"role": {string(role)}}, nil, &body)
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if d, ok := apiErr.Decision(); ok {
			return d, err
		}
	}
	return body.Decision, err
}

// Leaderboard returns the top entries of a metric board. A limit of 0 uses
// the server default.
func (c *Client) Leaderboard(ctx context.Context, metric string, limit int) ([]Entry, error) {
	var body struct {
		Entries []Entry `json:"entries"`
	}
	var q url.Values
	if limit > 0 {
		q = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	err := c.do(ctx, http.MethodGet, "/leaderboards/"+url.PathEscape(metric), q, nil, &body)
	return body.Entries, err
}

// Health calls /healthz and returns status + storage check.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var hs HealthStatus
	err := c.do(ctx, http.MethodGet, "/healthz", nil, nil, &hs)
	return hs, err
}

// SubscribeEvents connects to the WebSocket stream and emits core.Event values,
// optionally limited to the given users.
// The returned channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context, users ...string) (<-chan core.Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	target := c.wsURL
	if len(users) > 0 {
		q := url.Values{"user": users}
		target += "?" + q.Encode()
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, target, c.headers)
	if err != nil {
		return nil, err
	}

	out := make(chan core.Event, 32)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			var evt core.Event
			if err := conn.ReadJSON(&evt); err != nil {
				return
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			default:
				// drop if consumer is slow
			}
		}
	}()
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, out)
}

func userPath(userID, suffix string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", ErrEmptyUserID
	}
	return "/users/" + url.PathEscape(userID) + suffix, nil
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		// leave as-is for custom schemes
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
