// Package engineclient talks to the remote move-computation service.
package engineclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/checkmate-ai/internal/domain"
)

var ErrMalformedResponse = errors.New("malformed engine response")

// HeaderProvider allows injecting per-request headers
type HeaderProvider func() map[string]string

type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider
	logger  *zap.Logger

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.defaultTimeout = d
		}
	}
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.http.MaxConnsPerHost = n
		}
	}
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDial replaces the transport dialer (in-memory listeners in tests).
func WithDial(d fasthttp.DialFunc) Option {
	return func(c *Client) { c.http.Dial = d }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		logger:         zap.NewNop(),
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health probes GET /health; any 2xx means ready.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, call{method: fasthttp.MethodGet, path: "/health"})
}

// Opponents fetches the difficulty roster sorted by level.
func (c *Client) Opponents(ctx context.Context) ([]domain.Opponent, error) {
	var raw map[string]OpponentInfo
	if err := c.do(ctx, call{method: fasthttp.MethodGet, path: "/opponents", out: &raw, retry: true}); err != nil {
		return nil, err
	}
	out := make([]domain.Opponent, 0, len(raw))
	for key, info := range raw {
		level, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("%w: opponent key %q", ErrMalformedResponse, key)
		}
		out = append(out, domain.Opponent{
			Level:         level,
			Name:          info.Name,
			Title:         info.Title,
			Depth:         info.Depth,
			BlunderChance: info.BlunderChance,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out, nil
}

// GetMove asks the service to play the side to move in fen. Never retried:
// a duplicate request could be answered after the caller moved on.
// A deadline on ctx replaces the client timeout, so deep searches can outlast it.
func (c *Client) GetMove(ctx context.Context, fen string, level int) (*MoveResponse, error) {
	var resp MoveResponse
	req := MoveRequest{FEN: fen, Level: level}
	if err := c.do(ctx, call{method: fasthttp.MethodPost, path: "/get-move", in: req, out: &resp, ctxDeadline: true}); err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.Move) == "" {
		return nil, fmt.Errorf("%w: empty move", ErrMalformedResponse)
	}
	return &resp, nil
}

// ValidateMove calls POST /validate-move with fen and move as query parameters.
func (c *Client) ValidateMove(ctx context.Context, fen, move string) (*ValidateResponse, error) {
	var resp ValidateResponse
	query := [][2]string{{"fen", fen}, {"move", move}}
	if err := c.do(ctx, call{method: fasthttp.MethodPost, path: "/validate-move", query: query, out: &resp}); err != nil {
		return nil, err
	}
	return &resp, nil
}

type call struct {
	method string
	path   string
	query  [][2]string
	in     any
	out    any
	retry  bool

	// ctxDeadline uses the context deadline as is instead of capping it at defaultTimeout.
	ctxDeadline bool
}

func (c *Client) do(ctx context.Context, cl call) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(cl.method)
	req.SetRequestURI(c.baseURL + cl.path)
	for _, kv := range cl.query {
		req.URI().QueryArgs().Add(kv[0], kv[1])
	}
	req.Header.Set(fasthttp.HeaderAccept, "application/json")

	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}

	if cl.in != nil {
		payload, err := json.Marshal(cl.in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(payload)
	}

	attempts := 1
	if cl.retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		started := time.Now()
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx, cl.ctxDeadline))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("request failed: %w", ctxErr)
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt == attempts {
				return lastErr
			}
			c.logger.Debug("engine request retry", zap.String("path", cl.path), zap.Int("attempt", attempt), zap.Error(err))
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		c.logger.Debug("engine request",
			zap.String("method", cl.method),
			zap.String("path", cl.path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(started)),
		)
		if status < 200 || status >= 300 {
			apiErr := newAPIError(status, resp.Body())
			if attempt == attempts || !apiErr.Temporary() {
				return apiErr
			}
			lastErr = apiErr
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		if cl.out != nil {
			if err := json.Unmarshal(resp.Body(), cl.out); err != nil {
				return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
			}
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (c *Client) computeDeadline(ctx context.Context, fromCtx bool) time.Time {
	dl, ok := ctx.Deadline()
	if ok && fromCtx {
		return dl
	}
	clientDL := time.Now().Add(c.defaultTimeout)
	if ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func (c *Client) sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base // 100ms, 200ms ...
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
