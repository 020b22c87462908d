// Package openlist implements the OpenList Client (spec section 4.5): an
// authenticated HTTP client to an OpenList-compatible list/fs API, handling
// token acquisition, pagination, and signed-URL downloads.
//
// Grounded on the teacher's internal/graph/client.go: the same shape of a
// single Do-style request executor wrapping retry, logging, and error
// classification, adapted from Microsoft Graph's bearer-OAuth2 model to
// OpenList's login-for-bearer-token model and rebuilt on
// github.com/sethvargo/go-retry instead of the teacher's hand-rolled
// backoff loop.
package openlist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

// Per spec section 4.5: connect 10s, read 60s (180s under slow-storage
// task context).
const (
	DefaultConnectTimeout   = 10 * time.Second
	DefaultReadTimeout      = 60 * time.Second
	SlowStorageReadTimeout  = 180 * time.Second
	defaultRetryAttempts    = 3
	retryBaseBackoff        = 100 * time.Millisecond
	retryMaxBackoff         = 5 * time.Second
	userAgent               = "cloudgather/0.1"
)

// Credentials supplies the username/password pair the client replays
// against the login endpoint. It is satisfied by *store.OpenListConnection
// without this package importing internal/store, keeping the dependency
// direction caller-to-client.
type Credentials interface {
	Username() string
	Password() (string, error)
}

// Client is an authenticated HTTP client for an OpenList-compatible
// server. One Client instance is bound to one Global Settings snapshot;
// callers construct a fresh one whenever OpenList connection settings
// change.
type Client struct {
	baseURL     string
	publicURL   string
	httpClient  *http.Client
	creds       Credentials
	retryCount  int
	logger      *slog.Logger

	mu    sync.Mutex
	token string
}

// Config bundles Client construction options.
type Config struct {
	BaseURL     string
	PublicURL   string
	Credentials Credentials
	RetryCount  int
	ReadTimeout time.Duration
	Logger      *slog.Logger
}

// NewClient builds a Client. If cfg.ReadTimeout is zero, DefaultReadTimeout
// is used; callers running under a slow-storage task context should pass
// SlowStorageReadTimeout explicitly.
func NewClient(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	readTimeout := cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = DefaultReadTimeout
	}

	retryCount := cfg.RetryCount
	if retryCount <= 0 {
		retryCount = defaultRetryAttempts
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		publicURL:  cfg.PublicURL,
		creds:      cfg.Credentials,
		retryCount: retryCount,
		logger:     logger,
		httpClient: &http.Client{
			Timeout: readTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: DefaultConnectTimeout,
				}).DialContext,
			},
		},
	}
}

// backoffPolicy builds the shared retry policy: exponential with jitter,
// capped duration, allowing at most attempts retries after the first
// try — doJSON passes totalAttempts-1, matching spec section 4.5's "3
// attempts with exponential backoff for idempotent reads; writes are
// attempted at most twice".
func backoffPolicy(attempts int) retry.Backoff {
	b := retry.NewExponential(retryBaseBackoff)
	b = retry.WithMaxRetries(uint64(attempts), b)
	b = retry.WithCappedDuration(retryMaxBackoff, b)
	b = retry.WithJitterPercent(20, b)

	return b
}

// doJSON executes one authenticated JSON request/response round trip,
// retrying on transient failure (every call is a POST) and re-logging in once on
// a 401. writeOp marks the call as a write (POST that mutates state);
// spec section 4.5 caps writes at two attempts instead of three.
func (c *Client) doJSON(ctx context.Context, op, path string, reqBody, respBody any, writeOp bool) error {
	// totalAttempts counts the first try plus retries; go-retry's
	// WithMaxRetries counts retries only, so subtract one.
	totalAttempts := c.retryCount
	if writeOp {
		totalAttempts = 2
	}

	maxRetries := totalAttempts - 1
	if maxRetries < 0 {
		maxRetries = 0
	}

	b := backoffPolicy(maxRetries)

	reloggedIn := false

	return retry.Do(ctx, b, func(ctx context.Context) error {
		var bodyReader io.Reader
		if reqBody != nil {
			encoded, err := json.Marshal(reqBody)
			if err != nil {
				return fmt.Errorf("openlist: encoding %s request: %w", op, err)
			}

			bodyReader = bytes.NewReader(encoded)
		}

		status, raw, err := c.rawRequest(ctx, http.MethodPost, path, bodyReader, true)
		if err != nil {
			c.logger.Warn("openlist request transport error", slog.String("op", op), slog.String("error", err.Error()))
			return retry.RetryableError(err)
		}

		if status == http.StatusUnauthorized && !reloggedIn {
			reloggedIn = true
			if loginErr := c.reAuthenticate(ctx); loginErr != nil {
				return fmt.Errorf("openlist: %s: re-login after 401 failed: %w", op, loginErr)
			}

			return retry.RetryableError(fmt.Errorf("openlist: %s: retrying after re-login", op))
		}

		if status == http.StatusUnauthorized {
			return &apiError{op: op, path: path, code: status, message: "unauthorized after re-login", auth: true}
		}

		if status >= 500 || status == http.StatusTooManyRequests {
			return retry.RetryableError(&apiError{op: op, path: path, code: status, message: string(raw)})
		}

		if status >= 400 {
			return &apiError{op: op, path: path, code: status, message: string(raw)}
		}

		var env apiEnvelope
		if err := json.Unmarshal(raw, &env); err == nil && env.Code != 0 && env.Code != 200 {
			return &apiError{op: op, path: path, code: env.Code, message: env.Message}
		}

		if respBody != nil {
			if err := json.Unmarshal(raw, respBody); err != nil {
				return fmt.Errorf("openlist: decoding %s response: %w", op, err)
			}
		}

		return nil
	})
}

// rawRequest performs one HTTP round trip and returns the status code and
// full response body. authenticated controls whether the bearer token
// header is attached.
func (c *Client) rawRequest(ctx context.Context, method, path string, body io.Reader, authenticated bool) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if authenticated {
		c.mu.Lock()
		tok := c.token
		c.mu.Unlock()

		if tok != "" {
			req.Header.Set("Authorization", tok)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response body: %w", err)
	}

	return resp.StatusCode, raw, nil
}
